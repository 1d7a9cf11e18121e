package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pot-code/course-catalog/internal/domain"
)

type fakePlayer struct {
	mu           sync.Mutex
	position     float64
	duration     float64
	seeks        []float64
	destroyed    int
	destroyErr   error
	destroyPanic bool
}

func (p *fakePlayer) set(position, duration float64) {
	p.mu.Lock()
	p.position, p.duration = position, duration
	p.mu.Unlock()
}

func (p *fakePlayer) Play() error  { return nil }
func (p *fakePlayer) Pause() error { return nil }

func (p *fakePlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *fakePlayer) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

func (p *fakePlayer) SeekTo(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeks = append(p.seeks, seconds)
	p.position = seconds
	return nil
}

func (p *fakePlayer) Destroy() error {
	p.mu.Lock()
	p.destroyed++
	p.mu.Unlock()
	if p.destroyPanic {
		panic("player already gone")
	}
	return p.destroyErr
}

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type tickerRecorder struct {
	mu      sync.Mutex
	tickers []*fakeTicker
	periods []time.Duration
}

func (r *tickerRecorder) factory(d time.Duration) Ticker {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	r.tickers = append(r.tickers, t)
	r.periods = append(r.periods, d)
	return t
}

func (r *tickerRecorder) last() *fakeTicker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.tickers) == 0 {
		return nil
	}
	return r.tickers[len(r.tickers)-1]
}

func (r *tickerRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tickers)
}

// memorySaver Saver recording every save
type memorySaver struct {
	mu      sync.Mutex
	saves   []domain.ProgressRecord
	stored  map[domain.ProgressKey]*domain.ProgressRecord
	failGet bool
}

func newMemorySaver() *memorySaver {
	return &memorySaver{stored: make(map[domain.ProgressKey]*domain.ProgressRecord)}
}

func (s *memorySaver) SaveProgress(ctx context.Context, record *domain.ProgressRecord) (*domain.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, *record)
	cp := *record
	s.stored[record.Key()] = &cp
	return &cp, nil
}

func (s *memorySaver) GetProgress(ctx context.Context, participantID, lessonID string) (*domain.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, errors.New("lookup failed")
	}
	r, ok := s.stored[domain.ProgressKey{ParticipantID: participantID, LessonID: lessonID}]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *memorySaver) saved() []domain.ProgressRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ProgressRecord(nil), s.saves...)
}
