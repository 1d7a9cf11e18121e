package progress

import (
	"context"
	"fmt"
	"sync"

	"github.com/pot-code/course-catalog/internal/domain"
	"go.uber.org/zap"
)

// Pair what a Tracker records progress for
type Pair struct {
	ParticipantID string
	LessonID      string
	ContentID     string
	TopicID       string
}

// Saver the part of the progress persistence contract a Tracker needs
type Saver interface {
	SaveProgress(ctx context.Context, record *domain.ProgressRecord) (*domain.ProgressRecord, error)
	GetProgress(ctx context.Context, participantID, lessonID string) (*domain.ProgressRecord, error)
}

// TrackerOption ...
type TrackerOption func(*Tracker)

// WithTickerFactory replace the polling timer source
func WithTickerFactory(f TickerFactory) TrackerOption {
	return func(t *Tracker) {
		t.newTicker = f
	}
}

// WithTrackerLogger ...
func WithTrackerLogger(logger *zap.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// Tracker turns the event stream of one player into progress records for
// one (participant, lesson) pair
type Tracker struct {
	pair      Pair
	player    Player
	saver     Saver
	policy    Policy
	newTicker TickerFactory
	logger    *zap.Logger

	mu             sync.Mutex
	lastSaved      int
	completedSaved bool
	resumeAt       float64
	state          PlayerState
	ticker         Ticker
	stopTick       chan struct{}
	generation     int
	playerErr      error
	closed         bool
	closeOnce      sync.Once
}

// NewTracker create a tracker, call Mount before feeding events
func NewTracker(pair Pair, player Player, saver Saver, policy Policy, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		pair:      pair,
		player:    player,
		saver:     saver,
		policy:    policy,
		newTicker: NewTimeTicker,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(
		zap.String("progress.participant_id", pair.ParticipantID),
		zap.String("progress.lesson_id", pair.LessonID))
	return t
}

// Pair ...
func (t *Tracker) Pair() Pair {
	return t.pair
}

// Mount seed the tracker from the saved record, if any. A saved position
// past the skip-ahead threshold is sought to on the next Ready event.
func (t *Tracker) Mount(ctx context.Context) error {
	record, err := t.saver.GetProgress(ctx, t.pair.ParticipantID, t.pair.LessonID)
	if err != nil {
		t.logger.Warn("failed to load saved progress", zap.Error(err))
		return err
	}
	if record == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSaved = Second(record.LastPosition)
	t.completedSaved = record.Completed
	if t.policy.ShouldResume(record.LastPosition) {
		t.resumeAt = record.LastPosition
	}
	return nil
}

// HandleEvent advance the state machine. A player error is returned as a
// PlayerIntegrationError and also kept for Err.
func (t *Tracker) HandleEvent(ctx context.Context, event Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}

	switch e := event.(type) {
	case StateChange:
		t.state = e.State
		if e.State == StatePlaying {
			t.startTimer()
			return nil
		}
		t.stopTimer()
		if e.State == StatePaused || e.State == StateEnded {
			return t.evaluate(ctx, true)
		}
	case Ready:
		if t.resumeAt > 0 {
			target := t.resumeAt
			t.resumeAt = 0
			if err := t.player.SeekTo(target); err != nil {
				t.logger.Warn("failed to resume playback", zap.Float64("progress.position", target), zap.Error(err))
			}
		}
	case ErrorEvent:
		t.stopTimer()
		t.playerErr = &domain.PlayerIntegrationError{Reason: fmt.Sprintf("player error code %d", e.Code)}
		t.logger.Warn("player reported an error", zap.Int("error.code", e.Code))
		return t.playerErr
	}
	return nil
}

// Evaluate sample the player and save when the policy says so; forced
// evaluations skip the save interval gate
func (t *Tracker) Evaluate(ctx context.Context, force bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	return t.evaluate(ctx, force)
}

func (t *Tracker) evaluate(ctx context.Context, force bool) error {
	duration := t.player.Duration()
	if duration <= 0 {
		return nil
	}
	if t.completedSaved {
		return nil
	}
	position := t.player.CurrentTime()

	if t.policy.Completed(position, duration) {
		if err := t.save(ctx, duration, duration, true); err != nil {
			return err
		}
		t.completedSaved = true
		return nil
	}
	if !force && !t.policy.DueForSave(position, t.lastSaved) {
		return nil
	}
	if err := t.save(ctx, position, duration, false); err != nil {
		return err
	}
	t.lastSaved = Second(position)
	return nil
}

func (t *Tracker) save(ctx context.Context, position, duration float64, completed bool) error {
	_, err := t.saver.SaveProgress(ctx, &domain.ProgressRecord{
		ParticipantID: t.pair.ParticipantID,
		LessonID:      t.pair.LessonID,
		ContentID:     t.pair.ContentID,
		TopicID:       t.pair.TopicID,
		LastPosition:  position,
		Duration:      duration,
		Completed:     completed,
	})
	if err != nil {
		t.logger.Warn("failed to save progress", zap.Error(err))
	}
	return err
}

// startTimer must be called with mu held
func (t *Tracker) startTimer() {
	if t.ticker != nil {
		return
	}
	t.generation++
	generation := t.generation
	ticker := t.newTicker(t.policy.PollInterval)
	stop := make(chan struct{})
	t.ticker, t.stopTick = ticker, stop

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				t.tick(generation)
			}
		}
	}()
}

// stopTimer must be called with mu held
func (t *Tracker) stopTimer() {
	if t.ticker == nil {
		return
	}
	t.ticker.Stop()
	close(t.stopTick)
	t.ticker, t.stopTick = nil, nil
}

func (t *Tracker) tick(generation int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// a tick already in flight when the timer stopped belongs to a stale timer
	if t.closed || t.ticker == nil || generation != t.generation {
		return
	}
	t.evaluate(context.Background(), false)
}

// Polling whether the polling timer runs
func (t *Tracker) Polling() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticker != nil
}

// Completed whether completion was saved for the pair
func (t *Tracker) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completedSaved
}

// Err last player error
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playerErr
}

// Close stop polling and destroy the player. The player is released even
// when Destroy fails or panics; Close is idempotent.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.stopTimer()
		t.mu.Unlock()
		t.destroyPlayer()
	})
}

func (t *Tracker) destroyPlayer() {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("player destroy panicked", zap.Any("panic", r))
		}
	}()
	if err := t.player.Destroy(); err != nil {
		t.logger.Warn("player destroy failed", zap.Error(err))
	}
}
