package progress

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/pot-code/course-catalog/internal/infrastructure/validate"
	"github.com/pot-code/course-catalog/internal/remote"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// ProgressBackend remote persistence of progress records
type ProgressBackend interface {
	SaveProgress(ctx context.Context, record *domain.ProgressRecord) error
	// GetProgress returns nil, nil when nothing is stored
	GetProgress(ctx context.Context, participantID, lessonID string) (*domain.ProgressRecord, error)
	GetAllProgress(ctx context.Context, participantID string) ([]*domain.ProgressRecord, error)
}

// ProgressCallback receives every record of one participant, ordered by lesson id
type ProgressCallback func(records []*domain.ProgressRecord)

// ProgressService the progress persistence contract
type ProgressService interface {
	domain.ProgressRepository
	SubscribeProgress(participantID string, cb ProgressCallback) (unsubscribe func())
}

type progressSubscriber struct {
	id int
	cb ProgressCallback

	mu        sync.Mutex
	delivered bool
	version   uint64
	cancelled bool
}

// advance reports whether a listing taken at version is newer than the last
// one handed to this subscriber
func (s *progressSubscriber) advance(version uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || (s.delivered && version <= s.version) {
		return false
	}
	s.delivered = true
	s.version = version
	return true
}

func (s *progressSubscriber) cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

// ProgressServiceImpl keeps records locally, keyed by (participant, lesson),
// and mirrors every save to the backend on the reconcile worker
type ProgressServiceImpl struct {
	Backend   ProgressBackend
	Worker    *remote.Worker
	Metrics   *remote.Metrics
	Validator validate.Validator
	Logger    *zap.Logger
	Now       func() time.Time

	mu      sync.Mutex
	records map[domain.ProgressKey]*domain.ProgressRecord
	subs    map[string][]*progressSubscriber
	nextSub int
	version uint64
}

var _ ProgressService = &ProgressServiceImpl{}

// NewProgressService backend may be nil for local only progress
func NewProgressService(
	Backend ProgressBackend,
	Worker *remote.Worker,
	Metrics *remote.Metrics,
	Validator validate.Validator,
	Logger *zap.Logger,
) *ProgressServiceImpl {
	if Metrics == nil {
		Metrics = remote.NewMetrics(nil)
	}
	return &ProgressServiceImpl{
		Backend:   Backend,
		Worker:    Worker,
		Metrics:   Metrics,
		Validator: Validator,
		Logger:    Logger,
		Now:       time.Now,
		records:   make(map[domain.ProgressKey]*domain.ProgressRecord),
		subs:      make(map[string][]*progressSubscriber),
	}
}

// SaveProgress merge record into the stored one. Completion never reverts
// and the position never exceeds the duration.
func (ps *ProgressServiceImpl) SaveProgress(ctx context.Context, record *domain.ProgressRecord) (*domain.ProgressRecord, error) {
	apmSpan, _ := apm.StartSpan(ctx, "ProgressServiceImpl.SaveProgress", "service")
	defer apmSpan.End()

	if err := ps.checkKey(record.ParticipantID, record.LessonID); err != nil {
		return nil, err
	}
	in := *record
	in.UpdatedAt = ps.Now()

	ps.mu.Lock()
	stored := ps.mergeLocked(&in)
	saved := *stored
	pending := ps.collectLocked(saved.ParticipantID)
	ps.mu.Unlock()

	ps.deliver(pending)
	ps.mirror(saved)
	return &saved, nil
}

// GetProgress local record, read through to the backend on a miss; nil
// when the pair has no progress
func (ps *ProgressServiceImpl) GetProgress(ctx context.Context, participantID, lessonID string) (*domain.ProgressRecord, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressServiceImpl.GetProgress", "service")
	defer apmSpan.End()

	if err := ps.checkKey(participantID, lessonID); err != nil {
		return nil, err
	}
	key := domain.ProgressKey{ParticipantID: participantID, LessonID: lessonID}
	ps.mu.Lock()
	if stored, ok := ps.records[key]; ok {
		found := *stored
		ps.mu.Unlock()
		return &found, nil
	}
	ps.mu.Unlock()

	if ps.Backend == nil {
		return nil, nil
	}
	remoteRecord, err := ps.Backend.GetProgress(ctx, participantID, lessonID)
	if err != nil {
		ps.Logger.Warn("remote progress lookup failed", zap.String("progress.lesson_id", lessonID), zap.Error(err))
		return nil, &domain.RemoteUnavailableError{Op: remote.OpFetch, Err: err}
	}
	if remoteRecord == nil {
		return nil, nil
	}
	ps.mu.Lock()
	stored := ps.adoptLocked(remoteRecord)
	found := *stored
	ps.mu.Unlock()
	return &found, nil
}

// GetAllProgress every record of participantID ordered by lesson id. Remote
// records are folded in first; a remote failure leaves the local view.
func (ps *ProgressServiceImpl) GetAllProgress(ctx context.Context, participantID string) ([]*domain.ProgressRecord, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressServiceImpl.GetAllProgress", "service")
	defer apmSpan.End()

	if errs := ps.Validator.Empty("participant_id", participantID); len(errs) > 0 {
		return nil, &validate.ValidationError{Fields: errs}
	}
	if ps.Backend != nil {
		records, err := ps.Backend.GetAllProgress(ctx, participantID)
		if err != nil {
			ps.Logger.Warn("remote progress listing failed, serving local records", zap.Error(err))
		} else {
			ps.mu.Lock()
			for _, r := range records {
				if r.ParticipantID == participantID {
					ps.adoptLocked(r)
				}
			}
			ps.mu.Unlock()
		}
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.listLocked(participantID), nil
}

// SubscribeProgress cb is called with the current records right away and
// after every save for participantID
func (ps *ProgressServiceImpl) SubscribeProgress(participantID string, cb ProgressCallback) func() {
	ps.mu.Lock()
	ps.nextSub++
	id := ps.nextSub
	sub := &progressSubscriber{id: id, cb: cb}
	ps.subs[participantID] = append(ps.subs[participantID], sub)
	initial := &progressNotification{
		version: ps.version,
		records: ps.listLocked(participantID),
		targets: []*progressSubscriber{sub},
	}
	ps.mu.Unlock()

	ps.deliver(initial)

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.cancel()
			ps.mu.Lock()
			defer ps.mu.Unlock()
			subs := ps.subs[participantID]
			for i, s := range subs {
				if s.id == id {
					ps.subs[participantID] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(ps.subs[participantID]) == 0 {
				delete(ps.subs, participantID)
			}
		})
	}
}

func (ps *ProgressServiceImpl) checkKey(participantID, lessonID string) error {
	var fields []*validate.FieldError
	fields = append(fields, ps.Validator.Empty("participant_id", participantID)...)
	fields = append(fields, ps.Validator.Empty("lesson_id", lessonID)...)
	if len(fields) > 0 {
		return &validate.ValidationError{Fields: fields}
	}
	return nil
}

// mergeLocked fold a local write into the stored record
func (ps *ProgressServiceImpl) mergeLocked(in *domain.ProgressRecord) *domain.ProgressRecord {
	key := in.Key()
	stored, ok := ps.records[key]
	if !ok {
		created := *in
		created.Clamp()
		ps.records[key] = &created
		return &created
	}
	stored.Merge(in)
	return stored
}

// adoptLocked fold a remote record in; completion stays sticky on both sides
// and the most recent write wins the position
func (ps *ProgressServiceImpl) adoptLocked(in *domain.ProgressRecord) *domain.ProgressRecord {
	key := in.Key()
	stored, ok := ps.records[key]
	if !ok {
		created := *in
		created.Clamp()
		ps.records[key] = &created
		return &created
	}
	if in.UpdatedAt.After(stored.UpdatedAt) {
		stored.Merge(in)
	} else if in.Completed && !stored.Completed {
		stored.Completed = true
		if stored.Duration > 0 {
			stored.LastPosition = stored.Duration
		}
	}
	return stored
}

func (ps *ProgressServiceImpl) listLocked(participantID string) []*domain.ProgressRecord {
	list := make([]*domain.ProgressRecord, 0)
	for key, r := range ps.records {
		if key.ParticipantID == participantID {
			cp := *r
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].LessonID < list[j].LessonID
	})
	return list
}

type progressNotification struct {
	version uint64
	records []*domain.ProgressRecord
	targets []*progressSubscriber
}

// collectLocked bumps the version so a listing overtaken by a later save is
// never delivered after it
func (ps *ProgressServiceImpl) collectLocked(participantID string) *progressNotification {
	ps.version++
	targets := ps.subs[participantID]
	if len(targets) == 0 {
		return nil
	}
	return &progressNotification{
		version: ps.version,
		records: ps.listLocked(participantID),
		targets: append([]*progressSubscriber(nil), targets...),
	}
}

func (ps *ProgressServiceImpl) deliver(n *progressNotification) {
	if n == nil {
		return
	}
	for _, t := range n.targets {
		if !t.advance(n.version) {
			continue
		}
		records := make([]*domain.ProgressRecord, 0, len(n.records))
		for _, r := range n.records {
			cp := *r
			records = append(records, &cp)
		}
		ps.invoke(t.cb, records)
	}
}

func (ps *ProgressServiceImpl) invoke(cb ProgressCallback, records []*domain.ProgressRecord) {
	defer func() {
		if r := recover(); r != nil {
			ps.Logger.Error("progress subscriber panicked", zap.Any("panic", r))
		}
	}()
	cb(records)
}

// mirror queue the remote save behind earlier reconciliation work
func (ps *ProgressServiceImpl) mirror(record domain.ProgressRecord) {
	if ps.Backend == nil || ps.Worker == nil {
		return
	}
	err := ps.Worker.Submit(remote.Job{
		Name: "save_progress",
		Run: func(ctx context.Context) error {
			err := ps.Backend.SaveProgress(ctx, &record)
			ps.Metrics.ObserveMirror("progress", remote.OpUpsert, err)
			if err != nil {
				return &domain.RemoteUnavailableError{Op: remote.OpUpsert, Err: err}
			}
			return nil
		},
	})
	if err != nil {
		ps.Logger.Warn("progress mirror dropped", zap.Error(err))
	}
}
