package remote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/pot-code/course-catalog/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type call struct {
	op   string
	kind domain.Kind
	id   string
}

// memoryBackend in-memory Backend recording every call
type memoryBackend struct {
	mu       sync.Mutex
	calls    []call
	snapshot domain.Snapshot
	failOps  map[string]error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{failOps: make(map[string]error)}
}

func (mb *memoryBackend) record(op string, kind domain.Kind, id string) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.calls = append(mb.calls, call{op, kind, id})
	return mb.failOps[op]
}

func (mb *memoryBackend) CreateRecord(ctx context.Context, kind domain.Kind, entity interface{}) error {
	if err := mb.record(OpCreate, kind, ""); err != nil {
		return err
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if t, ok := entity.(domain.Topic); ok {
		mb.snapshot.Topics = append(mb.snapshot.Topics, t)
	}
	return nil
}

func (mb *memoryBackend) UpdateRecord(ctx context.Context, kind domain.Kind, id string, fields map[string]interface{}) error {
	return mb.record(OpUpdate, kind, id)
}

func (mb *memoryBackend) DeleteRecord(ctx context.Context, kind domain.Kind, id string) error {
	return mb.record(OpDelete, kind, id)
}

func (mb *memoryBackend) UpsertRecords(ctx context.Context, kind domain.Kind, entities []interface{}) error {
	return mb.record(OpUpsert, kind, "")
}

func (mb *memoryBackend) FetchSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	if err := mb.record(OpFetch, "", ""); err != nil {
		return nil, err
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	snap := domain.Snapshot{
		Topics:   append([]domain.Topic(nil), mb.snapshot.Topics...),
		Contents: append([]domain.Content(nil), mb.snapshot.Contents...),
		Lessons:  append([]domain.Lesson(nil), mb.snapshot.Lessons...),
	}
	return &snap, nil
}

func (mb *memoryBackend) ops() []string {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	out := make([]string, 0, len(mb.calls))
	for _, c := range mb.calls {
		out = append(out, c.op)
	}
	return out
}

func newTestBridge(t *testing.T, backend Backend) (*Bridge, *store.Catalog, *Metrics) {
	t.Helper()
	catalog := store.NewCatalog()
	metrics := NewMetrics(prometheus.NewRegistry())
	worker := NewWorker(8, time.Second, zap.NewNop(), metrics)
	bridge := NewBridge(catalog, backend, worker, metrics, zap.NewNop())
	t.Cleanup(func() {
		bridge.Close()
		worker.Close()
		catalog.Close()
	})
	return bridge, catalog, metrics
}

var created = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func TestBridge_Unavailable(t *testing.T) {
	bridge, _, _ := newTestBridge(t, nil)
	assert.False(t, bridge.IsBackendAvailable())

	err := bridge.MirrorCreate(context.Background(), domain.KindTopic, domain.Topic{ID: "T1"})
	assert.ErrorIs(t, err, domain.ErrBackendNotConfigured)
	assert.ErrorIs(t, bridge.Hydrate(context.Background()), domain.ErrBackendNotConfigured)

	called := false
	bridge.Reconcile("noop", func(context.Context) error {
		called = true
		return nil
	})
	bridge.Wait()
	assert.False(t, called)
}

func TestBridge_HydrateReplacesLocalState(t *testing.T) {
	backend := newMemoryBackend()
	backend.snapshot = domain.Snapshot{
		Topics: []domain.Topic{
			{ID: "T1", Name: "Math (remote)", CreatedAt: created},
			{ID: "T2", Name: "Music", Order: 1, CreatedAt: created},
		},
		Contents: []domain.Content{{ID: "C1", TopicID: "T1", Title: "Algebra", CreatedAt: created}},
	}
	bridge, catalog, metrics := newTestBridge(t, backend)
	require.NoError(t, catalog.Topics.Insert(domain.Topic{ID: "T1", Name: "Math", CreatedAt: created}))
	require.NoError(t, catalog.Topics.Insert(domain.Topic{ID: "local-only", Name: "Draft", CreatedAt: created}))

	require.NoError(t, bridge.Hydrate(context.Background()))

	topics := catalog.Topics.List("")
	require.Len(t, topics, 2)
	assert.Equal(t, "Math (remote)", topics[0].Name)
	assert.Equal(t, "T2", topics[1].ID)
	assert.Len(t, catalog.Contents.List("T1"), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.hydrateTotal.WithLabelValues(resultOK)))
}

func TestBridge_MirrorFailureKeepsLocalState(t *testing.T) {
	backend := newMemoryBackend()
	backend.failOps[OpCreate] = errors.New("connection refused")
	bridge, catalog, metrics := newTestBridge(t, backend)

	topic := domain.Topic{ID: "T1", Name: "Math", CreatedAt: created}
	require.NoError(t, catalog.Topics.Insert(topic))
	err := bridge.MirrorCreate(context.Background(), domain.KindTopic, topic)

	var remoteErr *domain.RemoteUnavailableError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, OpCreate, remoteErr.Op)
	assert.Equal(t, domain.KindTopic, remoteErr.Kind)
	_, err = catalog.Topics.Get("T1")
	assert.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.mirrorTotal.WithLabelValues("topic", OpCreate, resultError)))
}

func TestBridge_HydrateFailureKeepsLocalState(t *testing.T) {
	backend := newMemoryBackend()
	backend.failOps[OpFetch] = errors.New("timeout")
	bridge, catalog, _ := newTestBridge(t, backend)
	require.NoError(t, catalog.Topics.Insert(domain.Topic{ID: "T1", Name: "Math", CreatedAt: created}))

	var remoteErr *domain.RemoteUnavailableError
	require.True(t, errors.As(bridge.Hydrate(context.Background()), &remoteErr))
	assert.Len(t, catalog.Topics.List(""), 1)
}

func TestBridge_ReconcileMirrorsThenHydrates(t *testing.T) {
	backend := newMemoryBackend()
	bridge, catalog, _ := newTestBridge(t, backend)

	topic := domain.Topic{ID: "T1", Name: "Math", CreatedAt: created}
	require.NoError(t, catalog.Topics.Insert(topic))
	bridge.Reconcile("create_topic", func(ctx context.Context) error {
		return bridge.MirrorCreate(ctx, domain.KindTopic, topic)
	})
	bridge.Reconcile("delete_topic", func(ctx context.Context) error {
		return bridge.MirrorDelete(ctx, domain.KindTopic, "T0")
	})
	bridge.Wait()

	assert.Equal(t, []string{OpCreate, OpFetch, OpDelete, OpFetch}, backend.ops())
	assert.Len(t, catalog.Topics.List(""), 1)
}

func TestBridge_ReconcileHydratesAfterMirrorFailure(t *testing.T) {
	backend := newMemoryBackend()
	backend.failOps[OpUpdate] = errors.New("503")
	bridge, _, _ := newTestBridge(t, backend)

	bridge.Reconcile("update_topic", func(ctx context.Context) error {
		return bridge.MirrorUpdate(ctx, domain.KindTopic, "T1", map[string]interface{}{"name": "x"})
	})
	bridge.Wait()
	assert.Equal(t, []string{OpUpdate, OpFetch}, backend.ops())
}

func TestBridge_HydrateLoop(t *testing.T) {
	backend := newMemoryBackend()
	bridge, _, _ := newTestBridge(t, backend)

	bridge.StartHydrateLoop(5 * time.Millisecond)
	assert.Eventually(t, func() bool {
		return len(backend.ops()) >= 2
	}, time.Second, 5*time.Millisecond)
	bridge.Close()
	bridge.Wait()

	settled := len(backend.ops())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, len(backend.ops()))
}
