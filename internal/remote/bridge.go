package remote

import (
	"context"
	"sync"
	"time"

	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/pot-code/course-catalog/internal/store"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// mirror operations
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpUpsert = "upsert"
	OpFetch  = "fetch"
)

// Bridge mirrors local catalog writes to the remote backend and pulls the
// remote view back into the catalog. A nil backend means local only.
type Bridge struct {
	catalog *store.Catalog
	backend Backend
	worker  *Worker
	metrics *Metrics
	logger  *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	tickerWG sync.WaitGroup
}

// NewBridge create a bridge over catalog. backend may be nil, the worker
// carries Reconcile jobs.
func NewBridge(catalog *store.Catalog, backend Backend, worker *Worker, metrics *Metrics, logger *zap.Logger) *Bridge {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Bridge{
		catalog: catalog,
		backend: backend,
		worker:  worker,
		metrics: metrics,
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

// IsBackendAvailable whether a backend is configured, never touches the network
func (b *Bridge) IsBackendAvailable() bool {
	return b.backend != nil
}

// MirrorCreate create entity remotely
func (b *Bridge) MirrorCreate(ctx context.Context, kind domain.Kind, entity interface{}) error {
	return b.mirror(ctx, kind, OpCreate, func(ctx context.Context) error {
		return b.backend.CreateRecord(ctx, kind, entity)
	})
}

// MirrorUpdate apply the set fields of a patch remotely
func (b *Bridge) MirrorUpdate(ctx context.Context, kind domain.Kind, id string, fields map[string]interface{}) error {
	return b.mirror(ctx, kind, OpUpdate, func(ctx context.Context) error {
		return b.backend.UpdateRecord(ctx, kind, id, fields)
	})
}

// MirrorDelete delete id remotely
func (b *Bridge) MirrorDelete(ctx context.Context, kind domain.Kind, id string) error {
	return b.mirror(ctx, kind, OpDelete, func(ctx context.Context) error {
		return b.backend.DeleteRecord(ctx, kind, id)
	})
}

// MirrorUpsertBatch upsert a whole scope remotely
func (b *Bridge) MirrorUpsertBatch(ctx context.Context, kind domain.Kind, entities []interface{}) error {
	return b.mirror(ctx, kind, OpUpsert, func(ctx context.Context) error {
		return b.backend.UpsertRecords(ctx, kind, entities)
	})
}

// mirror failures are reported, the local store is never rolled back
func (b *Bridge) mirror(ctx context.Context, kind domain.Kind, op string, call func(ctx context.Context) error) error {
	if b.backend == nil {
		return domain.ErrBackendNotConfigured
	}
	span, ctx := apm.StartSpan(ctx, "Bridge.Mirror", "remote")
	defer span.End()

	err := call(ctx)
	b.metrics.ObserveMirror(kind.String(), op, err)
	if err != nil {
		err = &domain.RemoteUnavailableError{Op: op, Kind: kind, Err: err}
		b.logger.Warn("remote mirror failed, local state stands",
			zap.String("remote.op", op),
			zap.String("remote.kind", kind.String()),
			zap.Error(err))
	}
	return err
}

// Hydrate replace the local catalog with the remote snapshot
func (b *Bridge) Hydrate(ctx context.Context) error {
	if b.backend == nil {
		return domain.ErrBackendNotConfigured
	}
	span, ctx := apm.StartSpan(ctx, "Bridge.Hydrate", "remote")
	defer span.End()

	snapshot, err := b.backend.FetchSnapshot(ctx)
	if err != nil {
		err = &domain.RemoteUnavailableError{Op: OpFetch, Err: err}
		b.metrics.observeHydrate(err)
		b.logger.Warn("remote hydration failed, local state stands", zap.Error(err))
		return err
	}
	err = b.catalog.Apply(snapshot)
	b.metrics.observeHydrate(err)
	if err == nil {
		b.logger.Debug("catalog hydrated",
			zap.Int("catalog.topics", len(snapshot.Topics)),
			zap.Int("catalog.contents", len(snapshot.Contents)),
			zap.Int("catalog.lessons", len(snapshot.Lessons)))
	}
	return err
}

// Reconcile the post-write step: run mirror then a full Hydrate on the
// worker, after every job queued before it. Returns immediately; without a
// backend nothing is queued.
func (b *Bridge) Reconcile(name string, mirror func(ctx context.Context) error) {
	if b.backend == nil {
		return
	}
	err := b.worker.Submit(Job{
		Name: name,
		Run: func(ctx context.Context) error {
			if mirror != nil {
				// already logged by mirror, hydrate regardless to pick up other writers
				_ = mirror(ctx)
			}
			return b.Hydrate(ctx)
		},
	})
	if err != nil {
		b.logger.Warn("reconcile dropped", zap.String("job.name", name), zap.Error(err))
	}
}

// StartHydrateLoop queue a Hydrate every interval until Close, a zero
// interval disables it
func (b *Bridge) StartHydrateLoop(interval time.Duration) {
	if b.backend == nil || interval <= 0 {
		return
	}
	b.tickerWG.Add(1)
	go func() {
		defer b.tickerWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-b.stop:
				return
			case <-ticker.C:
				b.Reconcile("periodic_hydrate", nil)
			}
		}
	}()
}

// Wait block until queued reconciliation work is done
func (b *Bridge) Wait() {
	b.worker.Wait()
}

// Close stop the hydrate loop, the worker is closed by its owner
func (b *Bridge) Close() {
	b.stopOnce.Do(func() {
		close(b.stop)
	})
	b.tickerWG.Wait()
}
