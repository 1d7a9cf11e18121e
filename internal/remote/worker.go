package remote

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pot-code/course-catalog/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// ErrWorkerClosed submit after Close
var ErrWorkerClosed = errors.New("reconcile worker is closed")

// Job one unit of background remote work
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Worker runs jobs one at a time in submission order. Submit never blocks,
// so a running job may queue follow-up work without stalling the loop.
type Worker struct {
	timeout time.Duration
	logger  *zap.Logger
	metrics *Metrics
	limit   int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Job
	running bool
	closed  bool
	stopped chan struct{}
}

// NewWorker create and start a worker. A backlog beyond limit is logged.
// Each job gets at most timeout to run, 0 means no limit.
func NewWorker(limit int, timeout time.Duration, logger *zap.Logger, metrics *Metrics) *Worker {
	if limit < 1 {
		limit = 1
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	w := &Worker{
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
		limit:   limit,
		queue:   make([]Job, 0, limit),
		stopped: make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.loop()
	return w
}

// Submit enqueue job behind every job submitted before it
func (w *Worker) Submit(job Job) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWorkerClosed
	}
	w.queue = append(w.queue, job)
	w.metrics.queueDepth.Inc()
	if len(w.queue) == w.limit+1 {
		w.logger.Warn("reconcile backlog over limit",
			zap.Int("worker.limit", w.limit), zap.String("job.name", job.Name))
	}
	w.cond.Broadcast()
	return nil
}

// Wait block until every submitted job has finished. Must not be called
// from inside a job.
func (w *Worker) Wait() {
	w.mu.Lock()
	for len(w.queue) > 0 || w.running {
		w.cond.Wait()
	}
	w.mu.Unlock()
}

// Close drain the queue and stop the worker
func (w *Worker) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		w.cond.Broadcast()
	}
	w.mu.Unlock()
	<-w.stopped
}

func (w *Worker) loop() {
	defer close(w.stopped)
	w.mu.Lock()
	for {
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		job := w.queue[0]
		w.queue[0] = Job{}
		w.queue = w.queue[1:]
		w.running = true
		w.mu.Unlock()

		w.run(job)
		w.metrics.queueDepth.Dec()

		w.mu.Lock()
		w.running = false
		w.cond.Broadcast()
	}
}

func (w *Worker) run(job Job) {
	logger := w.logger.With(zap.String("job.name", job.Name))
	ctx := logging.SetLoggerInContext(context.Background(), logger)
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("reconcile job panicked", zap.Any("panic", r), zap.Stack("error.stack_trace"))
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		logger.Warn("reconcile job failed", zap.Error(err), zap.Duration("event.duration", time.Since(start)))
		return
	}
	logger.Debug("reconcile job done", zap.Duration("event.duration", time.Since(start)))
}
