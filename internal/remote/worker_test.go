package remote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWorker_FIFO(t *testing.T) {
	w := NewWorker(4, 0, zap.NewNop(), nil)
	defer w.Close()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 20; i++ {
		i := i
		require.NoError(t, w.Submit(Job{Name: "step", Run: func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}}))
	}
	w.Wait()

	require.Len(t, order, 20)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestWorker_SurvivesFailingJobs(t *testing.T) {
	w := NewWorker(4, 0, zap.NewNop(), nil)
	defer w.Close()

	ran := false
	require.NoError(t, w.Submit(Job{Name: "error", Run: func(context.Context) error { return errors.New("boom") }}))
	require.NoError(t, w.Submit(Job{Name: "panic", Run: func(context.Context) error { panic("boom") }}))
	require.NoError(t, w.Submit(Job{Name: "ok", Run: func(context.Context) error {
		ran = true
		return nil
	}}))
	w.Wait()
	assert.True(t, ran)
}

func TestWorker_Timeout(t *testing.T) {
	w := NewWorker(1, 10*time.Millisecond, zap.NewNop(), nil)
	defer w.Close()

	var ctxErr error
	require.NoError(t, w.Submit(Job{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		ctxErr = ctx.Err()
		return ctxErr
	}}))
	w.Wait()
	assert.ErrorIs(t, ctxErr, context.DeadlineExceeded)
}

func TestWorker_CloseDrains(t *testing.T) {
	w := NewWorker(8, 0, zap.NewNop(), nil)
	count := 0
	for i := 0; i < 5; i++ {
		require.NoError(t, w.Submit(Job{Name: "count", Run: func(context.Context) error {
			count++
			return nil
		}}))
	}
	w.Close()
	w.Close()
	assert.Equal(t, 5, count)
	assert.ErrorIs(t, w.Submit(Job{Name: "late"}), ErrWorkerClosed)
}

func TestWorker_JobSubmitsFollowUps(t *testing.T) {
	w := NewWorker(1, 0, zap.NewNop(), nil)
	defer w.Close()

	var mu sync.Mutex
	var order []string
	step := func(name string) Job {
		return Job{Name: name, Run: func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}}
	}
	require.NoError(t, w.Submit(Job{Name: "parent", Run: func(context.Context) error {
		for _, name := range []string{"first", "second", "third"} {
			if err := w.Submit(step(name)); err != nil {
				return err
			}
		}
		return nil
	}}))

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker stalled on follow-up jobs")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, order)
}
