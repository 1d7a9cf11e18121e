package progress

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pot-code/course-catalog/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScriptLoader_SharesInFlightLoad(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	loader := NewScriptLoader(func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil
	})

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = loader.Load(context.Background())
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, err := range errs {
		assert.NoError(t, err)
	}
	require.NoError(t, loader.Load(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "success is remembered")
}

func TestScriptLoader_FailureIsRetried(t *testing.T) {
	attempts := 0
	loader := NewScriptLoader(func(context.Context) error {
		attempts++
		if attempts == 1 {
			return errors.New("network down")
		}
		return nil
	})

	err := loader.Load(context.Background())
	var pie *domain.PlayerIntegrationError
	require.True(t, errors.As(err, &pie))
	assert.False(t, loader.Loaded())

	require.NoError(t, loader.Load(context.Background()))
	assert.True(t, loader.Loaded())
	assert.Equal(t, 2, attempts)
}

func newTestSession(players *[]*fakePlayer, saver Saver) *Session {
	factory := func(ctx context.Context, videoURL string) (Player, error) {
		p := &fakePlayer{}
		*players = append(*players, p)
		return p, nil
	}
	rec := new(tickerRecorder)
	loader := NewScriptLoader(func(context.Context) error { return nil })
	return NewSession(loader, factory, saver, DefaultPolicy(), zap.NewNop(), WithTickerFactory(rec.factory))
}

func TestSession_TeardownOnChange(t *testing.T) {
	var players []*fakePlayer
	s := newTestSession(&players, newMemorySaver())
	ctx := context.Background()

	first, err := s.Attach(ctx, abc, "https://youtu.be/a")
	require.NoError(t, err)
	same, err := s.Attach(ctx, abc, "https://youtu.be/a")
	require.NoError(t, err)
	assert.Same(t, first, same)
	require.Len(t, players, 1)

	// url change
	second, err := s.Attach(ctx, abc, "https://youtu.be/b")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 1, players[0].destroyed)

	// pair change
	other := abc
	other.LessonID = "L2"
	third, err := s.Attach(ctx, other, "https://youtu.be/b")
	require.NoError(t, err)
	assert.Equal(t, 1, players[1].destroyed)
	assert.Equal(t, third, s.Current())

	s.Detach()
	s.Detach()
	assert.Equal(t, 1, players[2].destroyed)
	assert.Nil(t, s.Current())
}

func TestSession_PlayerFactoryError(t *testing.T) {
	s := NewSession(nil, func(context.Context, string) (Player, error) {
		return nil, errors.New("embed blocked")
	}, newMemorySaver(), DefaultPolicy(), zap.NewNop())

	_, err := s.Attach(context.Background(), abc, "https://youtu.be/a")
	var pie *domain.PlayerIntegrationError
	require.True(t, errors.As(err, &pie))
	assert.Nil(t, s.Current())
}

func TestSession_MountFailureIsNotFatal(t *testing.T) {
	var players []*fakePlayer
	saver := newMemorySaver()
	saver.failGet = true
	s := newTestSession(&players, saver)

	tr, err := s.Attach(context.Background(), abc, "https://youtu.be/a")
	require.NoError(t, err)
	assert.NotNil(t, tr)
}

func TestReportedPlayer(t *testing.T) {
	p := NewReportedPlayer()
	p.Report(12, 300)
	assert.Equal(t, 12.0, p.CurrentTime())
	assert.Equal(t, 300.0, p.Duration())

	require.NoError(t, p.SeekTo(42))
	assert.Equal(t, 42.0, p.CurrentTime())
	assert.Equal(t, Command{Type: "seek", Position: 42}, <-p.Commands())

	require.NoError(t, p.Destroy())
	_, open := <-p.Commands()
	assert.False(t, open)
	assert.ErrorIs(t, p.Play(), ErrPlayerDestroyed)
	assert.ErrorIs(t, p.Destroy(), ErrPlayerDestroyed)
}
