package progress

import (
	"context"
	"sync"

	"github.com/pot-code/course-catalog/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ScriptLoader loads the player script once per process. Concurrent callers
// share one in-flight load; a success is remembered, a failure is not.
type ScriptLoader struct {
	load  func(ctx context.Context) error
	group singleflight.Group

	mu     sync.Mutex
	loaded bool
}

// NewScriptLoader wrap load
func NewScriptLoader(load func(ctx context.Context) error) *ScriptLoader {
	return &ScriptLoader{load: load}
}

// Load run the loader unless a previous run succeeded
func (sl *ScriptLoader) Load(ctx context.Context) error {
	if sl.Loaded() {
		return nil
	}
	_, err, _ := sl.group.Do("script", func() (interface{}, error) {
		if sl.Loaded() {
			return nil, nil
		}
		if err := sl.load(ctx); err != nil {
			return nil, err
		}
		sl.mu.Lock()
		sl.loaded = true
		sl.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return &domain.PlayerIntegrationError{Reason: "player script failed to load", Err: err}
	}
	return nil
}

// Loaded whether a load has succeeded
func (sl *ScriptLoader) Loaded() bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.loaded
}
