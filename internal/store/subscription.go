package store

import "sync"

// Subscription handle returned by Subscribe
type Subscription struct {
	scope  string
	done   chan struct{}
	once   sync.Once
	cancel func()

	mu        sync.Mutex
	delivered bool
	version   uint64
}

func newSubscription(scope string) *Subscription {
	return &Subscription{scope: scope, done: make(chan struct{})}
}

// Scope parent key the subscription listens to
func (s *Subscription) Scope() string {
	return s.scope
}

// Unsubscribe stop receiving callbacks, safe to call more than once
func (s *Subscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
	}
	s.close()
}

// Done closed once the subscription ended, either by Unsubscribe or
// because its scope was invalidated
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) close() {
	s.once.Do(func() {
		s.mu.Lock()
		close(s.done)
		s.mu.Unlock()
	})
}

// advance reports whether a snapshot taken at version is newer than the
// last one handed to this subscriber
func (s *Subscription) advance(version uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return false
	default:
	}
	if s.delivered && version <= s.version {
		return false
	}
	s.delivered = true
	s.version = version
	return true
}
