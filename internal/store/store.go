package store

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/pot-code/course-catalog/internal/domain"
	"go.uber.org/zap"
)

// ErrClosed mutation on a closed store
var ErrClosed = errors.New("store is closed")

// Entity the pointer side of a catalog entity value
type Entity[T any] interface {
	*T
	EntityID() string
	ScopeKey() string
	SortOrder() int
	SetSortOrder(order int)
	Created() time.Time
	Touch(now time.Time)
}

// Callback receives the ordered snapshot of a scope
type Callback[T any] func(items []T)

type subscriber[T any] struct {
	sub *Subscription
	cb  Callback[T]
}

// notification one snapshot waiting to be delivered once the lock is released
type notification[T any] struct {
	version  uint64
	snapshot []T
	targets  []subscriber[T]
}

// Store ordered in-memory collection of one entity kind, partitioned by
// parent scope. Values are copied in and out, callers never share memory
// with the store.
type Store[T any, P Entity[T]] struct {
	kind   domain.Kind
	now    func() time.Time
	logger *zap.Logger

	mu      sync.Mutex
	items   map[string]T
	subs    map[string][]subscriber[T]
	version uint64
	closed  bool
}

// New create an empty store for kind
func New[T any, P Entity[T]](kind domain.Kind, opts ...Option) *Store[T, P] {
	o := newOptions(opts)
	return &Store[T, P]{
		kind:   kind,
		now:    o.now,
		logger: o.logger.With(zap.String("store.kind", kind.String())),
		items:  make(map[string]T),
		subs:   make(map[string][]subscriber[T]),
	}
}

// Kind entity kind held by the store
func (s *Store[T, P]) Kind() domain.Kind {
	return s.kind
}

// Insert add entity as given, the caller supplies id and timestamps
func (s *Store[T, P]) Insert(entity T) error {
	id := P(&entity).EntityID()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.items[id]; ok {
		s.mu.Unlock()
		return &domain.DuplicateIDError{Kind: s.kind, ID: id}
	}
	s.items[id] = entity
	pending := s.collect(P(&entity).ScopeKey())
	s.mu.Unlock()

	s.deliver(pending)
	return nil
}

// Patch apply mutates the stored entity in place; updatedAt is always refreshed.
// When the patch moves the entity to another parent both scopes are notified.
// A panicking apply leaves the store unchanged and unlocked.
func (s *Store[T, P]) Patch(id string, apply func(P)) (T, error) {
	next, pending, err := s.patchLocked(id, apply)
	if err != nil {
		var zero T
		return zero, err
	}
	s.deliver(pending)
	return next, nil
}

func (s *Store[T, P]) patchLocked(id string, apply func(P)) (next T, pending []notification[T], err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return next, nil, ErrClosed
	}
	current, ok := s.items[id]
	if !ok {
		return next, nil, &domain.NotFoundError{Kind: s.kind, ID: id}
	}
	before := P(&current).ScopeKey()
	next = current
	if apply != nil {
		apply(&next)
	}
	if got := P(&next).EntityID(); got != id {
		return next, nil, fmt.Errorf("patch %s %q: id must not change (got %q)", s.kind, id, got)
	}
	P(&next).Touch(s.now())
	s.items[id] = next
	return next, s.collect(scopes(before, P(&next).ScopeKey())...), nil
}

// Remove delete by id, removing an absent id is a no-op
func (s *Store[T, P]) Remove(id string) (removed T, ok bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	removed, ok = s.items[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.items, id)
	pending := s.collect(P(&removed).ScopeKey())
	s.mu.Unlock()

	s.deliver(pending)
	return
}

// Get lookup by id
func (s *Store[T, P]) Get(id string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		var zero T
		return zero, &domain.NotFoundError{Kind: s.kind, ID: id}
	}
	return item, nil
}

// List ordered snapshot of one scope, sorted by order, createdAt then id
func (s *Store[T, P]) List(scope string) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(scope)
}

// All every entity of the kind, ordered by scope then by position
func (s *Store[T, P]) All() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]T, 0, len(s.items))
	for _, item := range s.items {
		all = append(all, item)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := P(&all[i]), P(&all[j])
		if a.ScopeKey() != b.ScopeKey() {
			return a.ScopeKey() < b.ScopeKey()
		}
		return less[T, P](a, b)
	})
	return all
}

// NextOrder max order in scope plus one, 0 for an empty scope
func (s *Store[T, P]) NextOrder(scope string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := 0
	for _, item := range s.items {
		p := P(&item)
		if p.ScopeKey() == scope && p.SortOrder() >= next {
			next = p.SortOrder() + 1
		}
	}
	return next
}

// Reorder rewrite the order of every entity in the scope of ids[0] to its
// index in ids. ids must hold exactly the scope members, otherwise nothing
// changes. An empty list is a no-op.
func (s *Store[T, P]) Reorder(ids []string) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	first, ok := s.items[ids[0]]
	if !ok {
		s.mu.Unlock()
		return nil, &domain.ReorderMismatchError{Kind: s.kind, Reason: fmt.Sprintf("unknown id %q", ids[0])}
	}
	scope := P(&first).ScopeKey()
	if err := s.checkMembership(scope, ids); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	now := s.now()
	for i, id := range ids {
		item := s.items[id]
		P(&item).SetSortOrder(i)
		P(&item).Touch(now)
		s.items[id] = item
	}
	result := s.snapshot(scope)
	pending := s.collect(scope)
	s.mu.Unlock()

	s.deliver(pending)
	return result, nil
}

func (s *Store[T, P]) checkMembership(scope string, ids []string) error {
	members := 0
	for _, item := range s.items {
		if P(&item).ScopeKey() == scope {
			members++
		}
	}
	if members != len(ids) {
		return &domain.ReorderMismatchError{
			Kind:   s.kind,
			Scope:  scope,
			Reason: fmt.Sprintf("got %d ids, scope holds %d", len(ids), members),
		}
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return &domain.ReorderMismatchError{Kind: s.kind, Scope: scope, Reason: fmt.Sprintf("duplicate id %q", id)}
		}
		seen[id] = struct{}{}
		item, ok := s.items[id]
		if !ok || P(&item).ScopeKey() != scope {
			return &domain.ReorderMismatchError{Kind: s.kind, Scope: scope, Reason: fmt.Sprintf("id %q is not in scope", id)}
		}
	}
	return nil
}

// Replace make the store hold exactly items: present ids are overwritten,
// new ids inserted and ids missing from items removed. Every scope whose
// content changed is notified once.
func (s *Store[T, P]) Replace(items []T) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	incoming := make(map[string]T, len(items))
	for _, item := range items {
		incoming[P(&item).EntityID()] = item
	}

	changed := make(map[string]struct{})
	for id, old := range s.items {
		if _, keep := incoming[id]; !keep {
			delete(s.items, id)
			changed[P(&old).ScopeKey()] = struct{}{}
		}
	}
	for id, item := range incoming {
		old, exists := s.items[id]
		if exists && reflect.DeepEqual(old, item) {
			continue
		}
		if exists {
			changed[P(&old).ScopeKey()] = struct{}{}
		}
		changed[P(&item).ScopeKey()] = struct{}{}
		s.items[id] = item
	}

	affected := make([]string, 0, len(changed))
	for scope := range changed {
		affected = append(affected, scope)
	}
	sort.Strings(affected)
	pending := s.collect(affected...)
	s.mu.Unlock()

	s.deliver(pending)
	return nil
}

// Subscribe register cb for scope. cb is invoked once with the current
// snapshot before Subscribe returns, then after every change to the scope.
func (s *Store[T, P]) Subscribe(scope string, cb Callback[T]) *Subscription {
	sub := newSubscription(scope)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.close()
		return sub
	}
	sub.cancel = func() { s.unsubscribe(sub) }
	entry := subscriber[T]{sub: sub, cb: cb}
	s.subs[scope] = append(s.subs[scope], entry)
	initial := notification[T]{version: s.version, snapshot: s.snapshot(scope), targets: []subscriber[T]{entry}}
	s.mu.Unlock()

	s.deliver([]notification[T]{initial})
	return sub
}

// InvalidateScope end every subscription of scope
func (s *Store[T, P]) InvalidateScope(scope string) {
	s.mu.Lock()
	targets := s.subs[scope]
	delete(s.subs, scope)
	s.mu.Unlock()

	for _, t := range targets {
		t.sub.close()
	}
}

// Close end all subscriptions, later mutations fail with ErrClosed
func (s *Store[T, P]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	all := s.subs
	s.subs = make(map[string][]subscriber[T])
	s.mu.Unlock()

	for _, targets := range all {
		for _, t := range targets {
			t.sub.close()
		}
	}
}

func (s *Store[T, P]) unsubscribe(sub *Subscription) {
	s.mu.Lock()
	targets := s.subs[sub.scope]
	for i, t := range targets {
		if t.sub == sub {
			targets = append(targets[:i:i], targets[i+1:]...)
			break
		}
	}
	if len(targets) == 0 {
		delete(s.subs, sub.scope)
	} else {
		s.subs[sub.scope] = targets
	}
	s.mu.Unlock()
}

// collect must be called with mu held; it bumps the version and captures
// the snapshots to hand out after unlocking.
func (s *Store[T, P]) collect(scopeKeys ...string) []notification[T] {
	s.version++
	pending := make([]notification[T], 0, len(scopeKeys))
	for _, scope := range scopeKeys {
		targets := s.subs[scope]
		if len(targets) == 0 {
			continue
		}
		pending = append(pending, notification[T]{
			version:  s.version,
			snapshot: s.snapshot(scope),
			targets:  append([]subscriber[T](nil), targets...),
		})
	}
	return pending
}

func (s *Store[T, P]) deliver(pending []notification[T]) {
	for _, n := range pending {
		for _, t := range n.targets {
			if !t.sub.advance(n.version) {
				continue
			}
			s.invoke(t, n.snapshot)
		}
	}
}

func (s *Store[T, P]) invoke(t subscriber[T], snapshot []T) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber callback panicked",
				zap.String("store.scope", t.sub.scope),
				zap.Any("panic", r),
				zap.Stack("error.stack_trace"))
		}
	}()
	items := make([]T, len(snapshot))
	copy(items, snapshot)
	t.cb(items)
}

func (s *Store[T, P]) snapshot(scope string) []T {
	list := make([]T, 0)
	for _, item := range s.items {
		if P(&item).ScopeKey() == scope {
			list = append(list, item)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return less[T, P](P(&list[i]), P(&list[j]))
	})
	return list
}

func less[T any, P Entity[T]](a, b P) bool {
	if a.SortOrder() != b.SortOrder() {
		return a.SortOrder() < b.SortOrder()
	}
	if !a.Created().Equal(b.Created()) {
		return a.Created().Before(b.Created())
	}
	return a.EntityID() < b.EntityID()
}

func scopes(before, after string) []string {
	if before == after {
		return []string{before}
	}
	return []string{before, after}
}
