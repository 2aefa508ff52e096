package pantry

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Store is one live, singleton store instance. Exactly one exists per id
// per registry; it is owned by the registry and all other code holds
// non-owning references obtained through Registry.Get.
type Store struct {
	id  string
	def *Definition
	reg *Registry

	c *container

	subs *subscriberList

	hooksMu sync.Mutex
	hooks   []*actionHook

	gettersMu sync.Mutex
	getters   map[string]*getterCache

	propsMu sync.RWMutex
	props   map[string]any

	disposed atomic.Bool
}

// getterCache memoizes one bound getter against the container version.
// The cached value is reused until the next committed mutation.
type getterCache struct {
	version uint64
	value   any
	valid   bool
}

// ID returns the store's id.
func (s *Store) ID() string {
	return s.id
}

// Registry returns the registry that owns this store.
func (s *Store) Registry() *Registry {
	return s.reg
}

// Get returns the current value of a field, or nil when the field does not
// exist. The returned value is a plain copy of the reference: it does not
// stay live as the store changes. Use Ref for a live handle.
func (s *Store) Get(name string) any {
	v, _ := s.c.get(name)
	return v
}

// Set writes one field and commits a single direct mutation.
func (s *Store) Set(name string, value any) {
	s.c.set(name, value)
	s.reg.commit(s, MutationDirect, []string{name})
}

// State returns a value snapshot of the whole state. Mutating the snapshot
// does not affect the store.
func (s *Store) State() State {
	return s.c.snapshot()
}

// Fields returns the store's field names in container order.
func (s *Store) Fields() []string {
	return s.c.fieldNames()
}

// Getter evaluates a named getter against the current state. Results are
// memoized: the getter only recomputes after a committed mutation.
func (s *Store) Getter(name string) (any, error) {
	fn, ok := s.def.Getters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q on store %q", ErrUnknownGetter, name, s.id)
	}

	version := s.c.currentVersion()

	s.gettersMu.Lock()
	defer s.gettersMu.Unlock()

	cache, ok := s.getters[name]
	if !ok {
		cache = &getterCache{}
		s.getters[name] = cache
	}
	if cache.valid && cache.version == version {
		return cache.value, nil
	}

	cache.value = fn(s.c.snapshot())
	cache.version = version
	cache.valid = true
	return cache.value, nil
}

// Prop returns a property merged into this instance by a plugin.
func (s *Store) Prop(name string) (any, bool) {
	s.propsMu.RLock()
	defer s.propsMu.RUnlock()
	v, ok := s.props[name]
	return v, ok
}

// Prop returns a plugin-provided property with its expected type. The
// second result is false when the property is absent or of another type.
func Prop[T any](s *Store, name string) (T, bool) {
	var zero T
	v, ok := s.Prop(name)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Subscribe registers a callback invoked on every committed mutation of
// this store, after store-scoped subscribers registered earlier and before
// registry-global ones. It returns an unsubscribe handle.
func (s *Store) Subscribe(fn SubscriptionFunc, opts ...SubscribeOption) func() {
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	sub := &subscription{id: nextID(), fn: fn}
	s.subs.add(sub)

	unsubscribe := func() { s.subs.remove(sub.id) }
	if cfg.scope != nil {
		cfg.scope.OnCleanup(unsubscribe)
	}
	return unsubscribe
}

// Dispose removes this store from its registry and tears down its
// subscriptions and hooks. A later Registry.Get with the same id builds a
// fresh instance. Used for test isolation.
func (s *Store) Dispose() {
	s.reg.Dispose(s.id)
}

// IsDisposed reports whether the store has been disposed.
func (s *Store) IsDisposed() bool {
	return s.disposed.Load()
}

// teardown is called by the registry while removing the instance.
func (s *Store) teardown() {
	if s.disposed.Swap(true) {
		return
	}
	s.subs.clear()
	s.hooksMu.Lock()
	s.hooks = nil
	s.hooksMu.Unlock()
}
