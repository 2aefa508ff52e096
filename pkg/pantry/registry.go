package pantry

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Plugin extends every store created after its registration. It runs at
// instantiation time and may return properties to merge into the instance;
// a nil map (or nil, nil) adds nothing. A plugin error aborts the store's
// creation and surfaces from Registry.Get as a *PluginError.
type Plugin func(ctx *PluginContext) (map[string]any, error)

// PluginContext is the invocation context handed to each plugin.
type PluginContext struct {
	// Registry is the registry creating the store. The registry lock is
	// held for the whole build: plugins must not call back into it
	// (Get, Register, Use, Has, Dispose) during initialization.
	Registry *Registry

	// Store is the instance under construction. State, subscriptions and
	// action hooks are already live.
	Store *Store

	// Options is the definition's configuration bag.
	Options Options
}

// Registry owns store definitions and their singleton instances. Create
// one per hosting application and pass it to whatever needs store access;
// there is no package-level registry, which keeps test isolation clean.
type Registry struct {
	mu      sync.Mutex
	defs    map[string]*Definition
	stores  map[string]*Store
	plugins []Plugin

	globalSubs *subscriberList

	// dispatchMu serializes notification passes so subscribers observe
	// mutations in commit order across all stores.
	dispatchMu sync.Mutex

	// mutationSeq numbers committed mutations; callSeq numbers action
	// invocations. Separate streams, both registry-global and strictly
	// increasing.
	mutationSeq atomic.Uint64
	callSeq     atomic.Uint64

	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for subscriber and hook failure reports.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		defs:       make(map[string]*Definition),
		stores:     make(map[string]*Store),
		globalSubs: &subscriberList{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default().With("component", "pantry")
	}
	return r
}

// Register records a store definition. The definition is immutable from
// this point on; registering the same id twice is an error.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.ID == "" {
		return fmt.Errorf("pantry: definition must have an id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[def.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateStore, def.ID)
	}
	r.defs[def.ID] = def
	return nil
}

// Use registers a plugin. It applies to every store instantiated after
// this call; stores that already exist are not retroactively extended, so
// register plugins before the first Get.
func (r *Registry) Use(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = append(r.plugins, p)
}

// Get returns the singleton instance for id, building it on first call:
// the state factory runs, the instance is assembled, and each registered
// plugin is applied in registration order. An unknown id returns
// ErrUnknownStore; a plugin failure aborts creation and nothing is cached.
func (r *Registry) Get(id string) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.stores[id]; ok {
		return st, nil
	}

	def, ok := r.defs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, id)
	}

	var initial State
	if def.State != nil {
		initial = def.State()
	}

	st := &Store{
		id:      id,
		def:     def,
		reg:     r,
		c:       newContainer(initial),
		subs:    &subscriberList{},
		getters: make(map[string]*getterCache),
		props:   make(map[string]any),
	}

	for _, p := range r.plugins {
		props, err := p(&PluginContext{Registry: r, Store: st, Options: def.Options})
		if err != nil {
			return nil, &PluginError{Store: id, Err: err}
		}
		// Later plugins overwrite earlier ones: last write wins.
		for name, value := range props {
			st.props[name] = value
		}
	}

	r.stores[id] = st
	return st, nil
}

// Has reports whether a live instance exists for id.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.stores[id]
	return ok
}

// Dispose tears down the instance for id and removes it from the
// registry. The definition stays registered; the next Get builds a fresh
// instance. Disposing an unknown or never-built id is a no-op.
func (r *Registry) Dispose(id string) {
	r.mu.Lock()
	st, ok := r.stores[id]
	delete(r.stores, id)
	r.mu.Unlock()

	if ok {
		st.teardown()
	}
}

// Subscribe registers a registry-global subscriber. It observes the union
// of all stores' mutations in global commit order, after each mutation's
// store-scoped subscribers. It returns an unsubscribe handle.
func (r *Registry) Subscribe(fn SubscriptionFunc, opts ...SubscribeOption) func() {
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	sub := &subscription{id: nextID(), fn: fn}
	r.globalSubs.add(sub)

	unsubscribe := func() { r.globalSubs.remove(sub.id) }
	if cfg.scope != nil {
		cfg.scope.OnCleanup(unsubscribe)
	}
	return unsubscribe
}

// commit assigns the next mutation sequence number and delivers the
// record. A commit made while this goroutine is already delivering (a
// subscriber mutating state) is queued and delivered after the in-flight
// pass, with its own later sequence number.
func (r *Registry) commit(s *Store, kind MutationKind, fields []string) {
	st := currentDeliveryState()
	if st.active {
		m := Mutation{StoreID: s.id, Kind: kind, Sequence: r.mutationSeq.Add(1), Fields: fields}
		st.queue = append(st.queue, queuedDelivery{store: s, m: m})
		return
	}

	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	st.active = true
	defer func() {
		st.active = false
		releaseDeliveryState()
	}()

	m := Mutation{StoreID: s.id, Kind: kind, Sequence: r.mutationSeq.Add(1), Fields: fields}
	r.deliver(s, m)

	// Queued entries may belong to another registry when a subscriber
	// committed to one of its stores; deliver through the owner so its
	// subscriber lists are used.
	for len(st.queue) > 0 {
		next := st.queue[0]
		st.queue = st.queue[1:]
		next.store.reg.deliver(next.store, next.m)
	}
}

// deliver runs one notification pass: store-scoped subscribers in
// registration order, then global subscribers in registration order. Both
// lists are snapshotted at the start of the pass.
func (r *Registry) deliver(s *Store, m Mutation) {
	state := s.c.snapshot()
	for _, sub := range s.subs.snapshot() {
		r.invokeSubscriber(sub, m, state)
	}
	for _, sub := range r.globalSubs.snapshot() {
		r.invokeSubscriber(sub, m, state)
	}
}

// invokeSubscriber isolates one subscriber: a panicking callback is logged
// and neither blocks the remaining subscribers nor rolls back the
// mutation.
func (r *Registry) invokeSubscriber(sub *subscription, m Mutation, state State) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("subscriber panicked",
				"store", m.StoreID, "kind", m.Kind.String(), "seq", m.Sequence, "panic", rec)
		}
	}()
	sub.fn(m, state)
}
