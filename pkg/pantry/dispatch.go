package pantry

import (
	"fmt"
	"sync"
)

// callState tracks an action invocation through its lifecycle:
// idle -> running -> (ok | errored) -> settled.
type callState int

const (
	callIdle callState = iota
	callRunning
	callOK
	callErrored
	callSettled
)

// String returns a human-readable name for the call state.
func (s callState) String() string {
	switch s {
	case callIdle:
		return "idle"
	case callRunning:
		return "running"
	case callOK:
		return "ok"
	case callErrored:
		return "errored"
	case callSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// ActionHook is a before hook applied to all actions of a store. It runs
// synchronously before the action body, in registration order. Returning a
// non-nil error vetoes the call: the body does not run, the call's error
// callbacks fire, and the error is returned to the dispatcher's caller.
//
// The hook receives the per-invocation ActionCall and may register After
// and OnError callbacks scoped to that invocation only.
type ActionHook func(call *ActionCall) error

// actionHook is one registered store-wide hook.
type actionHook struct {
	id uint64
	fn ActionHook
}

// ActionCall is the per-invocation context threaded through the hook
// pipeline. It is created for one Dispatch call and discarded once the
// call settles, including after any deferred continuation resolves.
type ActionCall struct {
	// Name is the dispatched action's name.
	Name string

	// Args are the arguments passed to Dispatch.
	Args []any

	// StoreID is the id of the store the action belongs to.
	StoreID string

	// Seq is the registry-global call sequence number.
	Seq uint64

	store *Store

	mu      sync.Mutex
	state   callState
	after   []func(result any)
	onError []func(err error)
}

// After registers a callback for this invocation only, run in registration
// order once the body (and any deferred continuation) completes
// successfully. It returns a handle that removes the callback.
func (c *ActionCall) After(fn func(result any)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := len(c.after)
	c.after = append(c.after, fn)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if i < len(c.after) && c.after[i] != nil {
			c.after[i] = nil
		}
	}
}

// OnError registers a callback for this invocation only, run in
// registration order if the body, a deferred continuation, or a before
// hook fails. It returns a handle that removes the callback.
func (c *ActionCall) OnError(fn func(err error)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := len(c.onError)
	c.onError = append(c.onError, fn)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if i < len(c.onError) && c.onError[i] != nil {
			c.onError[i] = nil
		}
	}
}

// succeed transitions running -> ok -> settled, firing after callbacks.
func (c *ActionCall) succeed(result any) {
	c.mu.Lock()
	c.state = callOK
	callbacks := make([]func(result any), len(c.after))
	copy(callbacks, c.after)
	c.mu.Unlock()

	for _, cb := range callbacks {
		if cb != nil {
			c.store.invokeAfter(c, cb, result)
		}
	}

	c.mu.Lock()
	c.state = callSettled
	c.mu.Unlock()
}

// fail transitions running -> errored -> settled, firing error callbacks.
func (c *ActionCall) fail(err error) {
	c.mu.Lock()
	c.state = callErrored
	callbacks := make([]func(err error), len(c.onError))
	copy(callbacks, c.onError)
	c.mu.Unlock()

	for _, cb := range callbacks {
		if cb != nil {
			c.store.invokeOnError(c, cb, err)
		}
	}

	c.mu.Lock()
	c.state = callSettled
	c.mu.Unlock()
}

// OnAction registers a before hook applied to every action of the store.
// It returns an unsubscribe handle.
func (s *Store) OnAction(hook ActionHook) func() {
	h := &actionHook{id: nextID(), fn: hook}
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, h)
	s.hooksMu.Unlock()

	return func() {
		s.hooksMu.Lock()
		defer s.hooksMu.Unlock()
		for i, existing := range s.hooks {
			if existing.id == h.id {
				s.hooks = append(s.hooks[:i], s.hooks[i+1:]...)
				return
			}
		}
	}
}

// Dispatch invokes a named action through the hook pipeline.
//
// Before hooks run first, in registration order; any hook error vetoes the
// call. Then the body runs. A synchronous body settles the call before
// Dispatch returns. A body returning *Deferred hands the Deferred straight
// back to the caller; the call's After/OnError callbacks fire when it
// settles, preserving registration order within this call but with no
// ordering guarantee against other in-flight calls.
//
// A body failure is wrapped in *ActionError, delivered to the call's error
// callbacks and returned. For a deferred body the failure surfaces from
// Deferred.Await instead.
func (s *Store) Dispatch(name string, args ...any) (any, error) {
	fn, ok := s.def.Actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q on store %q", ErrUnknownAction, name, s.id)
	}

	call := &ActionCall{
		Name:    name,
		Args:    args,
		StoreID: s.id,
		Seq:     s.reg.callSeq.Add(1),
		store:   s,
		state:   callIdle,
	}

	call.mu.Lock()
	call.state = callRunning
	call.mu.Unlock()

	for _, h := range s.snapshotHooks() {
		if err := h.fn(call); err != nil {
			call.fail(err)
			return nil, err
		}
	}

	result, err := fn(s, args...)
	if err != nil {
		aerr := &ActionError{Store: s.id, Action: name, Err: err}
		call.fail(aerr)
		return nil, aerr
	}

	if d, ok := result.(*Deferred); ok {
		d.whenSettled(func(v any, err error) {
			if err != nil {
				call.fail(&ActionError{Store: s.id, Action: name, Err: err})
				return
			}
			call.succeed(v)
		})
		return d, nil
	}

	call.succeed(result)
	return result, nil
}

// snapshotHooks copies the hook list so registrations and removals during
// a pipeline pass do not affect the in-flight call.
func (s *Store) snapshotHooks() []*actionHook {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	hooks := make([]*actionHook, len(s.hooks))
	copy(hooks, s.hooks)
	return hooks
}

// invokeAfter isolates one after callback: a panicking observer is logged
// and never blocks the remaining callbacks.
func (s *Store) invokeAfter(c *ActionCall, cb func(result any), result any) {
	defer func() {
		if r := recover(); r != nil {
			s.reg.logger.Error("after hook panicked",
				"store", c.StoreID, "action", c.Name, "seq", c.Seq, "panic", r)
		}
	}()
	cb(result)
}

// invokeOnError isolates one error callback the same way.
func (s *Store) invokeOnError(c *ActionCall, cb func(err error), err error) {
	defer func() {
		if r := recover(); r != nil {
			s.reg.logger.Error("error hook panicked",
				"store", c.StoreID, "action", c.Name, "seq", c.Seq, "panic", r)
		}
	}()
	cb(err)
}
