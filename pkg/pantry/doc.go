// Package pantry provides a reactive state-store runtime.
//
// A store is a named singleton container of mutable state plus the actions
// that mutate it and the getters derived from it. Stores are declared as
// definitions and instantiated lazily by a Registry, exactly once per id.
//
// # Core Types
//
// Definition describes a store; Registry owns the live instances:
//
//	reg := pantry.NewRegistry()
//	reg.Register(pantry.DefineStore("counter", func() pantry.State {
//	    return pantry.State{"count": 0}
//	}).WithAction("increment", func(s *pantry.Store, _ ...any) (any, error) {
//	    s.Set("count", s.Get("count").(int)+1)
//	    return nil, nil
//	}))
//
//	counter, _ := reg.Get("counter")
//	counter.Dispatch("increment")
//
// Ref[T] is a live handle to one field of a store. Reading and writing
// through it is equivalent to accessing the field on the store directly,
// and the handle stays current across patches and resets:
//
//	count := pantry.Ref[int](counter, "count")
//	count.Set(5)
//	count.Update(func(n int) int { return n + 1 })
//
// # Mutations
//
// Every committed mutation produces one Mutation record delivered to
// subscribers in commit order, store-scoped subscribers first, then
// registry-global ones:
//
//	counter.Subscribe(func(m pantry.Mutation, state pantry.State) {
//	    fmt.Println(m.Kind, m.Fields)
//	})
//
// Patch applies a partial merge as one mutation; PatchFunc gives the
// callback direct draft access and still commits a single mutation no
// matter how many fields it touches. Reset restores the state factory's
// output.
//
// # Actions and Hooks
//
// Dispatch runs an action through the hook pipeline. OnAction registers a
// before hook for all of a store's actions; the hook may veto the call by
// returning an error and may register per-call After/OnError callbacks.
// An action body may return a *Deferred (started with Go) to continue
// asynchronously; the caller gets the Deferred immediately and the call's
// After/OnError callbacks fire when it settles.
//
// # Plugins
//
// Registry.Use registers a plugin applied to every store instantiated
// afterwards. Plugins receive the registry, the store and the definition's
// options bag, and may return properties merged into the instance.
//
// # Thread Safety
//
// All types are safe for concurrent use. Mutations committed while a
// notification pass is running on the same goroutine are queued and
// delivered after the pass completes, never re-entrantly.
package pantry
