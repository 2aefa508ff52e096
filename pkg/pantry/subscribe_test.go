package pantry

import (
	"testing"
)

func TestStoreSubscribersRunInRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(counterDef()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	store, err := reg.Get("counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	var order []string
	store.Subscribe(func(Mutation, State) { order = append(order, "first") })
	store.Subscribe(func(Mutation, State) { order = append(order, "second") })

	store.Set("count", 1)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected registration order, got %v", order)
	}
}

func TestGlobalSubscriberObservesAllStoresInCommitOrder(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(counterDef()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(DefineStore("list", func() State {
		return State{"items": []int{}}
	})); err != nil {
		t.Fatalf("Register: %v", err)
	}

	counter, err := reg.Get("counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	list, err := reg.Get("list")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	var global []Mutation
	reg.Subscribe(func(m Mutation, _ State) {
		global = append(global, m)
	})

	var scoped []string
	counter.Subscribe(func(Mutation, State) { scoped = append(scoped, "store") })
	reg.Subscribe(func(m Mutation, _ State) {
		if m.StoreID == "counter" {
			scoped = append(scoped, "global")
		}
	})

	counter.Set("count", 1)
	list.Patch(State{"items": []int{1}})
	counter.Set("count", 2)

	if len(global) != 3 {
		t.Fatalf("expected union of all stores' mutations, got %d records", len(global))
	}
	wantStores := []string{"counter", "list", "counter"}
	for i, m := range global {
		if m.StoreID != wantStores[i] {
			t.Errorf("record %d: expected store %q, got %q", i, wantStores[i], m.StoreID)
		}
		if m.Sequence != uint64(i+1) {
			t.Errorf("record %d: expected sequence %d, got %d", i, i+1, m.Sequence)
		}
	}

	// Store-scoped delivery precedes global delivery for each mutation.
	want := []string{"store", "global", "store", "global"}
	if len(scoped) != len(want) {
		t.Fatalf("expected %v, got %v", want, scoped)
	}
	for i := range want {
		if scoped[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, scoped)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(counterDef()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	store, err := reg.Get("counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	notifications := 0
	unsubscribe := store.Subscribe(func(Mutation, State) { notifications++ })

	store.Set("count", 1)
	unsubscribe()
	store.Set("count", 2)

	if notifications != 1 {
		t.Fatalf("expected one notification before unsubscribe, got %d", notifications)
	}
}

func TestSubscriberPanicIsIsolated(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(counterDef()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	store, err := reg.Get("counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	secondRan := false
	store.Subscribe(func(Mutation, State) { panic("broken subscriber") })
	store.Subscribe(func(Mutation, State) { secondRan = true })

	store.Set("count", 1)

	if !secondRan {
		t.Fatal("a panicking subscriber must not block later subscribers")
	}
	if got := store.Get("count"); got != 1 {
		t.Fatalf("a panicking subscriber must not roll back the mutation, count=%v", got)
	}
}

func TestMutationDuringDeliveryIsDeferred(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(counterDef()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	store, err := reg.Get("counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	var trace []string
	triggered := false
	store.Subscribe(func(m Mutation, _ State) {
		trace = append(trace, "A")
		if !triggered {
			triggered = true
			// Committed mid-delivery: queued with the next sequence
			// number, delivered after the current pass completes.
			store.Set("count", 100)
		}
	})
	store.Subscribe(func(m Mutation, _ State) {
		trace = append(trace, "B")
	})

	var sequences []uint64
	reg.Subscribe(func(m Mutation, _ State) {
		sequences = append(sequences, m.Sequence)
	})

	store.Set("count", 1)

	want := []string{"A", "B", "A", "B"}
	if len(trace) != len(want) {
		t.Fatalf("expected no re-entrant delivery, want %v got %v", want, trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("expected no re-entrant delivery, want %v got %v", want, trace)
		}
	}
	if len(sequences) != 2 || sequences[0] != 1 || sequences[1] != 2 {
		t.Fatalf("expected sequences [1 2], got %v", sequences)
	}
	if got := store.Get("count"); got != 100 {
		t.Fatalf("expected nested mutation applied, count=%v", got)
	}
}

func TestNestedMutationOnAnotherRegistry(t *testing.T) {
	regA := NewRegistry()
	if err := regA.Register(counterDef()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	regB := NewRegistry()
	if err := regB.Register(DefineStore("other", func() State {
		return State{"y": 0}
	})); err != nil {
		t.Fatalf("Register: %v", err)
	}

	storeA, err := regA.Get("counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	storeB, err := regB.Get("other")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	var aGlobal, bGlobal []Mutation
	regA.Subscribe(func(m Mutation, _ State) { aGlobal = append(aGlobal, m) })
	regB.Subscribe(func(m Mutation, _ State) { bGlobal = append(bGlobal, m) })

	bScoped := 0
	storeB.Subscribe(func(Mutation, State) { bScoped++ })

	triggered := false
	storeA.Subscribe(func(Mutation, State) {
		if !triggered {
			triggered = true
			// Committed to the other registry mid-delivery: queued, then
			// delivered through that registry's own subscriber lists.
			storeB.Set("y", 1)
		}
	})

	storeA.Set("count", 1)

	// Each registry's global subscriber observes only its own stores.
	if len(aGlobal) != 1 || aGlobal[0].StoreID != "counter" {
		t.Fatalf("expected registry A to observe only its own store, got %v", aGlobal)
	}
	if len(bGlobal) != 1 || bGlobal[0].StoreID != "other" {
		t.Fatalf("expected registry B to observe its store's mutation, got %v", bGlobal)
	}
	if bGlobal[0].Sequence != 1 {
		t.Fatalf("expected registry B's own sequence numbering, got %d", bGlobal[0].Sequence)
	}
	if bScoped != 1 {
		t.Fatalf("expected store-scoped delivery on the other registry, got %d", bScoped)
	}
	if got := storeB.Get("y"); got != 1 {
		t.Fatalf("expected nested mutation applied, y=%v", got)
	}
}

func TestSubscriptionInScope(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(counterDef()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	store, err := reg.Get("counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	scope := NewScope(nil)
	scoped := 0
	persistent := 0
	store.Subscribe(func(Mutation, State) { scoped++ }, InScope(scope))
	store.Subscribe(func(Mutation, State) { persistent++ })

	store.Set("count", 1)
	scope.Close()
	store.Set("count", 2)

	if scoped != 1 {
		t.Fatalf("expected scoped subscription removed on scope close, got %d", scoped)
	}
	if persistent != 2 {
		t.Fatalf("expected persistent subscription to keep receiving, got %d", persistent)
	}
}
