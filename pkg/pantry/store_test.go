package pantry

import (
	"errors"
	"testing"
)

func TestCounterScenario(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(counterDef()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	store, err := reg.Get("counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	var records []Mutation
	store.Subscribe(func(m Mutation, _ State) {
		records = append(records, m)
	})

	for i := 0; i < 3; i++ {
		if _, err := store.Dispatch("increment"); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}

	if len(records) != 3 {
		t.Fatalf("expected 3 mutation records, got %d", len(records))
	}
	for i, m := range records {
		if m.Sequence != uint64(i+1) {
			t.Errorf("record %d: expected sequence %d, got %d", i, i+1, m.Sequence)
		}
		if m.Kind != MutationDirect {
			t.Errorf("record %d: expected direct kind, got %s", i, m.Kind)
		}
		if len(m.Fields) != 1 || m.Fields[0] != "count" {
			t.Errorf("record %d: expected fields [count], got %v", i, m.Fields)
		}
	}
	if got := store.Get("count"); got != 3 {
		t.Fatalf("expected count 3, got %v", got)
	}

	if err := store.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := store.Get("count"); got != 0 {
		t.Fatalf("expected count 0 after reset, got %v", got)
	}
	if last := records[len(records)-1]; last.Kind != MutationReset {
		t.Fatalf("expected reset mutation record, got %s", last.Kind)
	}
}

func TestFieldRefStaysLiveAcrossReset(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(counterDef()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	store, err := reg.Get("counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	count := Ref[int](store, "count")
	count.Set(42)
	if got := count.Get(); got != 42 {
		t.Fatalf("expected 42 through handle, got %d", got)
	}
	if got := store.Get("count"); got != 42 {
		t.Fatalf("handle write must be visible on the store, got %v", got)
	}

	if err := store.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	// The handle resolves against the fresh factory output, not the
	// pre-reset value.
	if got := count.Get(); got != 0 {
		t.Fatalf("expected handle to read 0 after reset, got %d", got)
	}

	count.Update(func(n int) int { return n + 5 })
	if got := store.Get("count"); got != 5 {
		t.Fatalf("expected 5 after Update, got %v", got)
	}
}

func TestStateSnapshotIsValueCopy(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(counterDef()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	store, err := reg.Get("counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	snap := store.State()
	snap["count"] = 99

	if got := store.Get("count"); got != 0 {
		t.Fatalf("mutating a snapshot must not affect the store, got %v", got)
	}
}

func TestGetterIsBoundAndMemoized(t *testing.T) {
	computes := 0
	def := DefineStore("counter", func() State {
		return State{"count": 2}
	}).WithGetter("double", func(st State) any {
		computes++
		return st["count"].(int) * 2
	})

	reg := NewRegistry()
	if err := reg.Register(def); err != nil {
		t.Fatalf("Register: %v", err)
	}
	store, err := reg.Get("counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	for i := 0; i < 3; i++ {
		v, err := store.Getter("double")
		if err != nil {
			t.Fatalf("Getter: %v", err)
		}
		if v != 4 {
			t.Fatalf("expected 4, got %v", v)
		}
	}
	if computes != 1 {
		t.Fatalf("expected a single computation before any mutation, got %d", computes)
	}

	store.Set("count", 5)
	v, err := store.Getter("double")
	if err != nil {
		t.Fatalf("Getter: %v", err)
	}
	if v != 10 {
		t.Fatalf("expected 10 after mutation, got %v", v)
	}
	if computes != 2 {
		t.Fatalf("expected recompute after mutation, got %d computations", computes)
	}

	if _, err := store.Getter("missing"); !errors.Is(err, ErrUnknownGetter) {
		t.Fatalf("expected ErrUnknownGetter, got %v", err)
	}
}

func TestSetCreatesNewFieldInSortedOrder(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(DefineStore("mixed", func() State {
		return State{"b": 1, "d": 2}
	})); err != nil {
		t.Fatalf("Register: %v", err)
	}
	store, err := reg.Get("mixed")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	store.Set("a", 0)
	store.Set("c", 3)

	want := []string{"a", "b", "c", "d"}
	got := store.Fields()
	if len(got) != len(want) {
		t.Fatalf("expected fields %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected fields %v, got %v", want, got)
		}
	}
}
