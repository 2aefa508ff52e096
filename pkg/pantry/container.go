package pantry

import (
	"sort"
	"sync"
)

// State is one store's snapshot: a mapping of field name to value. A state
// factory produces a fresh State on every call; snapshots are never shared
// by reference between two store instances.
type State map[string]any

// StateFactory produces a store's initial state. A definition without a
// factory can still be instantiated (with empty state) but cannot be reset.
type StateFactory func() State

// container holds a store's field values. Field slots are keyed by name, so
// handles obtained for a field stay valid and current for the lifetime of
// the store, including across wholesale replacement by reset.
//
// Go maps are unordered, so the container keeps fields in sorted-name order
// for deterministic iteration and affected-field reporting.
type container struct {
	mu    sync.RWMutex
	slots map[string]any
	order []string

	// version increments on every committed write. Getter memoization
	// compares against it to decide whether to recompute.
	version uint64
}

func newContainer(initial State) *container {
	c := &container{
		slots: make(map[string]any, len(initial)),
	}
	for name, value := range initial {
		c.slots[name] = value
	}
	c.order = sortedFieldNames(initial)
	return c
}

// get returns the current value for a field.
func (c *container) get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.slots[name]
	return v, ok
}

// set writes one field, creating the slot if the field is new.
func (c *container) set(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(name, value)
	c.version++
}

func (c *container) setLocked(name string, value any) {
	if _, ok := c.slots[name]; !ok {
		c.insertOrderedLocked(name)
	}
	c.slots[name] = value
}

// merge assigns the given fields, leaving others untouched, and returns the
// affected field names in sorted order. Absent keys mean "no change".
func (c *container) merge(partial State) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, value := range partial {
		c.setLocked(name, value)
	}
	c.version++
	return sortedFieldNames(partial)
}

// replace swaps the container's contents for a fresh snapshot. Slots are
// rekeyed in place so that field handles resolve against the new values;
// fields absent from the new snapshot are removed.
func (c *container) replace(next State) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range c.slots {
		if _, ok := next[name]; !ok {
			delete(c.slots, name)
		}
	}
	for name, value := range next {
		c.slots[name] = value
	}
	c.order = sortedFieldNames(next)
	c.version++
	return append([]string(nil), c.order...)
}

// snapshot returns a shallow copy of the current state. Copies are value
// snapshots: they do not stay live as the container changes.
func (c *container) snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := make(State, len(c.slots))
	for name, value := range c.slots {
		s[name] = value
	}
	return s
}

// fieldNames returns the field names in container order.
func (c *container) fieldNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// currentVersion returns the container's write version.
func (c *container) currentVersion() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// insertOrderedLocked inserts a new field name keeping order sorted.
func (c *container) insertOrderedLocked(name string) {
	i := sort.SearchStrings(c.order, name)
	c.order = append(c.order, "")
	copy(c.order[i+1:], c.order[i:])
	c.order[i] = name
}

func sortedFieldNames(s State) []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
