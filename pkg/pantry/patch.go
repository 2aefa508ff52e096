package pantry

import (
	"fmt"
	"sort"
)

// Patch applies a partial object merge as one atomic mutation: only the
// given fields are assigned, all others keep their prior values, and
// absent keys mean "no change". Subscribers receive exactly one mutation
// record for the call.
func (s *Store) Patch(partial State) {
	fields := s.c.merge(partial)
	s.reg.commit(s, MutationPatchObject, fields)
}

// Draft is the mutable view handed to a PatchFunc callback. Writes go
// straight to the store's container; every field written is recorded as
// part of the patch's single mutation.
type Draft struct {
	c       *container
	touched map[string]struct{}
}

// Get returns a field's current value within the patch, nil if absent.
func (d *Draft) Get(name string) any {
	v, _ := d.c.get(name)
	return v
}

// Set writes a field and records it as touched.
func (d *Draft) Set(name string, value any) {
	d.c.set(name, value)
	d.touched[name] = struct{}{}
}

// Update derives a field's next value from its current one. This is how a
// callback patch expresses in-place structural edits an object merge
// cannot, such as appending to or truncating a list field:
//
//	s.PatchFunc(func(d *pantry.Draft) {
//	    d.Update("items", func(v any) any {
//	        return append(v.([]int), 1)
//	    })
//	})
func (d *Draft) Update(name string, fn func(current any) any) {
	d.Set(name, fn(d.Get(name)))
}

// PatchFunc runs fn with draft access to the state and commits everything
// it touched as one atomic mutation. Notification is deferred until fn
// returns: subscribers see exactly one mutation record per call no matter
// how many fields were written.
func (s *Store) PatchFunc(fn func(d *Draft)) {
	d := &Draft{c: s.c, touched: make(map[string]struct{})}
	fn(d)

	fields := make([]string, 0, len(d.touched))
	for name := range d.touched {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	s.reg.commit(s, MutationPatchFunc, fields)
}

// Reset restores the store to a freshly computed output of its state
// factory, independent of the mutation history. Field handles issued
// earlier resolve against the new snapshot. Stores defined without a
// state factory return ErrResetUnsupported.
func (s *Store) Reset() error {
	if s.def.State == nil {
		return fmt.Errorf("%w: store %q", ErrResetUnsupported, s.id)
	}
	fields := s.c.replace(s.def.State())
	s.reg.commit(s, MutationReset, fields)
	return nil
}
