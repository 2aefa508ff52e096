package pantry

// FieldRef is a live, independently passable handle to one field of a
// store. Reading and writing through it is equivalent to reading and
// writing the field on the store directly: the handle resolves against the
// container's current value on every access, so it stays valid across
// patches and resets for the lifetime of the store.
//
// Extracting a raw value (Store.Get, Store.State, destructuring a snapshot)
// is an explicit value copy and loses the live connection; call sites that
// need a local variable with live semantics take a FieldRef instead.
type FieldRef[T any] struct {
	store *Store
	name  string
}

// Ref returns a live handle to the named field of a store.
func Ref[T any](s *Store, name string) *FieldRef[T] {
	return &FieldRef[T]{store: s, name: name}
}

// Name returns the field name this handle resolves.
func (f *FieldRef[T]) Name() string {
	return f.name
}

// Get returns the field's current value. It returns the zero value of T
// when the field is absent or holds a value of a different type.
func (f *FieldRef[T]) Get() T {
	v, ok := f.store.c.get(f.name)
	if !ok {
		var zero T
		return zero
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero
	}
	return t
}

// Set writes the field through the store, committing one direct mutation.
func (f *FieldRef[T]) Set(value T) {
	f.store.Set(f.name, value)
}

// Update derives the next value from the current one and writes it back.
func (f *FieldRef[T]) Update(fn func(T) T) {
	f.Set(fn(f.Get()))
}
