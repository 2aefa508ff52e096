package pantry

// ActionFunc is a store behavior function. It may read and mutate the
// store's state and may return a *Deferred to continue asynchronously.
type ActionFunc func(s *Store, args ...any) (any, error)

// GetterFunc is a pure derived-value function over a store's state.
// It must not mutate the snapshot it receives.
type GetterFunc func(state State) any

// Options is a definition's configuration bag. Entries are keyed by
// plugin-defined key values (typically pointers to unexported key types),
// each mapping to that plugin's typed configuration struct.
type Options map[any]any

// OptionOf looks up a typed configuration value in an options bag.
func OptionOf[T any](opts Options, key any) (T, bool) {
	var zero T
	if opts == nil {
		return zero, false
	}
	v, ok := opts[key]
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Definition describes one store: its id, state factory, actions, getters
// and configuration. Definitions are immutable once registered with a
// Registry.
type Definition struct {
	// ID is the store's unique identifier within a registry.
	ID string

	// State produces the store's initial state. May be nil, in which case
	// the store starts empty and Reset is unsupported.
	State StateFactory

	// Actions maps action names to behavior functions.
	Actions map[string]ActionFunc

	// Getters maps getter names to derived-value functions.
	Getters map[string]GetterFunc

	// Options carries per-plugin configuration, keyed by plugin key.
	Options Options
}

// DefineStore starts a store definition with the given id and state
// factory. Actions, getters and options are added with the With methods:
//
//	def := pantry.DefineStore("counter", factory).
//	    WithAction("increment", increment).
//	    WithGetter("double", double)
func DefineStore(id string, factory StateFactory) *Definition {
	return &Definition{
		ID:    id,
		State: factory,
	}
}

// WithAction adds a named action and returns the definition.
func (d *Definition) WithAction(name string, fn ActionFunc) *Definition {
	if d.Actions == nil {
		d.Actions = make(map[string]ActionFunc)
	}
	d.Actions[name] = fn
	return d
}

// WithGetter adds a named getter and returns the definition.
func (d *Definition) WithGetter(name string, fn GetterFunc) *Definition {
	if d.Getters == nil {
		d.Getters = make(map[string]GetterFunc)
	}
	d.Getters[name] = fn
	return d
}

// WithOption sets a plugin configuration entry and returns the definition.
func (d *Definition) WithOption(key, value any) *Definition {
	if d.Options == nil {
		d.Options = make(Options)
	}
	d.Options[key] = value
	return d
}
