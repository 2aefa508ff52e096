package pantry

import (
	"errors"
	"fmt"
)

// ErrUnknownStore is returned when a store id is looked up before any
// definition with that id was registered.
var ErrUnknownStore = errors.New("pantry: unknown store")

// ErrDuplicateStore is returned when a definition is registered under an id
// that already has a definition. Definitions are immutable once registered.
var ErrDuplicateStore = errors.New("pantry: store already registered")

// ErrResetUnsupported is returned by Store.Reset when the store's definition
// does not retain a state factory. The capability gap is exposed at the
// definition boundary rather than reconstructing state from history.
var ErrResetUnsupported = errors.New("pantry: reset requires a state factory")

// ErrUnknownAction is returned by Store.Dispatch for an action name the
// definition does not declare.
var ErrUnknownAction = errors.New("pantry: unknown action")

// ErrUnknownGetter is returned by Store.Getter for a getter name the
// definition does not declare.
var ErrUnknownGetter = errors.New("pantry: unknown getter")

// ActionError wraps an error raised inside an action body or its deferred
// continuation. It is delivered to the call's error callbacks and returned
// to the dispatcher's caller.
type ActionError struct {
	Store  string // store id
	Action string // action name
	Err    error  // the underlying failure
}

// Error implements the error interface.
func (e *ActionError) Error() string {
	return fmt.Sprintf("pantry: action %q on store %q failed: %v", e.Action, e.Store, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ActionError) Unwrap() error {
	return e.Err
}

// PluginError wraps an error raised by a plugin during store instantiation.
// It aborts that store's creation and surfaces from Registry.Get.
type PluginError struct {
	Store string // id of the store being created
	Err   error  // the plugin's failure
}

// Error implements the error interface.
func (e *PluginError) Error() string {
	return fmt.Sprintf("pantry: plugin failed while creating store %q: %v", e.Store, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *PluginError) Unwrap() error {
	return e.Err
}
