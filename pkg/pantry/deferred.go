package pantry

import "sync"

// Deferred is the handle for an action continuation whose result is not
// immediately available. The dispatcher returns it to the caller without
// blocking; After and OnError callbacks registered for the call fire when
// it settles.
//
// A Deferred settles exactly once. Later Resolve/Reject calls are no-ops.
type Deferred struct {
	mu        sync.Mutex
	settled   bool
	result    any
	err       error
	callbacks []func(result any, err error)
	done      chan struct{}
}

// NewDeferred creates an unsettled Deferred. Use it when the continuation
// is driven externally; use Go to run a function on a goroutine.
func NewDeferred() *Deferred {
	return &Deferred{done: make(chan struct{})}
}

// Go runs fn on a new goroutine and returns a Deferred that settles with
// its result.
func Go(fn func() (any, error)) *Deferred {
	d := NewDeferred()
	go func() {
		v, err := fn()
		d.settle(v, err)
	}()
	return d
}

// Resolve settles the Deferred successfully.
func (d *Deferred) Resolve(result any) {
	d.settle(result, nil)
}

// Reject settles the Deferred with an error.
func (d *Deferred) Reject(err error) {
	d.settle(nil, err)
}

// Await blocks until the Deferred settles and returns its outcome.
// A failure that was delivered to error callbacks is still returned here;
// awaiting is how the original caller observes it.
func (d *Deferred) Await() (any, error) {
	<-d.done
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result, d.err
}

// Done returns a channel closed when the Deferred settles.
func (d *Deferred) Done() <-chan struct{} {
	return d.done
}

func (d *Deferred) settle(result any, err error) {
	d.mu.Lock()
	if d.settled {
		d.mu.Unlock()
		return
	}
	d.settled = true
	d.result = result
	d.err = err
	callbacks := d.callbacks
	d.callbacks = nil
	close(d.done)
	d.mu.Unlock()

	for _, cb := range callbacks {
		cb(result, err)
	}
}

// whenSettled registers a callback to run on settle, immediately if the
// Deferred already settled. Callbacks run in registration order.
func (d *Deferred) whenSettled(cb func(result any, err error)) {
	d.mu.Lock()
	if d.settled {
		result, err := d.result, d.err
		d.mu.Unlock()
		cb(result, err)
		return
	}
	d.callbacks = append(d.callbacks, cb)
	d.mu.Unlock()
}
