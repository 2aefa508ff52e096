package pantry

import (
	"runtime"
	"sync"
)

// MutationKind identifies how a mutation was committed.
type MutationKind int

const (
	// MutationDirect is a single-field write through the store or a
	// field handle.
	MutationDirect MutationKind = iota

	// MutationPatchObject is a partial object merge via Store.Patch.
	MutationPatchObject

	// MutationPatchFunc is a callback-driven bulk update via
	// Store.PatchFunc.
	MutationPatchFunc

	// MutationReset is a restoration of the state factory's output.
	MutationReset
)

// String returns a human-readable name for the mutation kind.
func (k MutationKind) String() string {
	switch k {
	case MutationDirect:
		return "direct"
	case MutationPatchObject:
		return "patch-object"
	case MutationPatchFunc:
		return "patch-function"
	case MutationReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Mutation describes one committed state change. Records are ephemeral:
// constructed at commit, delivered to subscribers, then discarded.
type Mutation struct {
	// StoreID is the id of the store that changed.
	StoreID string

	// Kind is how the change was committed.
	Kind MutationKind

	// Sequence is the registry-global commit order. Strictly increasing;
	// subscribers observe mutations in sequence order across all stores.
	Sequence uint64

	// Fields are the affected field names, best effort, in sorted order.
	Fields []string
}

// SubscriptionFunc receives one mutation record plus the store's state
// snapshot at delivery time.
type SubscriptionFunc func(m Mutation, state State)

// subscription is one registered subscriber callback.
type subscription struct {
	id uint64
	fn SubscriptionFunc
}

// subscriberList is an ordered list of subscriptions. It tolerates being
// extended or shrunk while a delivery pass is in progress: delivery works
// on a snapshot taken at the start of the pass.
type subscriberList struct {
	mu   sync.RWMutex
	subs []*subscription
}

func (l *subscriberList) add(sub *subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, sub)
}

func (l *subscriberList) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, s := range l.subs {
		if s.id == id {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return
		}
	}
}

func (l *subscriberList) snapshot() []*subscription {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*subscription, len(l.subs))
	copy(out, l.subs)
	return out
}

func (l *subscriberList) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = nil
}

// SubscribeOption configures a subscription registration.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	scope *Scope
}

// InScope ties the subscription's lifecycle to a scope: when the scope
// closes, the subscription is removed. Without it, subscriptions persist
// for the registry's lifetime (or until unsubscribed explicitly).
func InScope(scope *Scope) SubscribeOption {
	return func(c *subscribeConfig) {
		c.scope = scope
	}
}

// deliveryState tracks whether the current goroutine is inside a
// notification pass. A mutation committed by a subscriber callback during
// delivery is queued with its sequence number and delivered after the
// in-flight pass completes, never re-entrantly.
type deliveryState struct {
	active bool
	queue  []queuedDelivery
}

type queuedDelivery struct {
	store *Store
	m     Mutation
}

// deliveryStates stores per-goroutine delivery state.
var deliveryStates sync.Map

// goroutineID returns a unique identifier for the current goroutine,
// parsed from the runtime stack header. Implementation detail; never
// exposed.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack starts with "goroutine <id> ".
	var id uint64
	for i := 10; i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

func currentDeliveryState() *deliveryState {
	gid := goroutineID()
	if st, ok := deliveryStates.Load(gid); ok {
		return st.(*deliveryState)
	}
	st := &deliveryState{}
	deliveryStates.Store(gid, st)
	return st
}

func releaseDeliveryState() {
	deliveryStates.Delete(goroutineID())
}
