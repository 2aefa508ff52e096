package pantry

import (
	"sync"
	"sync/atomic"
)

// Scope is an ownership boundary for subscriptions and other cleanups.
// Closing a scope runs its cleanups and closes its child scopes, so
// subscriptions registered with InScope are removed when the caller that
// owned them goes away.
//
// Scopes form a hierarchy: a child scope is closed when its parent closes.
type Scope struct {
	id uint64

	// parent is the parent scope, nil for a root scope.
	parent *Scope

	children   []*Scope
	childrenMu sync.Mutex

	cleanups   []func()
	cleanupsMu sync.Mutex

	closed atomic.Bool
}

// NewScope creates a scope under parent. A nil parent creates a root scope.
func NewScope(parent *Scope) *Scope {
	s := &Scope{
		id:     nextID(),
		parent: parent,
	}
	if parent != nil {
		parent.addChild(s)
	}
	return s
}

// ID returns the unique identifier for this scope.
func (s *Scope) ID() uint64 {
	return s.id
}

// Parent returns the parent scope, or nil for a root scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// IsClosed reports whether the scope has been closed.
func (s *Scope) IsClosed() bool {
	return s.closed.Load()
}

// OnCleanup registers a function to run when the scope closes.
// If the scope is already closed, the function runs immediately.
func (s *Scope) OnCleanup(fn func()) {
	if s.closed.Load() {
		fn()
		return
	}

	s.cleanupsMu.Lock()
	defer s.cleanupsMu.Unlock()
	s.cleanups = append(s.cleanups, fn)
}

// Close closes the scope: child scopes close in reverse creation order,
// then cleanups run in reverse registration order. Closing twice is a
// no-op.
func (s *Scope) Close() {
	if s.closed.Swap(true) {
		return
	}

	if s.parent != nil {
		s.parent.removeChild(s)
	}

	s.childrenMu.Lock()
	children := make([]*Scope, len(s.children))
	copy(children, s.children)
	s.children = nil
	s.childrenMu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Close()
	}

	s.cleanupsMu.Lock()
	cleanups := s.cleanups
	s.cleanups = nil
	s.cleanupsMu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

func (s *Scope) addChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()
	s.children = append(s.children, child)
}

func (s *Scope) removeChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}
