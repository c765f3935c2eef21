package shm

import (
	"strings"
	"sync"
)

// ScopeStack is a per-goroutine-shareable stack of named scopes that a
// sink can prefix onto formatted log lines, mirroring the original
// source's named-scope bookkeeping. It touches nothing in the queue
// engine; it exists purely for callers that format Records before
// sending them.
type ScopeStack struct {
	mu     sync.Mutex
	scopes []string
}

// NewScopeStack returns an empty stack.
func NewScopeStack() *ScopeStack {
	return &ScopeStack{}
}

// Push adds a scope name to the top of the stack and returns a value
// whose Pop method removes exactly that entry, so callers can use
// `defer stack.Push(name).Pop()`.
func (s *ScopeStack) Push(name string) *ScopeGuard {
	s.mu.Lock()
	s.scopes = append(s.scopes, name)
	depth := len(s.scopes)
	s.mu.Unlock()
	return &ScopeGuard{stack: s, depth: depth}
}

// Prefix renders the current stack as "a/b/c", outermost first.
func (s *ScopeStack) Prefix() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.scopes) == 0 {
		return ""
	}
	return strings.Join(s.scopes, "/")
}

// ScopeGuard pops its scope exactly once, even if Pop is called more
// than once.
type ScopeGuard struct {
	stack  *ScopeStack
	depth  int
	popped bool
}

// Pop removes this guard's scope from the stack, provided nothing
// pushed after it is still present (a mismatched pop is a caller bug
// and is ignored rather than corrupting the stack of an unrelated
// scope).
func (g *ScopeGuard) Pop() {
	if g.popped {
		return
	}
	g.popped = true
	g.stack.mu.Lock()
	defer g.stack.mu.Unlock()
	if len(g.stack.scopes) == g.depth {
		g.stack.scopes = g.stack.scopes[:g.depth-1]
	}
}
