package shm

import "testing"

func TestScopeStackPushPop(t *testing.T) {
	s := NewScopeStack()
	if s.Prefix() != "" {
		t.Fatalf("expected empty prefix on a fresh stack")
	}

	outer := s.Push("outer")
	inner := s.Push("inner")
	if got := s.Prefix(); got != "outer/inner" {
		t.Fatalf("got %q, want %q", got, "outer/inner")
	}

	inner.Pop()
	if got := s.Prefix(); got != "outer" {
		t.Fatalf("got %q after inner pop, want %q", got, "outer")
	}

	inner.Pop() // idempotent, must not corrupt the stack
	if got := s.Prefix(); got != "outer" {
		t.Fatalf("double pop corrupted the stack: got %q", got)
	}

	outer.Pop()
	if s.Prefix() != "" {
		t.Fatalf("expected empty prefix after all scopes popped")
	}
}
