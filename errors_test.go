package shm

import (
	"errors"
	"testing"
)

func TestQueueErrorMatchesSentinel(t *testing.T) {
	err := &QueueError{Name: "q1", Op: "send", Kind: ErrCapacityLimitReached}
	if !errors.Is(err, SentinelCapacityLimitReached) {
		t.Fatalf("errors.Is did not match the CapacityLimitReached sentinel")
	}
	if errors.Is(err, SentinelAborted) {
		t.Fatalf("errors.Is incorrectly matched an unrelated sentinel")
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != ErrUnknown {
		t.Fatalf("KindOf(nil) = %v, want ErrUnknown", KindOf(nil))
	}
	if got := KindOf(&QueueError{Kind: ErrNotFound}); got != ErrNotFound {
		t.Fatalf("KindOf = %v, want ErrNotFound", got)
	}
	if got := KindOf(errors.New("plain")); got != ErrUnknown {
		t.Fatalf("KindOf(plain error) = %v, want ErrUnknown", got)
	}
}
