package shm

import (
	"errors"
	"fmt"
)

// Kind classifies a QueueError, matching the externally observable
// error taxonomy of spec.md §6/§7.
type Kind int

const (
	ErrUnknown Kind = iota
	ErrNotFound
	ErrAlreadyExists
	ErrPermissionDenied
	ErrSetupError
	ErrSystemError
	ErrCapacityLimitReached
	ErrMessageTooLarge
	ErrBufferTooSmall
	ErrAborted
)

func (k Kind) String() string {
	switch k {
	case ErrNotFound:
		return "not found"
	case ErrAlreadyExists:
		return "already exists"
	case ErrPermissionDenied:
		return "permission denied"
	case ErrSetupError:
		return "setup error"
	case ErrSystemError:
		return "system error"
	case ErrCapacityLimitReached:
		return "capacity limit reached"
	case ErrMessageTooLarge:
		return "message too large"
	case ErrBufferTooSmall:
		return "buffer too small"
	case ErrAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// QueueError augments a Kind with the segment name and, for
// ErrSystemError, the underlying native error code, so a caller can
// diagnose which named queue failed and why.
type QueueError struct {
	Name   string
	Op     string
	Kind   Kind
	Native int
	Detail string
}

func (e *QueueError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("shm: %s %q: %s (%s)", e.Op, e.Name, e.Kind, e.Detail)
	}
	if e.Kind == ErrSystemError {
		return fmt.Sprintf("shm: %s %q: %s (native code %d)", e.Op, e.Name, e.Kind, e.Native)
	}
	return fmt.Sprintf("shm: %s %q: %s", e.Op, e.Name, e.Kind)
}

// Is reports whether target is a sentinel for the same Kind, so callers
// can write errors.Is(err, shm.SentinelCapacityLimitReached) style checks
// against the package-level sentinels below.
func (e *QueueError) Is(target error) bool {
	sentinel, ok := target.(*sentinelError)
	return ok && sentinel.kind == e.Kind
}

type sentinelError struct{ kind Kind }

func (s *sentinelError) Error() string { return s.kind.String() }

// Sentinels for errors.Is comparisons against operations that don't
// need the full QueueError context (name/op are still present on the
// concrete error returned by the call).
var (
	SentinelNotFound             = &sentinelError{ErrNotFound}
	SentinelAlreadyExists        = &sentinelError{ErrAlreadyExists}
	SentinelPermissionDenied     = &sentinelError{ErrPermissionDenied}
	SentinelSetupError           = &sentinelError{ErrSetupError}
	SentinelSystemError          = &sentinelError{ErrSystemError}
	SentinelCapacityLimitReached = &sentinelError{ErrCapacityLimitReached}
	SentinelMessageTooLarge      = &sentinelError{ErrMessageTooLarge}
	SentinelBufferTooSmall       = &sentinelError{ErrBufferTooSmall}
	SentinelAborted              = &sentinelError{ErrAborted}
)

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *QueueError, otherwise returns ErrUnknown.
func KindOf(err error) Kind {
	var qerr *QueueError
	if errors.As(err, &qerr) {
		return qerr.Kind
	}
	return ErrUnknown
}
