package shm

import (
	"bytes"
	"fmt"
)

// LogSink is the external consumer spec.md §6 specifies a contract
// for: it formats a Record into its own buffer, then hands the
// finished bytes to a Queue via Send or TrySend. It never holds the
// queue's mutex across formatting.
type LogSink struct {
	q       *Queue
	pattern string
	async   bool
	scopes  *ScopeStack
}

// NewLogSink builds a sink over an already-open queue. When async is
// true, Write uses TrySend and reports overflow rather than blocking
// the caller's logging call site.
func NewLogSink(q *Queue, pattern string, async bool) *LogSink {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &LogSink{q: q, pattern: pattern, async: async, scopes: NewScopeStack()}
}

// Scopes returns the sink's named-scope stack so callers can push/pop
// scopes around a unit of work.
func (s *LogSink) Scopes() *ScopeStack { return s.scopes }

// Write formats r and sends it. A CapacityLimitReached failure is
// surfaced as a runtime error (the sink cannot recover on its own); a
// MessageTooLarge failure is surfaced as a logic error the caller is
// expected to fix by shortening the record, matching spec.md §6.
func (s *LogSink) Write(r Record) error {
	var buf bytes.Buffer
	if prefix := s.scopes.Prefix(); prefix != "" {
		buf.WriteByte('[')
		buf.WriteString(prefix)
		buf.WriteString("] ")
	}
	buf.WriteString(r.Format(s.pattern))
	payload := buf.Bytes()

	if s.async {
		ok, err := s.q.TrySend(payload)
		if err != nil {
			return s.classify(err)
		}
		if !ok {
			return s.classify(&QueueError{Name: s.q.Name(), Op: "sink_write", Kind: ErrCapacityLimitReached})
		}
		return nil
	}

	if err := s.q.Send(payload); err != nil {
		return s.classify(err)
	}
	return nil
}

// classify turns a queue-level error into the sink's runtime-error /
// logic-error split from spec.md §6.
func (s *LogSink) classify(err error) error {
	switch KindOf(err) {
	case ErrCapacityLimitReached:
		return fmt.Errorf("shm sink: queue %q is full: %w", s.q.Name(), err)
	case ErrMessageTooLarge:
		return fmt.Errorf("shm sink: log record exceeds queue capacity, shorten the message: %w", err)
	default:
		return err
	}
}

// Close detaches the sink's underlying queue.
func (s *LogSink) Close() error {
	return s.q.Close()
}
