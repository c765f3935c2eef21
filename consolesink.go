package shm

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ConsoleSink writes formatted records straight to an io.Writer
// (stdout by default), matching the original source's console/stdout
// sink duo. It exists alongside LogSink so the sink adapter contract
// has more than one implementation to exercise: it never touches a
// Queue at all.
type ConsoleSink struct {
	mu      sync.Mutex
	w       io.Writer
	pattern string
}

// NewConsoleSink returns a sink writing to os.Stdout with DefaultPattern.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{w: os.Stdout, pattern: DefaultPattern}
}

// NewConsoleSinkTo returns a sink writing to an arbitrary writer with a
// caller-supplied pattern.
func NewConsoleSinkTo(w io.Writer, pattern string) *ConsoleSink {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &ConsoleSink{w: w, pattern: pattern}
}

// Write formats r and writes it followed by a newline. Concurrent
// writers are serialized so lines from different goroutines never
// interleave.
func (c *ConsoleSink) Write(r Record) error {
	line := r.Format(c.pattern)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, line)
	return err
}
