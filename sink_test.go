package shm

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsoleSinkWrite(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSinkTo(&buf, "%l: %s")

	if err := s.Write(Record{Level: LevelInfo, Message: "started"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := buf.String(); got != "info: started\n" {
		t.Fatalf("got %q", got)
	}
}

func TestLogSinkWritesFormattedRecordToQueue(t *testing.T) {
	name := uniqueTestName("sink")
	q, err := CreateOnly(Config{Name: name, Capacity: 8, BlockSize: 128})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer Remove(name)

	sink := NewLogSink(q, "%l %s", false)
	guard := sink.Scopes().Push("job1")
	defer guard.Pop()

	if err := sink.Write(Record{Level: LevelError, Message: "boom"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, 128)
	n, err := q.ReceiveInto(buf)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	got := string(buf[:n])
	if !strings.Contains(got, "job1") || !strings.Contains(got, "boom") {
		t.Fatalf("got %q, want it to contain scope and message", got)
	}

	sink.Close()
}

func TestLogSinkSurfacesCapacityLimitAsRuntimeError(t *testing.T) {
	name := uniqueTestName("sink")
	q, err := CreateOnly(Config{Name: name, Capacity: 1, BlockSize: 32, OverflowPolicy: PolicyError})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { q.Close(); Remove(name) }()

	sink := NewLogSink(q, "%s", false)
	if err := sink.Write(Record{Message: "a"}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := sink.Write(Record{Message: "b"}); err == nil {
		t.Fatalf("expected a capacity error on the second write")
	}
}
