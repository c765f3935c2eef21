package shm

import (
	"testing"
	"time"
)

func TestRecordFormat(t *testing.T) {
	r := Record{
		Time:    time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC),
		Level:   LevelWarn,
		Logger:  "core",
		Message: "disk low",
	}
	got := r.Format("%t [%l] %n: %s")
	want := "2026-08-06T12:00:00Z [warn] core: disk low"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRecordFormatUnknownVerbEscaped(t *testing.T) {
	r := Record{Message: "hi"}
	if got := r.Format("%s%%z"); got != "hi%z" {
		t.Fatalf("got %q, want %q", got, "hi%z")
	}
}

func TestRecordFormatTrailingPercent(t *testing.T) {
	r := Record{Message: "hi"}
	if got := r.Format("%s%"); got != "hi%" {
		t.Fatalf("got %q, want %q", got, "hi%")
	}
}
