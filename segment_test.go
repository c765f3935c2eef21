package shm

import "testing"

func TestCreateOpenDetachLifecycle(t *testing.T) {
	name := uniqueTestName("seg")
	seg, err := createOnlySegment(name, 4, 64, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := seg.hdr.refCount.Load(); got != 1 {
		t.Fatalf("ref_count after create = %d, want 1", got)
	}

	seg2, err := openSegment(name)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := seg.hdr.refCount.Load(); got != 2 {
		t.Fatalf("ref_count after second attach = %d, want 2", got)
	}

	seg2.detach()
	if got := seg.hdr.refCount.Load(); got != 1 {
		t.Fatalf("ref_count after one detach = %d, want 1", got)
	}

	seg.detach()

	if _, err := openSegment(name); KindOf(err) != ErrNotFound {
		t.Fatalf("expected NotFound after last detach, got %v", err)
	}
}

func TestCreateOnlyFailsIfExists(t *testing.T) {
	name := uniqueTestName("seg")
	seg, err := createOnlySegment(name, 2, 32, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer seg.detach()

	if _, err := createOnlySegment(name, 2, 32, 0); KindOf(err) != ErrAlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestOpenOrCreateAdoptsExistingLayout(t *testing.T) {
	name := uniqueTestName("seg")
	seg, err := createOnlySegment(name, 8, 128, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer seg.detach()

	seg2, err := openOrCreateSegment(name, 999, 4096, 0)
	if err != nil {
		t.Fatalf("open_or_create: %v", err)
	}
	defer seg2.detach()

	if seg2.hdr.capacity != 8 || seg2.hdr.blockSize != 128 {
		t.Fatalf("adopted wrong layout: capacity=%d block_size=%d, want 8/128", seg2.hdr.capacity, seg2.hdr.blockSize)
	}
}

func TestOpenRefusesAbiTagMismatch(t *testing.T) {
	name := uniqueTestName("seg")
	seg, err := createOnlySegment(name, 4, 64, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer seg.detach()

	seg.hdr.abiTag.Store(seg.hdr.abiTag.Load() + 1)

	if _, err := openSegment(name); KindOf(err) != ErrSetupError {
		t.Fatalf("expected SetupError on abi tag mismatch, got %v", err)
	}
	if got := seg.hdr.refCount.Load(); got != 1 {
		t.Fatalf("ref_count after a refused attach = %d, want 1 (attach must release its claim)", got)
	}
}

func TestOpenRefusesZeroCapacity(t *testing.T) {
	name := uniqueTestName("seg")
	seg, err := createOnlySegment(name, 4, 64, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer seg.detach()

	seg.hdr.capacity = 0

	if _, err := openSegment(name); KindOf(err) != ErrSetupError {
		t.Fatalf("expected SetupError on zero capacity, got %v", err)
	}
	if got := seg.hdr.refCount.Load(); got != 1 {
		t.Fatalf("ref_count after a refused attach = %d, want 1 (attach must release its claim)", got)
	}
}

func TestOsObjectNameHashesLongNames(t *testing.T) {
	short := "a-normal-queue-name"
	if osObjectName(short) != short {
		t.Fatalf("short names should pass through unchanged")
	}

	long := make([]byte, maxRawNameLen+50)
	for i := range long {
		long[i] = 'x'
	}
	hashed := osObjectName(string(long))
	if len(hashed) > maxRawNameLen {
		t.Fatalf("hashed name still too long: %d bytes", len(hashed))
	}
	if hashed == string(long) {
		t.Fatalf("long name was not hashed")
	}
}
