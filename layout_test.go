package shm

import "testing"

func TestAlignUp(t *testing.T) {
	cases := []struct{ n, align, want uint32 }{
		{0, 32, 0},
		{1, 32, 32},
		{32, 32, 32},
		{33, 32, 64},
		{63, 64, 64},
	}
	for _, c := range cases {
		if got := alignUp(c.n, c.align); got != c.want {
			t.Fatalf("alignUp(%d,%d) = %d, want %d", c.n, c.align, got, c.want)
		}
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, n := range []uint32{1, 2, 4, 1024} {
		if !isPowerOfTwo(n) {
			t.Fatalf("%d should be a power of two", n)
		}
	}
	for _, n := range []uint32{0, 3, 5, 100} {
		if isPowerOfTwo(n) {
			t.Fatalf("%d should not be a power of two", n)
		}
	}
}

func TestSegmentSizeMatchesLayout(t *testing.T) {
	capacity, blockSize := uint32(16), uint32(64)
	got := segmentSize(capacity, blockSize)
	want := uint64(headerSize) + uint64(capacity)*uint64(blockSize)
	if got != want {
		t.Fatalf("segmentSize = %d, want %d", got, want)
	}
}

func TestAbiTagDeterministic(t *testing.T) {
	if canonicalAbiTag() != canonicalAbiTag() {
		t.Fatalf("abi tag is not deterministic across calls")
	}
	if abiTag != canonicalAbiTag() {
		t.Fatalf("package-level abiTag stale relative to canonicalAbiTag")
	}
}
