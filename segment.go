package shm

import (
	"encoding/hex"
	"os"
	"runtime"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
)

// maxRawNameLen bounds the caller-supplied name before it is hashed
// down to fit OS object-name limits (NAME_MAX is 255 on Linux; leaving
// headroom for the leading slash platform_linux.go adds and the
// per-semaphore suffixes condvar.go adds).
const maxRawNameLen = 200

// attachSpinRounds bounds the ref_count poll of spec §3.3 to ~200
// rounds of spin/yield/sleep back-off.
const attachSpinRounds = 200

var openGroup singleflight.Group

// segment is the process-local record of one attached shared-memory
// mapping: the mapped header, the ring view over its block array, and
// the bookkeeping needed to detach exactly once.
type segment struct {
	rawName   string
	osName    string
	handle    ShmHandle
	base      uintptr
	byteLen   uint64
	hdr       *Header
	ring      *ring
	localRefs int32
}

// osObjectName maps a caller name to the identifier actually passed to
// the platform layer, hashing names too long for the OS's shared
// memory namespace with blake2b-128 so two long names never collide
// merely because they share a 200-byte prefix.
func osObjectName(rawName string) string {
	if len(rawName) <= maxRawNameLen {
		return rawName
	}
	h, err := blake2b.New(16, nil)
	if err != nil {
		panic("shm: blake2b-128 construction failed: " + err.Error())
	}
	h.Write([]byte(rawName))
	return hex.EncodeToString(h.Sum(nil))
}

func newSegment(rawName, osName string, h ShmHandle, base uintptr, byteLen uint64) *segment {
	hdr := headerAt(base)
	return &segment{
		rawName: rawName,
		osName:  osName,
		handle:  h,
		base:    base,
		byteLen: byteLen,
		hdr:     hdr,
		ring:    newRing(base, hdr.capacity, hdr.blockSize),
	}
}

func initHeader(base uintptr, capacity, blockSize uint32) {
	hdr := headerAt(base)
	hdr.capacity = capacity
	hdr.blockSize = blockSize
	hdr.abiTag.Store(abiTag)
	hdr.size.Store(0)
	hdr.putPos.Store(0)
	hdr.getPos.Store(0)
	hdr.mutex.lock.Store(mtxFree)
	hdr.mutex.ownerPID.Store(0)
	for i := range hdr.nonempty.slots {
		hdr.nonempty.slots[i].inUse.Store(0)
	}
	for i := range hdr.nonfull.slots {
		hdr.nonfull.slots[i].inUse.Store(0)
	}
}

// createOnlySegment implements spec §4.A create_only: fails with
// AlreadyExists if the named segment is already present.
func createOnlySegment(rawName string, capacity, blockSize uint32, perms os.FileMode) (*segment, error) {
	osName := osObjectName(rawName)
	byteLen := segmentSize(capacity, blockSize)

	h, base, err := CreateShm(osName, byteLen)
	if err != nil {
		if qerr, ok := err.(*QueueError); ok {
			qerr.Name = rawName
			qerr.Op = "create"
			return nil, qerr
		}
		return nil, &QueueError{Name: rawName, Op: "create", Kind: ErrSystemError, Detail: err.Error()}
	}

	initHeader(base, capacity, blockSize)
	seg := newSegment(rawName, osName, h, base, byteLen)
	// Publish last, with release ordering via atomic.Store, so any
	// process that observes a positive ref_count also observes a fully
	// initialized header.
	seg.hdr.refCount.Store(1)
	Info("segment created", "name", rawName, "capacity", capacity, "block_size", blockSize)
	return seg, nil
}

// openSegment implements spec §4.A open_only. Since the caller does not
// supply capacity/block_size, it maps the header first to discover the
// segment's true size, then remaps the whole region.
//
// A non-creator must not trust capacity/block_size until ref_count is
// observed positive (spec §3.2): reading them off the header-only
// mapping before that point can race the creator's own writes and hand
// back capacity=0 or a torn block_size. attachHeader runs the ref_count
// poll and validation against the header-only mapping first; only once
// it succeeds are capacity/block_size trusted to size the full remap.
func openSegment(rawName string) (*segment, error) {
	osName := osObjectName(rawName)

	h, base, err := OpenShm(osName, uint64(headerSize))
	if err != nil {
		if qerr, ok := err.(*QueueError); ok {
			qerr.Name = rawName
			qerr.Op = "open"
			return nil, qerr
		}
		return nil, &QueueError{Name: rawName, Op: "open", Kind: ErrSystemError, Detail: err.Error()}
	}

	hdr := headerAt(base)
	if err := attachHeader(rawName, hdr); err != nil {
		CloseShm(h, base, uint64(headerSize))
		return nil, err
	}

	capacity := hdr.capacity
	blockSize := hdr.blockSize
	byteLen := segmentSize(capacity, blockSize)

	h2, base2, err := OpenShm(osName, byteLen)
	if err != nil {
		// The header-only mapping is still live, so the ref_count claimed
		// by attachHeader above can be released through it.
		hdr.refCount.Add(^uint32(0))
		CloseShm(h, base, uint64(headerSize))
		if qerr, ok := err.(*QueueError); ok {
			qerr.Name = rawName
			qerr.Op = "open"
			return nil, qerr
		}
		return nil, &QueueError{Name: rawName, Op: "open", Kind: ErrSystemError, Detail: err.Error()}
	}
	CloseShm(h, base, uint64(headerSize))

	return newSegment(rawName, osName, h2, base2, byteLen), nil
}

// openOrCreateSegment implements spec §4.A open_or_create. The race
// between concurrent creators is decided by the platform's
// O_CREAT|O_EXCL (create_only); an in-process race between goroutines
// calling this function for the same name is additionally collapsed by
// singleflight so they issue one syscall sequence instead of N.
func openOrCreateSegment(rawName string, capacity, blockSize uint32, perms os.FileMode) (*segment, error) {
	osName := osObjectName(rawName)

	v, err, _ := openGroup.Do(osName, func() (interface{}, error) {
		seg, cerr := createOnlySegment(rawName, capacity, blockSize, perms)
		if cerr == nil {
			return seg, nil
		}
		if KindOf(cerr) != ErrAlreadyExists {
			return nil, cerr
		}
		// Lost the create race: adopt whatever capacity/block_size the
		// winner actually created, per spec §4.A.
		return openSegment(rawName)
	})
	if err != nil {
		return nil, err
	}
	return v.(*segment), nil
}

// attachHeader implements the ref_count poll of spec §3.3: wait for a
// positive ref_count, then CAS-increment it, validating the layout
// invariants once attached. It takes hdr directly, rather than a
// *segment, so it can run against a header-only mapping before the
// full segment size (which depends on hdr.capacity/hdr.blockSize) is
// known to be trustworthy.
func attachHeader(rawName string, hdr *Header) error {
	for i := 0; i < attachSpinRounds; i++ {
		rc := hdr.refCount.Load()
		if rc == 0 {
			spinBackoff(i)
			continue
		}
		if hdr.refCount.CompareAndSwap(rc, rc+1) {
			return validateHeaderAfterAttach(rawName, hdr)
		}
	}
	return &QueueError{Name: rawName, Op: "attach", Kind: ErrSetupError, Detail: "ref_count never became positive"}
}

// validateHeaderAfterAttach checks the invariants a non-creator must
// verify before trusting the header it just attached to (spec §3.2):
// the ABI tag, and capacity/block_size being sane enough to size a
// mapping and index the ring with. A CAS-won ref_count increment that
// fails validation is released again so it does not wedge detach().
func validateHeaderAfterAttach(rawName string, hdr *Header) error {
	if hdr.abiTag.Load() != abiTag {
		hdr.refCount.Add(^uint32(0))
		return &QueueError{Name: rawName, Op: "attach", Kind: ErrSetupError, Detail: "abi tag mismatch"}
	}
	if hdr.capacity == 0 {
		hdr.refCount.Add(^uint32(0))
		return &QueueError{Name: rawName, Op: "attach", Kind: ErrSetupError, Detail: "capacity is zero"}
	}
	if !isPowerOfTwo(hdr.blockSize) {
		hdr.refCount.Add(^uint32(0))
		return &QueueError{Name: rawName, Op: "attach", Kind: ErrSetupError, Detail: "block_size is not a power of two"}
	}
	return nil
}

func spinBackoff(round int) {
	switch {
	case round < 10:
		// Spin: re-poll ref_count immediately.
	case round < 100:
		runtime.Gosched()
	default:
		time.Sleep(time.Microsecond)
	}
}

// detach implements spec §3.3: decrement ref_count; if it reached
// zero, remove the named segment and unmap. The returned bool reports
// whether this call was the last detach, so the caller can also
// unlink the named semaphores backing this segment's condition
// variables — those live outside the segment struct and can't be
// removed from here.
func (s *segment) detach() bool {
	last := s.hdr.refCount.Add(^uint32(0)) == 0
	if last {
		Info("last detach, removing segment", "name", s.rawName)
		UnlinkShm(s.osName)
	} else {
		Debug("detached", "name", s.rawName)
	}
	CloseShm(s.handle, s.base, s.byteLen)
	return last
}

// removeSegment implements spec §4.A remove(name): unlink without
// attaching. Already-mapped attachments remain valid.
func removeSegment(rawName string) {
	UnlinkShm(osObjectName(rawName))
}
