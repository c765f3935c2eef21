package shm

import "sync/atomic"

// noCopy marks Queue non-copyable to `go vet -copylocks`, mirroring the
// teacher's convention of only ever handing back pointers to stateful
// handles rather than values.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Queue is the per-process handle façade of spec.md §4.G: the mapped
// segment, the primitives built over it, and a process-local stop flag
// that belongs to this façade alone (spec §9 — never stored in the
// shared header).
type Queue struct {
	noCopy noCopy

	name           string
	overflowPolicy OverflowPolicy

	seg      *segment
	mtx      *Mutex
	nonempty *CondVar
	nonfull  *CondVar
	eng      *engine

	stop atomic.Bool
}

// New opens or creates a queue per cfg.Mode. CreateOnly, OpenOrCreate
// and OpenOnly are thin wrappers that pin the mode for callers who
// prefer the mode spelled out at the call site.
func New(cfg Config) (*Queue, error) {
	if cfg.Name == "" {
		return nil, &QueueError{Op: "open", Kind: ErrSetupError, Detail: "name is required"}
	}

	var open func() (*segment, error)
	switch cfg.Mode {
	case ModeCreateOnly:
		open = func() (*segment, error) {
			if err := cfg.validateForCreate(); err != nil {
				return nil, err
			}
			return createOnlySegment(cfg.Name, cfg.Capacity, cfg.BlockSize, cfg.Permissions)
		}
	case ModeOpenOrCreate:
		open = func() (*segment, error) {
			if err := cfg.validateForCreate(); err != nil {
				return nil, err
			}
			return openOrCreateSegment(cfg.Name, cfg.Capacity, cfg.BlockSize, cfg.Permissions)
		}
	default:
		open = func() (*segment, error) { return openSegment(cfg.Name) }
	}

	return newQueue(cfg, open)
}

// CreateOnly opens cfg with mode forced to ModeCreateOnly.
func CreateOnly(cfg Config) (*Queue, error) {
	cfg.Mode = ModeCreateOnly
	return New(cfg)
}

// OpenOrCreate opens cfg with mode forced to ModeOpenOrCreate.
func OpenOrCreate(cfg Config) (*Queue, error) {
	cfg.Mode = ModeOpenOrCreate
	return New(cfg)
}

// OpenOnly opens cfg with mode forced to ModeOpenOnly.
func OpenOnly(cfg Config) (*Queue, error) {
	cfg.Mode = ModeOpenOnly
	return New(cfg)
}

// Remove implements spec §4.A remove(name): unlinks the named segment
// without attaching to it. Processes already attached keep working
// until they detach.
func Remove(name string) {
	removeSegment(name)
}

func newQueue(cfg Config, open func() (*segment, error)) (*Queue, error) {
	seg, err := open()
	if err != nil {
		return nil, err
	}
	atomic.AddInt32(&seg.localRefs, 1)

	mtx := newMutex(&seg.hdr.mutex)

	nonempty, err := newCondVar(seg.osName, "nonempty", &seg.hdr.nonempty)
	if err != nil {
		detachLocal(seg)
		return nil, err
	}
	nonfull, err := newCondVar(seg.osName, "nonfull", &seg.hdr.nonfull)
	if err != nil {
		nonempty.close()
		detachLocal(seg)
		return nil, err
	}

	return &Queue{
		name:           cfg.Name,
		overflowPolicy: cfg.OverflowPolicy,
		seg:            seg,
		mtx:            mtx,
		nonempty:       nonempty,
		nonfull:        nonfull,
		eng:            newEngine(seg, mtx, nonempty, nonfull),
	}, nil
}

// detachLocal decrements the segment's in-process reference count and
// only performs the real header ref_count decrement (and, if it drops
// to zero, removal) once every in-process holder — including any
// obtained through openOrCreateSegment's singleflight collapsing — has
// released it. The returned bool reports whether the segment itself
// was just removed, i.e. whether this was the last detach across every
// attached process.
func detachLocal(seg *segment) bool {
	if atomic.AddInt32(&seg.localRefs, -1) > 0 {
		return false
	}
	return seg.detach()
}

// Name returns the caller-supplied segment name.
func (q *Queue) Name() string { return q.name }

// Capacity returns the segment's block capacity, a write-once field
// safe to read without locking.
func (q *Queue) Capacity() uint32 { return q.seg.hdr.capacity }

// BlockSize returns the segment's block size in bytes, a write-once
// field safe to read without locking.
func (q *Queue) BlockSize() uint32 { return q.seg.hdr.blockSize }

// IsOpen reports whether the façade currently owns a mapping.
func (q *Queue) IsOpen() bool { return q.seg != nil }

// Send implements spec §4.F.1.
func (q *Queue) Send(payload []byte) error {
	return q.eng.send(payload, q.overflowPolicy, &q.stop)
}

// TrySend implements spec §4.F.2.
func (q *Queue) TrySend(payload []byte) (bool, error) {
	return q.eng.trySend(payload, &q.stop)
}

// Receive implements spec §4.F.3, invoking handler with up to two
// payload spans.
func (q *Queue) Receive(handler func([]byte) error) error {
	return q.eng.receive(handler, &q.stop)
}

// TryReceive implements spec §4.F.4.
func (q *Queue) TryReceive(handler func([]byte) error) (bool, error) {
	return q.eng.tryReceive(handler, &q.stop)
}

// ReceiveInto is the fixed-buffer receive helper of spec §4.F.8: it
// blocks until a message is available and copies it into dst, failing
// BufferTooSmall (without consuming the message) if dst is too small.
func (q *Queue) ReceiveInto(dst []byte) (int, error) {
	h := &fixedBufferHandler{dst: dst}
	if err := q.Receive(h.handle); err != nil {
		return 0, err
	}
	return h.n, nil
}

// TryReceiveInto is the non-blocking counterpart of ReceiveInto.
func (q *Queue) TryReceiveInto(dst []byte) (int, bool, error) {
	h := &fixedBufferHandler{dst: dst}
	ok, err := q.TryReceive(h.handle)
	if err != nil || !ok {
		return 0, ok, err
	}
	return h.n, true, nil
}

// Stop implements spec §4.F.5: sets the local flag and wakes every
// waiter blocked on the segment's condvars. Waiters of other façades
// attached to the same segment see only a spurious wakeup: their own
// stop flag is unset, so they re-check and wait again.
func (q *Queue) Stop() {
	q.stop.Store(true)
	guard := Acquire(q.mtx)
	defer guard.Unlock()
	q.eng.recoverIfOwnerDead(guard.OwnerDead)
	q.nonempty.NotifyAll()
	q.nonfull.NotifyAll()
}

// Reset implements spec §4.F.5: clears the local stop flag.
func (q *Queue) Reset() {
	q.stop.Store(false)
}

// Clear implements spec §4.F.6.
func (q *Queue) Clear() {
	q.eng.clear()
}

// Close detaches this façade from the segment (spec §3.3 Detach). It is
// not safe to call concurrently with other methods on the same Queue,
// nor to use the Queue afterward.
func (q *Queue) Close() error {
	if q.seg == nil {
		return nil
	}
	q.nonempty.close()
	q.nonfull.close()
	if detachLocal(q.seg) {
		// Last detach across every attached process: destroy the named
		// semaphores backing the condition variables along with the
		// segment detach() already unlinked, so nothing outlives it in
		// the OS namespace (spec §3.3).
		q.nonempty.unlink()
		q.nonfull.unlink()
	}
	q.seg = nil
	return nil
}
