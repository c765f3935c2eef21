package shm

import "sync/atomic"

// engine implements spec.md §4.F over one attached segment. It holds no
// process-local state of its own beyond the primitives it was built
// with; the stop flag it consults on every call belongs to the façade
// that owns it (spec §9: the flag is per-process, not shared).
type engine struct {
	seg      *segment
	r        *ring
	mtx      *Mutex
	nonempty *CondVar
	nonfull  *CondVar
}

func newEngine(seg *segment, mtx *Mutex, nonempty, nonfull *CondVar) *engine {
	return &engine{seg: seg, r: seg.ring, mtx: mtx, nonempty: nonempty, nonfull: nonfull}
}

func (e *engine) blocksNeeded(payloadLen int) uint32 {
	return e.r.blocksNeeded(payloadLen)
}

// recoverIfOwnerDead runs clear_queue (spec §4.F.7) and marks the
// mutex consistent when Lock reported the previous holder died.
func (e *engine) recoverIfOwnerDead(ownerDead bool) {
	if !ownerDead {
		return
	}
	e.clearQueueLocked()
	e.mtx.MakeConsistent()
}

func (e *engine) clearQueueLocked() {
	e.seg.hdr.size.Store(0)
	e.seg.hdr.putPos.Store(0)
	e.seg.hdr.getPos.Store(0)
	e.nonfull.NotifyAll()
}

func abortedErr(name, op string) error {
	return &QueueError{Name: name, Op: op, Kind: ErrAborted}
}

func tooLargeErr(name, op string) error {
	return &QueueError{Name: name, Op: op, Kind: ErrMessageTooLarge}
}

// send implements spec §4.F.1.
func (e *engine) send(payload []byte, policy OverflowPolicy, stop *atomic.Bool) error {
	blocks := e.blocksNeeded(len(payload))
	if blocks > e.seg.hdr.capacity {
		return tooLargeErr(e.seg.rawName, "send")
	}
	if stop.Load() {
		return abortedErr(e.seg.rawName, "send")
	}

	guard := Acquire(e.mtx)
	defer guard.Unlock()
	e.recoverIfOwnerDead(guard.OwnerDead)

	for {
		if stop.Load() {
			return abortedErr(e.seg.rawName, "send")
		}
		if e.seg.hdr.capacity-e.seg.hdr.size.Load() >= blocks {
			break
		}
		if policy == PolicyError {
			return &QueueError{Name: e.seg.rawName, Op: "send", Kind: ErrCapacityLimitReached}
		}
		e.nonfull.Wait(e.mtx)
	}

	e.place(payload, blocks)
	return nil
}

// trySend implements spec §4.F.2: never blocks, never subject to
// PolicyBlock.
func (e *engine) trySend(payload []byte, stop *atomic.Bool) (bool, error) {
	blocks := e.blocksNeeded(len(payload))
	if blocks > e.seg.hdr.capacity {
		return false, tooLargeErr(e.seg.rawName, "try_send")
	}
	if stop.Load() {
		return false, abortedErr(e.seg.rawName, "try_send")
	}

	guard := Acquire(e.mtx)
	defer guard.Unlock()
	e.recoverIfOwnerDead(guard.OwnerDead)

	if e.seg.hdr.capacity-e.seg.hdr.size.Load() < blocks {
		return false, nil
	}

	e.place(payload, blocks)
	return true, nil
}

// place writes payload at put_pos, advances put_pos/size, and wakes a
// consumer if the queue was empty before this call. The caller must
// hold the mutex.
func (e *engine) place(payload []byte, blocks uint32) {
	wasEmpty := e.seg.hdr.size.Load() == 0
	putPos := e.seg.hdr.putPos.Load()
	e.r.write(putPos, payload)
	e.seg.hdr.putPos.Store((putPos + blocks) % e.seg.hdr.capacity)
	e.seg.hdr.size.Add(blocks)
	if wasEmpty {
		e.nonempty.NotifyOne()
	}
}

// receive implements spec §4.F.3.
func (e *engine) receive(handler func([]byte) error, stop *atomic.Bool) error {
	if stop.Load() {
		return abortedErr(e.seg.rawName, "receive")
	}

	guard := Acquire(e.mtx)
	defer guard.Unlock()
	e.recoverIfOwnerDead(guard.OwnerDead)

	for {
		if stop.Load() {
			return abortedErr(e.seg.rawName, "receive")
		}
		if e.seg.hdr.size.Load() > 0 {
			break
		}
		e.nonempty.Wait(e.mtx)
	}

	return e.deliver(handler)
}

// tryReceive implements spec §4.F.4.
func (e *engine) tryReceive(handler func([]byte) error, stop *atomic.Bool) (bool, error) {
	if stop.Load() {
		return false, abortedErr(e.seg.rawName, "try_receive")
	}

	guard := Acquire(e.mtx)
	defer guard.Unlock()
	e.recoverIfOwnerDead(guard.OwnerDead)

	if e.seg.hdr.size.Load() == 0 {
		return false, nil
	}

	if err := e.deliver(handler); err != nil {
		return false, err
	}
	return true, nil
}

// deliver reads the message at get_pos and hands its payload to
// handler in up to two spans (spec §4.F.3 step 4), without a bounce
// buffer. It only advances get_pos/size and signals nonfull once
// handler has consumed the payload successfully; a handler failure
// (notably BufferTooSmall) leaves the message in place so a retry with
// an adequate buffer observes it again (spec §7). The caller must hold
// the mutex.
func (e *engine) deliver(handler func([]byte) error) error {
	getPos := e.seg.hdr.getPos.Load()
	size := e.r.headerSizeAt(getPos)
	blocks := e.r.blocksNeeded(int(size))
	first, second := e.r.payloadSpans(getPos, size)

	if err := handler(first); err != nil {
		return err
	}
	if second != nil {
		if err := handler(second); err != nil {
			return err
		}
	}

	e.seg.hdr.getPos.Store((getPos + blocks) % e.seg.hdr.capacity)
	e.seg.hdr.size.Store(e.seg.hdr.size.Load() - blocks)
	e.nonfull.NotifyAll()
	return nil
}

// clear implements spec §4.F.6.
func (e *engine) clear() {
	guard := Acquire(e.mtx)
	defer guard.Unlock()
	e.clearQueueLocked()
}

// fixedBufferHandler is the standard handler of spec §4.F.8: it copies
// the delivered payload into dst and fails BufferTooSmall as soon as
// the cumulative write would overflow it, without having consumed
// anything from the message yet.
type fixedBufferHandler struct {
	dst []byte
	n   int
}

func (h *fixedBufferHandler) handle(p []byte) error {
	if h.n+len(p) > len(h.dst) {
		return &QueueError{Kind: ErrBufferTooSmall, Op: "receive"}
	}
	copy(h.dst[h.n:], p)
	h.n += len(p)
	return nil
}
