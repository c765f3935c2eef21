package shm

import (
	"os"
	"time"
)

const (
	mtxFree        = 0
	mtxHeld        = 1
	mtxRecoverable = 2
	// mtxHeldDirty is Held-but-not-yet-consistent: an acquirer claimed a
	// Recoverable mutex and must run clear_queue and call MakeConsistent
	// before any other acquirer is let in via Unlock.
	mtxHeldDirty = 3
)

// Mutex is the process-shared mutex of spec §4.C: mutual exclusion
// across every process attached to the segment, with owner-death
// recovery. The lock word and owning PID live in shared memory
// (mutexState); ws is process-local spin/backoff tuning state.
type Mutex struct {
	hdr *mutexState
	ws  *WaitStrategy
}

func newMutex(hdr *mutexState) *Mutex {
	return &Mutex{hdr: hdr, ws: NewWaitStrategy()}
}

// Lock blocks until the mutex is acquired. It returns ownerDead=true
// when the previous holder died without releasing: the caller must run
// the queue's clear_queue recovery and then call MakeConsistent before
// Unlock.
func (m *Mutex) Lock() (ownerDead bool) {
	pid := uint32(os.Getpid())
	for {
		if m.hdr.lock.CompareAndSwap(mtxFree, mtxHeld) {
			m.hdr.ownerPID.Store(pid)
			return false
		}

		if m.hdr.lock.Load() == mtxRecoverable {
			if m.hdr.lock.CompareAndSwap(mtxRecoverable, mtxHeldDirty) {
				m.hdr.ownerPID.Store(pid)
				return true
			}
			continue
		}

		condition := func() bool { return m.hdr.lock.Load() != mtxHeld }
		sleep := func() { time.Sleep(time.Microsecond) }
		if !m.ws.Wait(condition, sleep) {
			owner := m.hdr.ownerPID.Load()
			if owner != 0 && !ProcessAlive(owner) {
				if m.hdr.lock.CompareAndSwap(mtxHeld, mtxRecoverable) {
					Info("mutex owner died, marking recoverable", "pid", owner)
				}
			}
		}
	}
}

// MakeConsistent marks a mutex claimed from mtxRecoverable as
// consistent again, permitting Unlock to release it normally. Must be
// called after clear_queue has run and before Unlock, on every path
// where Lock returned ownerDead=true.
func (m *Mutex) MakeConsistent() {
	m.hdr.lock.CompareAndSwap(mtxHeldDirty, mtxHeld)
}

// Unlock releases the mutex. Calling it while ownerDead recovery is
// still pending (MakeConsistent not yet called) forces consistency
// first, so a caller that forgets never wedges survivors.
func (m *Mutex) Unlock() {
	m.hdr.lock.CompareAndSwap(mtxHeldDirty, mtxHeld)
	m.hdr.lock.Store(mtxFree)
}

// Guard is a scope-exit value guaranteeing release on every exit path,
// including panics, when paired with defer.
type Guard struct {
	m        *Mutex
	released bool
	// OwnerDead reports whether the guard's Lock call observed a dead
	// previous holder; when it is true the caller runs recovery and
	// MakeConsistent after Acquire returns and before Unlock.
	OwnerDead bool
}

// Acquire locks m and returns a Guard whose Unlock releases it exactly
// once regardless of how many times Unlock is called.
func Acquire(m *Mutex) *Guard {
	dead := m.Lock()
	return &Guard{m: m, OwnerDead: dead}
}

// Unlock releases the guarded mutex. Safe to call more than once.
func (g *Guard) Unlock() {
	if g.released {
		return
	}
	g.released = true
	g.m.Unlock()
}

// AutoUnlock releases a mutex already known to be held. It exists as a
// distinct name from (*Mutex).Unlock for the condvar Wait path, where
// the mutex is unlocked and relocked around a blocking wait rather than
// released for good.
func AutoUnlock(m *Mutex) {
	m.Unlock()
}
