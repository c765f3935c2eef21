package shm

import (
	"fmt"
	"time"
)

// waitPollMs bounds each blocking wait on a condvar's slot semaphore.
// The predicate is always re-checked by the caller's loop afterward, so
// this only affects how quickly a producer/consumer notices that
// another process (rather than this one) changed size/put_pos/get_pos.
const waitPollMs = 50

// CondVar implements the nonempty/nonfull condition variables of spec
// §4.D as a pool of named semaphores (spec's listed strategy (a)): a
// waiter claims a free slot by setting its inUse flag in shared state,
// and blocks on that slot's semaphore; notifiers post to the semaphores
// of slots currently claimed. Slots carry no generation counter.
type CondVar struct {
	state *condState
	sems  [waiterPoolSize]EventHandle
	names [waiterPoolSize]string
}

func newCondVar(segName, cvName string, state *condState) (*CondVar, error) {
	cv := &CondVar{state: state}
	for i := 0; i < waiterPoolSize; i++ {
		name := fmt.Sprintf("%s_%s_%d", segName, cvName, i)
		h, err := CreateEvent(name)
		if err != nil {
			for j := 0; j < i; j++ {
				CloseEvent(cv.sems[j])
			}
			return nil, &QueueError{Name: segName, Op: "condvar", Kind: ErrSystemError, Detail: err.Error()}
		}
		cv.sems[i] = h
		cv.names[i] = name
	}
	return cv, nil
}

func (cv *CondVar) close() {
	for _, h := range cv.sems {
		CloseEvent(h)
	}
}

// unlink removes every named semaphore backing this condition variable
// from the OS namespace (spec §3.3 Detach). Only the last detacher of
// the owning segment may call this — a still-attached sibling process
// would otherwise have its handles orphaned by a name it can no longer
// reopen.
func (cv *CondVar) unlink() {
	for _, name := range cv.names {
		UnlinkEvent(name)
	}
}

// Wait atomically releases mtx and suspends the caller until notified,
// reacquiring mtx before returning. Spurious wakeups are permitted;
// callers must re-check their predicate in a loop.
func (cv *CondVar) Wait(mtx *Mutex) {
	slot := -1
	for i := range cv.state.slots {
		if cv.state.slots[i].inUse.CompareAndSwap(0, 1) {
			slot = i
			break
		}
	}

	if slot < 0 {
		// Pool exhausted: treat as an immediate spurious wakeup rather
		// than blocking indefinitely with no way to be notified.
		AutoUnlock(mtx)
		time.Sleep(time.Millisecond)
		mtx.Lock()
		return
	}

	AutoUnlock(mtx)
	WaitForEvent(cv.sems[slot], waitPollMs)
	cv.state.slots[slot].inUse.Store(0)
	mtx.Lock()
}

// NotifyOne wakes at least one waiter, if any are currently blocked.
func (cv *CondVar) NotifyOne() {
	for i := range cv.state.slots {
		if cv.state.slots[i].inUse.Load() == 1 {
			SignalEvent(cv.sems[i])
			return
		}
	}
}

// NotifyAll wakes every waiter currently blocked.
func (cv *CondVar) NotifyAll() {
	for i := range cv.state.slots {
		if cv.state.slots[i].inUse.Load() == 1 {
			SignalEvent(cv.sems[i])
		}
	}
}
