package shm

// EventHandle represents a handle to a system synchronization object.
// (named semaphore on POSIX, named event on Windows).
type EventHandle uintptr

// ShmHandle represents a handle to a shared memory object.
// (file descriptor on POSIX, file-mapping handle on Windows).
type ShmHandle uintptr

// CreateEvent creates a named synchronization event, initially
// unsignaled, or opens the existing one if that name is already taken.
//
// Parameters:
//   - name: Unique name for the event.
//
// Returns:
//   - EventHandle: The handle.
//   - error: System error if creation fails.
func CreateEvent(name string) (EventHandle, error) {
	return createEvent(name)
}

// OpenEvent opens an existing named synchronization event.
func OpenEvent(name string) (EventHandle, error) {
	return openEvent(name)
}

// WaitForEvent blocks until the event is signaled or timeout occurs.
// Spurious wakeups are permitted; callers must re-check their predicate.
//
// Parameters:
//   - h: The event handle.
//   - timeoutMs: Timeout in milliseconds.
func WaitForEvent(h EventHandle, timeoutMs uint32) {
	waitForEvent(h, timeoutMs)
}

// SignalEvent wakes up a waiting thread/process.
func SignalEvent(h EventHandle) {
	signalEvent(h)
}

// CloseEvent releases the local handle to the event.
func CloseEvent(h EventHandle) {
	closeEvent(h)
}

// UnlinkEvent removes the named event from the OS namespace. Handles
// already open in other processes remain valid.
func UnlinkEvent(name string) {
	unlinkEvent(name)
}

// CreateShm creates a new named shared memory region and maps it. It
// fails with ErrAlreadyExists if a region of that name exists.
//
// Parameters:
//   - name: Unique name for the region.
//   - size: Size in bytes.
//
// Returns:
//   - ShmHandle: Handle to the SHM object.
//   - uintptr: Mapped address in the current process.
//   - error: System error if creation fails.
func CreateShm(name string, size uint64) (ShmHandle, uintptr, error) {
	return createShm(name, size)
}

// OpenShm opens an existing named shared memory region and maps it.
// On Linux it fails with a setup error if the backing region is smaller
// than size; the Windows backend maps the whole region without checking
// its size.
func OpenShm(name string, size uint64) (ShmHandle, uintptr, error) {
	return openShm(name, size)
}

// CloseShm unmaps the region and closes the local handle. size must
// match the size the region was mapped with.
func CloseShm(h ShmHandle, addr uintptr, size uint64) {
	closeShm(h, addr, size)
}

// UnlinkShm removes the named shared memory region from the OS
// namespace. Existing mappings remain valid until unmapped.
func UnlinkShm(name string) {
	unlinkShm(name)
}

// ProcessAlive reports whether pid names a live process on this host.
// The robust mutex uses this to detect a lock holder that terminated
// without releasing.
func ProcessAlive(pid uint32) bool {
	return processAlive(pid)
}
