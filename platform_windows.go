//go:build windows

package shm

import (
	"syscall"
	"unsafe"
)

var (
	kernel32                = syscall.NewLazyDLL("kernel32.dll")
	procCreateEventW        = kernel32.NewProc("CreateEventW")
	procOpenEventW          = kernel32.NewProc("OpenEventW")
	procSetEvent            = kernel32.NewProc("SetEvent")
	procWaitForSingleObject = kernel32.NewProc("WaitForSingleObject")
	procCloseHandle         = kernel32.NewProc("CloseHandle")
	procCreateFileMappingW  = kernel32.NewProc("CreateFileMappingW")
	procOpenFileMappingW    = kernel32.NewProc("OpenFileMappingW")
	procMapViewOfFile       = kernel32.NewProc("MapViewOfFile")
	procUnmapViewOfFile     = kernel32.NewProc("UnmapViewOfFile")
	procOpenProcess         = kernel32.NewProc("OpenProcess")
	procGetExitCodeProcess  = kernel32.NewProc("GetExitCodeProcess")
)

const (
	fileMapAllAccess = 0xF001F
	eventAllAccess   = 0x1F0003

	errorAlreadyExists = 183
	errorFileNotFound  = 2

	processQueryLimitedInformation = 0x1000
	stillActive                    = 259
)

func namespaced(name string) (*uint16, error) {
	return syscall.UTF16PtrFromString("Local\\" + name)
}

func createEvent(name string) (EventHandle, error) {
	n, err := namespaced(name)
	if err != nil {
		return 0, err
	}
	r1, _, callErr := procCreateEventW.Call(0, 0, 0, uintptr(unsafe.Pointer(n)))
	if r1 == 0 {
		return 0, &QueueError{Name: name, Op: "CreateEventW", Kind: ErrSystemError, Native: int(callErr.(syscall.Errno))}
	}
	return EventHandle(r1), nil
}

func openEvent(name string) (EventHandle, error) {
	n, err := namespaced(name)
	if err != nil {
		return 0, err
	}
	r1, _, callErr := procOpenEventW.Call(uintptr(eventAllAccess), 0, uintptr(unsafe.Pointer(n)))
	if r1 == 0 {
		return 0, mapWinError(name, "OpenEventW", callErr)
	}
	return EventHandle(r1), nil
}

func signalEvent(h EventHandle) {
	procSetEvent.Call(uintptr(h))
}

func waitForEvent(h EventHandle, timeoutMs uint32) {
	procWaitForSingleObject.Call(uintptr(h), uintptr(timeoutMs))
}

func closeEvent(h EventHandle) {
	procCloseHandle.Call(uintptr(h))
}

func unlinkEvent(name string) {
	// Named kernel objects on Windows are reference-counted and vanish
	// once the last handle closes; there is no separate unlink call.
}

func mapWinError(name, op string, callErr error) error {
	errno, _ := callErr.(syscall.Errno)
	switch uintptr(errno) {
	case errorFileNotFound:
		return &QueueError{Name: name, Op: op, Kind: ErrNotFound}
	case 5: // ERROR_ACCESS_DENIED
		return &QueueError{Name: name, Op: op, Kind: ErrPermissionDenied}
	default:
		return &QueueError{Name: name, Op: op, Kind: ErrSystemError, Native: int(errno)}
	}
}

func createShm(name string, size uint64) (ShmHandle, uintptr, error) {
	n, err := namespaced(name)
	if err != nil {
		return 0, 0, err
	}

	hMap, _, callErr := procCreateFileMappingW.Call(
		uintptr(syscall.InvalidHandle),
		0,
		uintptr(syscall.PAGE_READWRITE),
		uintptr(size>>32),
		uintptr(size&0xFFFFFFFF),
		uintptr(unsafe.Pointer(n)),
	)
	if hMap == 0 {
		return 0, 0, mapWinError(name, "CreateFileMappingW", callErr)
	}
	if errno, ok := callErr.(syscall.Errno); ok && uintptr(errno) == errorAlreadyExists {
		procCloseHandle.Call(hMap)
		return 0, 0, &QueueError{Name: name, Op: "CreateFileMappingW", Kind: ErrAlreadyExists}
	}

	addr, _, callErr := procMapViewOfFile.Call(hMap, uintptr(fileMapAllAccess), 0, 0, 0)
	if addr == 0 {
		procCloseHandle.Call(hMap)
		return 0, 0, mapWinError(name, "MapViewOfFile", callErr)
	}

	return ShmHandle(hMap), addr, nil
}

func openShm(name string, size uint64) (ShmHandle, uintptr, error) {
	n, err := namespaced(name)
	if err != nil {
		return 0, 0, err
	}

	hMap, _, callErr := procOpenFileMappingW.Call(uintptr(fileMapAllAccess), 0, uintptr(unsafe.Pointer(n)))
	if hMap == 0 {
		return 0, 0, mapWinError(name, "OpenFileMappingW", callErr)
	}

	addr, _, callErr := procMapViewOfFile.Call(hMap, uintptr(fileMapAllAccess), 0, 0, 0)
	if addr == 0 {
		procCloseHandle.Call(hMap)
		return 0, 0, mapWinError(name, "MapViewOfFile", callErr)
	}

	return ShmHandle(hMap), addr, nil
}

func closeShm(h ShmHandle, addr uintptr, size uint64) {
	if addr != 0 {
		procUnmapViewOfFile.Call(addr)
	}
	if h != 0 {
		procCloseHandle.Call(uintptr(h))
	}
}

func unlinkShm(name string) {
	// Named file mappings on Windows disappear once the last handle
	// closes; there is no separate unlink call.
}

// processAlive reports whether pid names a live process, by attempting
// to open it and checking its exit code is still STILL_ACTIVE.
func processAlive(pid uint32) bool {
	h, _, _ := procOpenProcess.Call(uintptr(processQueryLimitedInformation), 0, uintptr(pid))
	if h == 0 {
		return false
	}
	defer procCloseHandle.Call(h)

	var exitCode uint32
	r, _, _ := procGetExitCodeProcess.Call(h, uintptr(unsafe.Pointer(&exitCode)))
	if r == 0 {
		return false
	}
	return exitCode == stillActive
}
