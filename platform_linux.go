//go:build linux

package shm

/*
#include <fcntl.h>
#include <sys/stat.h>
#include <semaphore.h>
#include <sys/mman.h>
#include <unistd.h>
#include <stdlib.h>
#include <time.h>
#include <errno.h>

typedef struct {
	int fd;
	int err;
} fd_result;

// shm_open with O_CREAT|O_EXCL: fails with EEXIST if the segment already
// exists. Used for create_only and as the first half of open_or_create.
static fd_result create_shm_fd_excl(const char* name) {
	fd_result r;
	errno = 0;
	r.fd = shm_open(name, O_CREAT | O_EXCL | O_RDWR, 0666);
	r.err = errno;
	return r;
}

// shm_open without O_CREAT: fails with ENOENT if absent.
static fd_result open_shm_fd(const char* name) {
	fd_result r;
	errno = 0;
	r.fd = shm_open(name, O_RDWR, 0666);
	r.err = errno;
	return r;
}

static long get_file_size(int fd) {
	struct stat st;
	if (fstat(fd, &st) == -1) return -1;
	return st.st_size;
}

typedef struct {
	sem_t* sem;
	int err;
} sem_result;

static sem_result create_sem(const char* name) {
	sem_result r;
	errno = 0;
	r.sem = sem_open(name, O_CREAT | O_EXCL, 0644, 0);
	r.err = errno;
	return r;
}

static sem_result open_sem_existing(const char* name) {
	sem_result r;
	errno = 0;
	r.sem = sem_open(name, 0);
	r.err = errno;
	return r;
}

static int wait_sem(sem_t* sem, int ms) {
	struct timespec ts;
	clock_gettime(CLOCK_REALTIME, &ts);
	ts.tv_sec += ms / 1000;
	ts.tv_nsec += (ms % 1000) * 1000000;
	if (ts.tv_nsec >= 1000000000) {
		ts.tv_sec++;
		ts.tv_nsec -= 1000000000;
	}
	return sem_timedwait(sem, &ts);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

func errnoToError(name string, op string, errno C.int) error {
	switch errno {
	case 0:
		return nil
	case C.int(unix.EEXIST):
		return &QueueError{Name: name, Kind: ErrAlreadyExists, Op: op}
	case C.int(unix.ENOENT):
		return &QueueError{Name: name, Kind: ErrNotFound, Op: op}
	case C.int(unix.EACCES), C.int(unix.EPERM):
		return &QueueError{Name: name, Kind: ErrPermissionDenied, Op: op}
	default:
		return &QueueError{Name: name, Kind: ErrSystemError, Op: op, Native: int(errno)}
	}
}

func shmObjectName(name string) string {
	return "/" + name
}

// createEventExcl creates a named semaphore, failing if it already
// exists. createEvent calls it first and falls back to openEvent on
// EEXIST, so a race between two attachers is decided by the OS, not by
// the caller's own bookkeeping.
func createEventExcl(name string) (EventHandle, error) {
	cName := C.CString(shmObjectName(name))
	defer C.free(unsafe.Pointer(cName))

	r := C.create_sem(cName)
	if r.sem == nil {
		return 0, errnoToError(name, "sem_open", r.err)
	}
	return EventHandle(unsafe.Pointer(r.sem)), nil
}

func createEvent(name string) (EventHandle, error) {
	h, err := createEventExcl(name)
	if err == nil {
		return h, nil
	}
	if qerr, ok := err.(*QueueError); ok && qerr.Kind == ErrAlreadyExists {
		return openEvent(name)
	}
	return 0, err
}

func openEvent(name string) (EventHandle, error) {
	cName := C.CString(shmObjectName(name))
	defer C.free(unsafe.Pointer(cName))

	r := C.open_sem_existing(cName)
	if r.sem == nil {
		return 0, errnoToError(name, "sem_open", r.err)
	}
	return EventHandle(unsafe.Pointer(r.sem)), nil
}

func signalEvent(h EventHandle) {
	C.sem_post((*C.sem_t)(unsafe.Pointer(h)))
}

func waitForEvent(h EventHandle, timeoutMs uint32) {
	C.wait_sem((*C.sem_t)(unsafe.Pointer(h)), C.int(timeoutMs))
}

func closeEvent(h EventHandle) {
	C.sem_close((*C.sem_t)(unsafe.Pointer(h)))
}

func unlinkEvent(name string) {
	cName := C.CString(shmObjectName(name))
	defer C.free(unsafe.Pointer(cName))
	C.sem_unlink(cName)
}

func mapShm(fd C.int, size uint64) (uintptr, error) {
	addr := C.mmap(nil, C.size_t(size), C.PROT_READ|C.PROT_WRITE, C.MAP_SHARED, fd, 0)
	if addr == C.MAP_FAILED {
		return 0, fmt.Errorf("mmap failed")
	}
	return uintptr(addr), nil
}

func createShm(name string, size uint64) (ShmHandle, uintptr, error) {
	cName := C.CString(shmObjectName(name))
	defer C.free(unsafe.Pointer(cName))

	r := C.create_shm_fd_excl(cName)
	if r.fd < 0 {
		return 0, 0, errnoToError(name, "shm_open", r.err)
	}

	if C.ftruncate(r.fd, C.long(size)) == -1 {
		C.close(r.fd)
		C.shm_unlink(cName)
		return 0, 0, &QueueError{Name: name, Kind: ErrSetupError, Op: "ftruncate"}
	}

	addr, err := mapShm(r.fd, size)
	if err != nil {
		C.close(r.fd)
		C.shm_unlink(cName)
		return 0, 0, &QueueError{Name: name, Kind: ErrSystemError, Op: "mmap"}
	}

	return ShmHandle(uintptr(r.fd)), addr, nil
}

func openShm(name string, size uint64) (ShmHandle, uintptr, error) {
	cName := C.CString(shmObjectName(name))
	defer C.free(unsafe.Pointer(cName))

	r := C.open_shm_fd(cName)
	if r.fd < 0 {
		return 0, 0, errnoToError(name, "shm_open", r.err)
	}

	curSize := C.get_file_size(r.fd)
	if int64(curSize) < int64(size) {
		C.close(r.fd)
		return 0, 0, &QueueError{Name: name, Kind: ErrSetupError, Op: "open", Detail: "segment smaller than expected header/block layout"}
	}

	addr, err := mapShm(r.fd, size)
	if err != nil {
		C.close(r.fd)
		return 0, 0, &QueueError{Name: name, Kind: ErrSystemError, Op: "mmap"}
	}

	return ShmHandle(uintptr(r.fd)), addr, nil
}

func closeShm(h ShmHandle, addr uintptr, size uint64) {
	if addr != 0 {
		C.munmap(unsafe.Pointer(addr), C.size_t(size))
	}
	if h != 0 {
		C.close(C.int(h))
	}
}

func unlinkShm(name string) {
	cName := C.CString(shmObjectName(name))
	defer C.free(unsafe.Pointer(cName))
	C.shm_unlink(cName)
}

// processAlive probes pid with signal 0, the standard POSIX idiom for
// liveness checks without actually signaling the process.
func processAlive(pid uint32) bool {
	err := unix.Kill(int(pid), 0)
	if err == nil {
		return true
	}
	return err != unix.ESRCH
}
