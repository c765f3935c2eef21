package shm

import "os"

// Mode selects how a Queue constructor treats an existing segment.
type Mode int

const (
	// ModeOpenOnly fails with ErrNotFound if the segment is absent.
	ModeOpenOnly Mode = iota
	// ModeCreateOnly fails with ErrAlreadyExists if the segment is present.
	ModeCreateOnly
	// ModeOpenOrCreate creates the segment if absent, or attaches to it
	// if a concurrent creator won the race.
	ModeOpenOrCreate
)

// OverflowPolicy is a producer-side attribute (spec §3.1): each
// attaching process chooses independently how Send behaves when the
// queue is full.
type OverflowPolicy int

const (
	// PolicyBlock waits on the nonfull condition until room is
	// available or the façade is stopped.
	PolicyBlock OverflowPolicy = iota
	// PolicyError fails immediately with ErrCapacityLimitReached.
	PolicyError
)

// Config is the configuration surface of spec.md §6, passed to the
// façade constructors.
type Config struct {
	// Name is the segment's caller-visible identifier. Required.
	Name string
	// Mode selects create/open semantics. Defaults to ModeOpenOnly.
	Mode Mode
	// Capacity is the number of blocks. Required when Mode may create
	// the segment (ModeCreateOnly, ModeOpenOrCreate).
	Capacity uint32
	// BlockSize is the block size in bytes; must be a power of two.
	// Required when Mode may create the segment.
	BlockSize uint32
	// Permissions is accepted but not passed to the OS: the Linux
	// backend creates the segment with mode 0666 (filtered by the
	// process umask) and the Windows backend uses the default security
	// descriptor, whatever this field holds.
	Permissions os.FileMode
	// OverflowPolicy governs Send under a full queue. Defaults to
	// PolicyBlock.
	OverflowPolicy OverflowPolicy
}

func (c Config) validateForCreate() error {
	if c.Name == "" {
		return &QueueError{Name: c.Name, Op: "open", Kind: ErrSetupError, Detail: "name is required"}
	}
	if c.Capacity == 0 {
		return &QueueError{Name: c.Name, Op: "open", Kind: ErrSetupError, Detail: "capacity is required on create"}
	}
	if !isPowerOfTwo(c.BlockSize) {
		return &QueueError{Name: c.Name, Op: "open", Kind: ErrSetupError, Detail: "block_size must be a power of two"}
	}
	if c.BlockSize < blockHeaderOverhead+1 {
		return &QueueError{Name: c.Name, Op: "open", Kind: ErrSetupError, Detail: "block_size too small to hold a one-byte payload"}
	}
	return nil
}
