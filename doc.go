// Package shm implements a named, bounded, fixed-block interprocess
// message queue backed by a shared memory segment. Any number of
// processes may attach to a queue by name and exchange discrete byte
// messages with at-most-once delivery and FIFO ordering; the queue
// survives the death of individual participants so long as at least
// one process keeps the segment mapped.
//
// The core pieces are the on-segment layout (layout.go), the
// shared-segment mapper (segment.go, platform.go and its platform_*.go
// backends), a process-shared robust mutex (mutex.go) and condition
// variables (condvar.go), a block-indexed ring allocator (ring.go), the
// send/receive operation engine (engine.go), and the per-process handle
// façade (queue.go).
//
// LogSink demonstrates an external consumer of the queue: a text sink
// that formats a Record and hands the bytes to Queue.Send/TrySend
// without holding the queue's mutex across formatting. ConsoleSink
// formats Records the same way but writes them to an io.Writer and
// never touches a Queue.
package shm
