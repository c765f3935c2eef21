package shm

import "unsafe"

// ring is the block-indexed circular buffer of spec §4.E. size/put_pos/
// get_pos live in the Header (guarded by the mutex); ring only knows
// how to translate a block index into bytes and place/retrieve a
// message's payload, wrapping from block capacity-1 back to block 0.
type ring struct {
	buf       []byte
	capacity  uint32
	blockSize uint32
}

func newRing(segBase uintptr, capacity, blockSize uint32) *ring {
	base := blocksBase(segBase)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(base)), uint64(capacity)*uint64(blockSize))
	return &ring{buf: buf, capacity: capacity, blockSize: blockSize}
}

// blocksNeeded returns how many consecutive blocks a payload of the
// given length requires, including the first block's BlockHeader. A
// zero-length payload still needs exactly one block.
func (r *ring) blocksNeeded(payloadLen int) uint32 {
	total := uint32(payloadLen) + blockHeaderOverhead
	return (total + r.blockSize - 1) / r.blockSize
}

func (r *ring) blockOffset(pos uint32) uint64 {
	return uint64(pos) * uint64(r.blockSize)
}

// availableBeforeWrap returns how many payload bytes fit starting at
// pos's first block before the ring wraps back to block 0.
func (r *ring) availableBeforeWrap(pos uint32) uint64 {
	return uint64(r.capacity-pos)*uint64(r.blockSize) - uint64(blockHeaderOverhead)
}

// write places payload's BlockHeader and bytes starting at block
// putPos, wrapping to block 0 if the payload runs past the end of the
// ring. It never emits a second copy when no wrap is needed.
func (r *ring) write(putPos uint32, payload []byte) {
	off := r.blockOffset(putPos)
	bh := (*BlockHeader)(unsafe.Pointer(&r.buf[off]))
	bh.size = uint32(len(payload))

	payloadStart := off + uint64(blockHeaderOverhead)
	avail := r.availableBeforeWrap(putPos)

	n := uint64(len(payload))
	firstChunk := n
	if firstChunk > avail {
		firstChunk = avail
	}
	copy(r.buf[payloadStart:payloadStart+firstChunk], payload[:firstChunk])
	if firstChunk < n {
		copy(r.buf[0:n-firstChunk], payload[firstChunk:])
	}
}

// headerSizeAt reads the payload length recorded in the BlockHeader at
// block getPos.
func (r *ring) headerSizeAt(getPos uint32) uint32 {
	off := r.blockOffset(getPos)
	bh := (*BlockHeader)(unsafe.Pointer(&r.buf[off]))
	return bh.size
}

// payloadSpans returns up to two contiguous byte spans covering a
// size-byte payload stored at block getPos, so a caller can deliver it
// to a handler without an intermediate bounce buffer. second is nil
// when the payload does not wrap.
func (r *ring) payloadSpans(getPos, size uint32) (first, second []byte) {
	off := r.blockOffset(getPos)
	payloadStart := off + uint64(blockHeaderOverhead)
	avail := r.availableBeforeWrap(getPos)

	n := uint64(size)
	firstLen := n
	if firstLen > avail {
		firstLen = avail
	}
	first = r.buf[payloadStart : payloadStart+firstLen]
	if firstLen < n {
		second = r.buf[0 : n-firstLen]
	}
	return first, second
}
