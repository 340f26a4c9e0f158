// Package ring implements the single-producer/single-consumer chunked byte
// queue described in spec.md §4.1: a fixed byte region, shared between two
// processes via mmap, carrying a stream of length-prefixed chunks with
// futex-based wakeup. It is the hardest and most novel part of Kaze.
package ring

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kaze-mesh/kaze/internal/futex"
	"github.com/kaze-mesh/kaze/internal/xerror"
)

const lenPrefixSize = 4

// Ring is one direction of a Channel: a fixed data region plus a header
// of cursors and atomics. The writer owns tail, the reader owns head;
// used and need are shared.
//
// A Ring does not know about Channel-level shutdown directly; Channel
// wires a shared closed-flags word and per-direction bit into
// WithClose so that shutdown(READ)/shutdown(WRITE) (spec §4.2) can close
// exactly the rings it should.
type Ring struct {
	hdr  header
	data []byte

	closed   *uint32
	closeBit uint32
}

// Attach wraps existing (possibly just-created) shared memory as a Ring.
// headerBuf must be exactly HeaderSize bytes and dataBuf must already be
// sized per Init (or a previous session's Init).
func Attach(headerBuf, dataBuf []byte) *Ring {
	return &Ring{hdr: newHeader(headerBuf), data: dataBuf}
}

// WithClose wires the Ring to a shared channel-level closed-flags word:
// bit is tested on every blocking operation on this Ring's direction.
func (r *Ring) WithClose(closedFlags *uint32, bit uint32) {
	r.closed = closedFlags
	r.closeBit = bit
}

// Init zeroes head/tail/used/need and records the data region size. Only
// the creating side of a Channel calls this (spec §4.2 "On create").
func Init(headerBuf []byte, dataSize uint32) error {
	if dataSize%4 != 0 {
		return fmt.Errorf("ring: data size %d is not a multiple of 4: %w", dataSize, xerror.ErrInvalid)
	}
	h := newHeader(headerBuf)
	atomic.StoreUint32(h.size, dataSize)
	atomic.StoreUint32(h.head, 0)
	atomic.StoreUint32(h.tail, 0)
	atomic.StoreUint32(h.used, 0)
	atomic.StoreUint32(h.need, 0)
	return nil
}

func roundUp4(n uint32) uint32 {
	return (n + 3) &^ 3
}

// chunkLen is the total on-wire length (header + payload + padding) for a
// payload of length n.
func chunkLen(n int) uint32 {
	return roundUp4(lenPrefixSize + uint32(n))
}

func (r *Ring) size() uint32 { return atomic.LoadUint32(r.hdr.size) }

func (r *Ring) isClosed() bool {
	if r.closed == nil {
		return false
	}
	return atomic.LoadUint32(r.closed)&r.closeBit != 0
}

// writeWrapped copies p into the data region starting at off, wrapping
// around the end of the buffer as needed.
func (r *Ring) writeWrapped(off uint32, p []byte) {
	size := r.size()
	n := copy(r.data[off:size], p)
	if n < len(p) {
		copy(r.data[0:], p[n:])
	}
}

// readWrapped returns p, split into up to two slices, starting at off for
// length n, without copying.
func (r *Ring) readWrapped(off, n uint32) (a, b []byte) {
	size := r.size()
	avail := size - off
	if n <= avail {
		return r.data[off : off+n], nil
	}
	return r.data[off:size], r.data[0 : n-avail]
}

// readContig is like readWrapped but always returns one contiguous
// slice, copying across the wrap boundary when necessary. Used for the
// fixed-size, never-split length prefix and for callers that need a
// contiguous view of a short wrapped payload.
func (r *Ring) readContig(off, n uint32, scratch []byte) []byte {
	a, b := r.readWrapped(off, n)
	if b == nil {
		return a
	}
	copy(scratch[:len(a)], a)
	copy(scratch[len(a):], b)
	return scratch[:n]
}

// TryPush attempts to enqueue payload without blocking. It returns
// xerror.ErrTooBig if the chunk could never fit, xerror.ErrClosed if the
// write direction has been shut down, or xerror.ErrAgain if the ring is
// currently full (in which case the shortfall has been published into
// need for a concurrent Push to wait on).
func (r *Ring) TryPush(payload []byte) error {
	if r.isClosed() {
		return xerror.ErrClosed
	}

	total := chunkLen(len(payload))
	size := r.size()
	if total > size {
		return fmt.Errorf("ring: chunk of %d bytes exceeds ring size %d: %w", total, size, xerror.ErrTooBig)
	}

	used := atomic.LoadUint32(r.hdr.used)
	free := size - used
	if free < total {
		atomic.StoreUint32(r.hdr.need, total-free)
		return xerror.ErrAgain
	}

	tail := atomic.LoadUint32(r.hdr.tail)

	var lenBuf [lenPrefixSize]byte
	lenBuf[0] = byte(len(payload))
	lenBuf[1] = byte(len(payload) >> 8)
	lenBuf[2] = byte(len(payload) >> 16)
	lenBuf[3] = byte(len(payload) >> 24)
	r.writeWrapped(tail, lenBuf[:])

	bodyOff := (tail + lenPrefixSize) % size
	r.writeWrapped(bodyOff, payload)

	padStart := (bodyOff + uint32(len(payload))) % size
	padLen := total - lenPrefixSize - uint32(len(payload))
	if padLen > 0 {
		var zero [4]byte
		r.writeWrapped(padStart, zero[:padLen])
	}

	atomic.StoreUint32(r.hdr.tail, (tail+total)%size)

	oldUsed := atomic.AddUint32(r.hdr.used, total) - total
	if oldUsed == 0 {
		futex.Wake(r.hdr.used, 1)
	}

	return nil
}

// Push enqueues payload, blocking cooperatively until there is room, the
// deadline elapses, or the write direction is closed. A zero deadline
// means wait forever.
func (r *Ring) Push(payload []byte, deadline time.Time) error {
	for {
		err := r.TryPush(payload)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, xerror.ErrAgain):
			need := atomic.LoadUint32(r.hdr.need)
			waitErr := futex.Wait(r.hdr.need, need, deadline)
			if futex.IsTimeout(waitErr) {
				return xerror.ErrTimeout
			}
			if r.isClosed() {
				return xerror.ErrClosed
			}
			// Either woken or spurious return: loop and retry.
		default:
			return err
		}
	}
}

// PopHandle is a view onto one dequeued chunk. The payload may be split
// across the ring's wrap boundary, hence two slices; Release must be
// called exactly once to advance the read cursor and wake a blocked
// writer if appropriate.
type PopHandle struct {
	r     *Ring
	a, b  []byte
	total uint32
}

// Payload returns the chunk bytes as (up to) two contiguous slices that
// must not be retained past Release, since the writer is free to
// overwrite them once the cursor advances.
func (h PopHandle) Payload() (a, b []byte) { return h.a, h.b }

// Bytes copies the payload into a single owned slice. Convenient for
// callers (like the codec) that need one contiguous buffer anyway.
func (h PopHandle) Bytes() []byte {
	if h.b == nil {
		out := make([]byte, len(h.a))
		copy(out, h.a)
		return out
	}
	out := make([]byte, len(h.a)+len(h.b))
	copy(out, h.a)
	copy(out[len(h.a):], h.b)
	return out
}

// Release advances the read cursor past this chunk and wakes a writer
// waiting on space if the predicate in spec.md §9 says to. That
// predicate is preserved byte-for-byte from the source: it compares the
// *pre-subtraction* value of need to the chunk length as signed 32-bit
// integers, which means it also fires (harmlessly) when need was already
// zero, i.e. on essentially every Release. This looks redundant but is
// intentional — see spec.md §9's "Open question — wakeup predicate" — and
// is left as-is rather than "fixed" to a transition-only check.
func (h PopHandle) Release() {
	r := h.r
	size := r.size()
	head := atomic.LoadUint32(r.hdr.head)
	atomic.StoreUint32(r.hdr.head, (head+h.total)%size)
	atomic.AddUint32(r.hdr.used, -h.total)

	oldNeed := atomic.AddUint32(r.hdr.need, -h.total) + h.total
	if int32(oldNeed) < int32(h.total) {
		futex.Wake(r.hdr.need, 1)
	}
}

// TryPop attempts to dequeue one chunk without blocking. ok is false if
// the ring does not currently hold a complete chunk.
func (r *Ring) TryPop() (handle PopHandle, ok bool) {
	used := atomic.LoadUint32(r.hdr.used)
	if used < lenPrefixSize {
		return PopHandle{}, false
	}

	head := atomic.LoadUint32(r.hdr.head)
	size := r.size()

	var lenScratch [lenPrefixSize]byte
	lb := r.readContig(head, lenPrefixSize, lenScratch[:])
	payloadLen := uint32(lb[0]) | uint32(lb[1])<<8 | uint32(lb[2])<<16 | uint32(lb[3])<<24

	total := chunkLen(int(payloadLen))
	if used < total {
		// Should not happen for a well-formed writer, but guards
		// against reading a torn chunk header.
		return PopHandle{}, false
	}

	bodyOff := (head + lenPrefixSize) % size
	a, b := r.readWrapped(bodyOff, payloadLen)

	return PopHandle{r: r, a: a, b: b, total: total}, true
}

// Pop dequeues one chunk, blocking cooperatively until data arrives, the
// deadline elapses, or the read direction is closed and the ring has been
// fully drained.
func (r *Ring) Pop(deadline time.Time) (PopHandle, error) {
	for {
		if h, ok := r.TryPop(); ok {
			return h, nil
		}
		if r.isClosed() {
			return PopHandle{}, xerror.ErrClosed
		}

		used := atomic.LoadUint32(r.hdr.used)
		waitErr := futex.Wait(r.hdr.used, used, deadline)
		if futex.IsTimeout(waitErr) {
			return PopHandle{}, xerror.ErrTimeout
		}
		// Either woken or spurious return: loop and retry.
	}
}

// WakeAll wakes anyone blocked waiting for data or space on this ring. The
// owning Channel calls this on shutdown so a pending Push or Pop observes
// the newly-set closed bit instead of waiting out its full deadline.
func (r *Ring) WakeAll() {
	futex.Wake(r.hdr.used, 1<<30)
	futex.Wake(r.hdr.need, 1<<30)
}

// Used returns the number of bytes currently occupied, for diagnostics.
func (r *Ring) Used() uint32 { return atomic.LoadUint32(r.hdr.used) }

// Size returns the capacity of the data region.
func (r *Ring) Size() uint32 { return r.size() }
