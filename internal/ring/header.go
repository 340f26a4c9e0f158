package ring

import "unsafe"

// HeaderSize is the on-disk size of a RingHeader: size, head, tail, used,
// need, each a little-endian uint32. See spec §3 "Ring header".
const HeaderSize = 20

// header is a view over the five uint32 words of a RingHeader living
// inside shared memory. size/head/tail are touched only by their owning
// side; used/need are shared atomics. All five are accessed through
// sync/atomic regardless, so cross-process visibility never depends on
// compiler or CPU reordering assumptions.
type header struct {
	size *uint32
	head *uint32
	tail *uint32
	used *uint32
	need *uint32
}

// newHeader overlays a header onto the first HeaderSize bytes of buf. buf
// must be at least HeaderSize bytes and 4-byte aligned (true for any
// mmap'd region, which the OS aligns to the page size).
func newHeader(buf []byte) header {
	if len(buf) < HeaderSize {
		panic("ring: header buffer too small")
	}
	base := unsafe.Pointer(&buf[0])
	return header{
		size: (*uint32)(unsafe.Add(base, 0)),
		head: (*uint32)(unsafe.Add(base, 4)),
		tail: (*uint32)(unsafe.Add(base, 8)),
		used: (*uint32)(unsafe.Add(base, 12)),
		need: (*uint32)(unsafe.Add(base, 16)),
	}
}
