package channel

import "unsafe"

// HeaderSize is the on-disk size of the ChannelHeader (spec.md §3): size,
// owner_pid, user_pid, ident, queue_a_size, queue_b_size, closed_flags —
// seven little-endian uint32 words.
const HeaderSize = 28

const (
	// CloseA is the closed_flags bit for ring A (owner→user): set once
	// either side has declared it will stop using that ring.
	CloseA uint32 = 1 << 0
	// CloseB is the closed_flags bit for ring B (user→owner).
	CloseB uint32 = 1 << 1
)

type header struct {
	size        *uint32
	ownerPID    *int32
	userPID     *int32
	ident       *uint32
	queueASize  *uint32
	queueBSize  *uint32
	closedFlags *uint32
}

func newHeader(buf []byte) header {
	if len(buf) < HeaderSize {
		panic("channel: header buffer too small")
	}
	base := unsafe.Pointer(&buf[0])
	return header{
		size:        (*uint32)(unsafe.Add(base, 0)),
		ownerPID:    (*int32)(unsafe.Add(base, 4)),
		userPID:     (*int32)(unsafe.Add(base, 8)),
		ident:       (*uint32)(unsafe.Add(base, 12)),
		queueASize:  (*uint32)(unsafe.Add(base, 16)),
		queueBSize:  (*uint32)(unsafe.Add(base, 20)),
		closedFlags: (*uint32)(unsafe.Add(base, 24)),
	}
}
