// Package channel implements the shared-memory Channel described in
// spec.md §3–§4.2: a single mmap'd file carrying a ChannelHeader followed
// by two independent rings (A: owner→user, B: user→owner), used as the
// transport between the host process and its sidecar.
package channel

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/kaze-mesh/kaze/internal/ring"
	"github.com/kaze-mesh/kaze/internal/shmfile"
	"github.com/kaze-mesh/kaze/internal/xerror"
)

const pageSize = 4096

// aligned rounds requested up to the next multiple of page, per spec.md
// §4.2's buffer-sizing rule.
func aligned(requested, page uint32) uint32 {
	if page == 0 {
		return requested
	}
	return (requested + page - 1) / page * page
}

// Side identifies which end of a Channel the local process occupies.
type Side int

const (
	// Owner is the side that created the channel file.
	Owner Side = iota
	// User is the side that opened an existing channel file.
	User
)

// ShutdownMode selects which direction(s) Shutdown affects.
type ShutdownMode int

const (
	ShutdownRead ShutdownMode = iota
	ShutdownWrite
	ShutdownBoth
)

// Channel is one end of a shared-memory connection: a local Side plus the
// two rings, one for each direction.
type Channel struct {
	m    *shmfile.Mapping
	hdr  header
	side Side

	ringA *ring.Ring // owner -> user
	ringB *ring.Ring // user -> owner

	recv *ring.Ring // the ring this side reads
	send *ring.Ring // the ring this side writes
}

// dataLayout returns the byte offsets of the two RingHeaders and their
// data regions within the mapped file.
func dataLayout(queueASize, queueBSize uint32) (ringAHdrOff, ringADataOff, ringBHdrOff, ringBDataOff, total uint32) {
	ringAHdrOff = HeaderSize
	ringADataOff = ringAHdrOff + ring.HeaderSize
	ringBHdrOff = ringADataOff + queueASize
	ringBDataOff = ringBHdrOff + ring.HeaderSize
	total = ringBDataOff + queueBSize
	return
}

// Create creates a new channel file at path with the given per-direction
// queue sizes (each rounded up to a page, per spec.md §4.2), installing
// the caller's pid as owner_pid. exclusive mirrors shmfile.Create.
func Create(path string, ident uint32, queueASize, queueBSize uint32, exclusive bool) (*Channel, error) {
	queueASize = aligned(queueASize, pageSize)
	queueBSize = aligned(queueBSize, pageSize)

	_, _, _, _, total := dataLayout(queueASize, queueBSize)

	m, err := shmfile.Create(path, total, exclusive)
	if err != nil {
		return nil, err
	}

	buf := m.Bytes()
	h := newHeader(buf)
	atomic.StoreUint32(h.size, total)
	atomic.StoreInt32(h.ownerPID, int32(os.Getpid()))
	atomic.StoreInt32(h.userPID, -1)
	atomic.StoreUint32(h.ident, ident)
	atomic.StoreUint32(h.queueASize, queueASize)
	atomic.StoreUint32(h.queueBSize, queueBSize)
	atomic.StoreUint32(h.closedFlags, 0)

	ringAHdrOff, ringADataOff, ringBHdrOff, ringBDataOff, _ := dataLayout(queueASize, queueBSize)
	if err := ring.Init(buf[ringAHdrOff:ringAHdrOff+ring.HeaderSize], queueASize); err != nil {
		m.Close(true)
		return nil, err
	}
	if err := ring.Init(buf[ringBHdrOff:ringBHdrOff+ring.HeaderSize], queueBSize); err != nil {
		m.Close(true)
		return nil, err
	}

	ringA := ring.Attach(buf[ringAHdrOff:ringAHdrOff+ring.HeaderSize], buf[ringADataOff:ringADataOff+queueASize])
	ringB := ring.Attach(buf[ringBHdrOff:ringBHdrOff+ring.HeaderSize], buf[ringBDataOff:ringBDataOff+queueBSize])
	ringA.WithClose(h.closedFlags, CloseA)
	ringB.WithClose(h.closedFlags, CloseB)

	return &Channel{m: m, hdr: h, side: Owner, ringA: ringA, ringB: ringB, recv: ringB, send: ringA}, nil
}

// Open opens an existing channel file at path, claiming the user slot.
// It refuses if user_pid is already occupied (spec.md §4.2).
func Open(path string) (*Channel, error) {
	probe, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("channel: stat %q: %w", path, err)
	}

	m, err := shmfile.Open(path, uint32(probe.Size()))
	if err != nil {
		return nil, err
	}

	buf := m.Bytes()
	h := newHeader(buf)

	if atomic.LoadUint32(h.size) != uint32(probe.Size()) {
		m.Close(false)
		return nil, fmt.Errorf("channel: %q header size mismatch: %w", path, xerror.ErrInvalid)
	}

	if !atomic.CompareAndSwapInt32(h.userPID, -1, int32(os.Getpid())) {
		m.Close(false)
		return nil, fmt.Errorf("channel: %q already has an active user: %w", path, xerror.ErrBusy)
	}

	queueASize := atomic.LoadUint32(h.queueASize)
	queueBSize := atomic.LoadUint32(h.queueBSize)
	ringAHdrOff, ringADataOff, ringBHdrOff, ringBDataOff, _ := dataLayout(queueASize, queueBSize)

	ringA := ring.Attach(buf[ringAHdrOff:ringAHdrOff+ring.HeaderSize], buf[ringADataOff:ringADataOff+queueASize])
	ringB := ring.Attach(buf[ringBHdrOff:ringBHdrOff+ring.HeaderSize], buf[ringBDataOff:ringBDataOff+queueBSize])
	ringA.WithClose(h.closedFlags, CloseA)
	ringB.WithClose(h.closedFlags, CloseB)

	return &Channel{m: m, hdr: h, side: User, ringA: ringA, ringB: ringB, recv: ringA, send: ringB}, nil
}

// Ident returns the identity this channel was created with.
func (c *Channel) Ident() uint32 { return atomic.LoadUint32(c.hdr.ident) }

// ReadRing returns the ring this side reads from.
func (c *Channel) ReadRing() *ring.Ring { return c.recv }

// WriteRing returns the ring this side writes to.
func (c *Channel) WriteRing() *ring.Ring { return c.send }

// Shutdown sets the corresponding bit(s) in the shared closed_flags word
// and wakes any blocked operations on the affected ring(s), per spec.md
// §4.2. Shutdown is relative to the local side: ShutdownRead closes this
// side's receive ring, ShutdownWrite closes this side's send ring.
func (c *Channel) Shutdown(mode ShutdownMode) {
	var readRing, writeRing *ring.Ring
	if c.side == Owner {
		readRing, writeRing = c.ringB, c.ringA
	} else {
		readRing, writeRing = c.ringA, c.ringB
	}

	switch mode {
	case ShutdownRead:
		c.setClosed(readRing)
	case ShutdownWrite:
		c.setClosed(writeRing)
	case ShutdownBoth:
		c.setClosed(readRing)
		c.setClosed(writeRing)
	}
}

func (c *Channel) setClosed(r *ring.Ring) {
	bit := CloseA
	if r == c.ringB {
		bit = CloseB
	}
	for {
		old := atomic.LoadUint32(c.hdr.closedFlags)
		if old&bit != 0 {
			break
		}
		if atomic.CompareAndSwapUint32(c.hdr.closedFlags, old, old|bit) {
			break
		}
	}
	r.WakeAll()
}

// Close releases the mapping. If unlink is true, the backing file is
// removed too, whichever side the caller is — mirroring spec.md §4.2's "On
// close: the exiting side unmaps; if unlink was requested, the file is
// removed."
func (c *Channel) Close(unlink bool) error {
	if c.side == User {
		atomic.StoreInt32(c.hdr.userPID, -1)
	}
	return c.m.Close(unlink)
}
