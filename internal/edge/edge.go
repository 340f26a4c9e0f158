// Package edge wraps a single Channel as the host/sidecar boundary
// (spec.md §4.9): one Channel plus a Sender and a Receiver split from it.
package edge

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kaze-mesh/kaze/internal/channel"
	"github.com/kaze-mesh/kaze/internal/ident"
	"github.com/kaze-mesh/kaze/internal/packet"
)

// Edge owns the Channel and the identity it was created with.
type Edge struct {
	ch    *channel.Channel
	ident uint32
}

// Create computes the channel name as {prefix}_{dotted-ident} under dir,
// optionally unlinking a stale file of the same name first, aligns
// bufsize to the page size (delegated to internal/channel), and creates
// the mapping (spec.md §4.9).
func Create(dir, prefix string, id uint32, bufsize uint32, forceUnlink bool) (*Edge, error) {
	path := channelPath(dir, prefix, id)

	if forceUnlink {
		_ = os.Remove(path)
	}

	ch, err := channel.Create(path, id, bufsize, bufsize, true)
	if err != nil {
		return nil, fmt.Errorf("edge: create %q: %w", path, err)
	}
	return &Edge{ch: ch, ident: id}, nil
}

// Open attaches to an existing edge channel as the user side (the
// sidecar attaching to a host-created channel, or vice versa).
func Open(dir, prefix string, id uint32) (*Edge, error) {
	path := channelPath(dir, prefix, id)
	ch, err := channel.Open(path)
	if err != nil {
		return nil, fmt.Errorf("edge: open %q: %w", path, err)
	}
	return &Edge{ch: ch, ident: id}, nil
}

func channelPath(dir, prefix string, id uint32) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s", prefix, ident.Ident(id).String()))
}

// IntoSplit yields the Sender (write-half) and Receiver (read-half).
// Both share the Edge's Channel, which the Edge still owns and Close
// still releases. Only one of each exists per Edge, per spec.md §5's
// shared-resource policy.
func (e *Edge) IntoSplit() (*Sender, *Receiver) {
	return &Sender{ch: e.ch}, &Receiver{ch: e.ch}
}

// Close releases the underlying Channel.
func (e *Edge) Close(unlink bool) error {
	return e.ch.Close(unlink)
}

// Sender is the write-half of an Edge, safe for concurrent use: the
// underlying ring is strictly single-producer (TryPush/Push touch
// tail/used with no locking of their own), so SendBuf serializes callers
// itself with mu, the way conn.writev serializes the TCP side with
// conn.mu.
type Sender struct {
	ch *channel.Channel

	mu sync.Mutex
}

// SendBuf writes one framed chunk to the shared-memory ring, suspending
// if the ring is full, until deadline.
func (s *Sender) SendBuf(buf []byte, deadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch.WriteRing().Push(buf, deadline)
}

// Receiver is the read-half of an Edge, owned exclusively by its reader
// task.
type Receiver struct {
	ch *channel.Channel
}

// ReadPacket reads one chunk and decodes it into a Packet backed by a
// pool-pulled scratch buffer, per spec.md §4.9.
func (r *Receiver) ReadPacket(pool *packet.Pool, deadline time.Time) (packet.Packet, error) {
	h, err := r.ch.ReadRing().Pop(deadline)
	if err != nil {
		return packet.Packet{}, err
	}
	scratch := pool.Get()
	*scratch = append((*scratch)[:0], h.Bytes()...)
	h.Release()
	return packet.DecodeChunk(*scratch, true)
}
