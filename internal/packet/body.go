package packet

// BodyKind distinguishes a packet body's storage strategy, per spec.md §3:
// "body: one of Empty | OwnedBuffer | SharedFromHostBuffer |
// SharedFromPeerBuffer."
type BodyKind uint8

const (
	// BodyEmpty carries no payload bytes.
	BodyEmpty BodyKind = iota
	// BodyOwned holds a buffer this Packet exclusively owns (e.g.
	// synthesized responses).
	BodyOwned
	// BodySharedFromHost references bytes inside a pooled scratch buffer
	// that also backs the full [hdr-len][hdr][body] frame read from the
	// host-facing shared-memory ring.
	BodySharedFromHost
	// BodySharedFromPeer is the TCP-side equivalent of BodySharedFromHost.
	BodySharedFromPeer
)

// Body is a packet's payload plus enough context to decide, on
// forwarding, whether the original frame bytes can be reused verbatim
// (spec.md §9 "Header re-encoding avoidance").
type Body struct {
	Kind BodyKind

	// bytes is the body payload itself.
	bytes []byte

	// frame is the full backing buffer ([hdr-len][hdr bytes][body bytes])
	// for Shared* bodies; nil for Empty/Owned. hdrLen/bodyOff locate the
	// header and body within it.
	frame   []byte
	hdrLen  uint32
	bodyOff int
}

// Bytes returns the body payload.
func (b Body) Bytes() []byte { return b.bytes }

// Frame returns the full backing frame and true if this body was decoded
// from one (and can therefore be forwarded byte-for-byte when the header
// is unmodified).
func (b Body) Frame() ([]byte, bool) {
	if b.Kind == BodySharedFromHost || b.Kind == BodySharedFromPeer {
		return b.frame, true
	}
	return nil, false
}

// EmptyBody is the zero-length body.
func EmptyBody() Body { return Body{Kind: BodyEmpty} }

// OwnedBody wraps buf as an exclusively-owned body.
func OwnedBody(buf []byte) Body { return Body{Kind: BodyOwned, bytes: buf} }
