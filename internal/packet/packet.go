// Package packet implements the in-memory Packet value and its two wire
// framings (spec.md §3 "Packet", §4.3): a length-prefixed TCP frame
// between peers, and a bare ring chunk between host and sidecar. Encoding
// avoids re-serializing a packet's header when nothing has touched it,
// per spec.md §9 "Header re-encoding avoidance".
package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/kaze-mesh/kaze/internal/wire"
	"github.com/kaze-mesh/kaze/internal/xerror"
)

// DefaultMaxFrameSize is the decode-time ceiling on total_len; component
// wiring may override it from configuration (spec.md §4.3 "total_len
// larger than a configured ceiling -> fail").
const DefaultMaxFrameSize = 1 << 20

const lenPrefixSize = 4

// Packet is a decoded header plus body, with enough provenance to decide
// how to re-emit itself.
type Packet struct {
	Hdr      wire.Hdr
	HdrDirty bool
	Body     Body
}

// FromRetCode synthesizes a reply packet from an existing header,
// overwriting ret_code and flipping Req into Rsp with the same seq — used
// by the RPC tracker's timeout path and by resolver-miss handling (spec.md
// §4.6, §8 scenario 4/5).
func FromRetCode(h wire.Hdr, retCode uint32) Packet {
	out := h.Clone()
	out.RetCode = retCode
	if out.Rpc.Kind == wire.RpcReq {
		out.Rpc = wire.RpcType{Kind: wire.RpcRsp, Seq: out.Rpc.Seq}
	}
	return Packet{Hdr: out, HdrDirty: true, Body: EmptyBody()}
}

// DecodeChunk decodes a packet from one host/sidecar ring chunk:
// [hdr_len u32 LE][hdr bytes][body bytes], with no outer total_len (the
// ring's own chunk framing provides that implicitly, per spec.md §4.3).
// chunk is retained as the packet's backing frame; the caller must not
// mutate or reuse it until the packet is done with it.
func DecodeChunk(chunk []byte, sharedFromHost bool) (Packet, error) {
	if len(chunk) < lenPrefixSize {
		return Packet{}, fmt.Errorf("packet: chunk too short for hdr_len: %w", xerror.ErrInvalid)
	}
	hdrLen := binary.LittleEndian.Uint32(chunk[:lenPrefixSize])
	if uint64(lenPrefixSize)+uint64(hdrLen) > uint64(len(chunk)) {
		return Packet{}, fmt.Errorf("packet: hdr_len %d overruns chunk: %w", hdrLen, xerror.ErrInvalid)
	}

	hdrBytes := chunk[lenPrefixSize : lenPrefixSize+int(hdrLen)]
	h, n, err := wire.Decode(hdrBytes)
	if err != nil {
		return Packet{}, err
	}
	if n != len(hdrBytes) {
		return Packet{}, fmt.Errorf("packet: trailing bytes after header: %w", xerror.ErrInvalid)
	}

	bodyOff := lenPrefixSize + int(hdrLen)
	kind := BodySharedFromPeer
	if sharedFromHost {
		kind = BodySharedFromHost
	}

	return Packet{
		Hdr: h,
		Body: Body{
			Kind:    kind,
			bytes:   chunk[bodyOff:],
			frame:   chunk,
			hdrLen:  hdrLen,
			bodyOff: bodyOff,
		},
	}, nil
}

// DecodePeerFrame decodes a packet from a TCP wire frame:
// [total_len u32 LE][hdr_len u32 LE][hdr bytes][body bytes]. buf must
// contain at least one full frame; n reports how many bytes it consumed.
// If buf holds fewer bytes than the frame needs, it returns
// xerror.ErrAgain so the caller can read more (spec.md §4.3 "decode
// peeks total_len; if the buffer has fewer bytes, it requests more").
func DecodePeerFrame(buf []byte, maxFrameSize uint32) (Packet, int, error) {
	if len(buf) < lenPrefixSize {
		return Packet{}, 0, xerror.ErrAgain
	}
	totalLen := binary.LittleEndian.Uint32(buf[:lenPrefixSize])
	if totalLen > maxFrameSize {
		return Packet{}, 0, fmt.Errorf("packet: total_len %d exceeds ceiling %d: %w", totalLen, maxFrameSize, xerror.ErrInvalid)
	}
	frameEnd := lenPrefixSize + int(totalLen)
	if len(buf) < frameEnd {
		return Packet{}, 0, xerror.ErrAgain
	}

	chunk := buf[lenPrefixSize:frameEnd]
	p, err := DecodeChunk(chunk, false)
	if err != nil {
		return Packet{}, 0, err
	}
	return p, frameEnd, nil
}

// EncodeChunk writes this packet as a bare ring chunk (no total_len) into
// a scratch buffer from pool, returning the buffer and a release func the
// caller must invoke once the write has completed. A clean (non-dirty)
// Shared* packet reuses its original frame bytes verbatim instead of
// touching the pool.
func (p Packet) EncodeChunk(pool *Pool) (buf []byte, release func()) {
	if !p.HdrDirty {
		if frame, ok := p.Body.Frame(); ok {
			return frame, func() {}
		}
	}

	scratch := pool.Get()
	hdrStart := len(*scratch) + lenPrefixSize
	*scratch = append(*scratch, 0, 0, 0, 0)
	*scratch = wire.Encode(*scratch, p.Hdr)
	hdrLen := len(*scratch) - hdrStart
	binary.LittleEndian.PutUint32((*scratch)[hdrStart-lenPrefixSize:hdrStart], uint32(hdrLen))
	*scratch = append(*scratch, p.Body.Bytes()...)

	out := *scratch
	return out, func() { pool.Put(scratch) }
}

// EncodeFrame is EncodeChunk prefixed with a total_len word, for the TCP
// peer protocol.
func (p Packet) EncodeFrame(pool *Pool) (buf []byte, release func()) {
	chunk, chunkRelease := p.EncodeChunk(pool)
	if !p.HdrDirty {
		if _, ok := p.Body.Frame(); ok {
			framed := make([]byte, lenPrefixSize+len(chunk))
			binary.LittleEndian.PutUint32(framed[:lenPrefixSize], uint32(len(chunk)))
			copy(framed[lenPrefixSize:], chunk)
			return framed, func() {}
		}
	}

	scratch := pool.Get()
	*scratch = append(*scratch, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32((*scratch)[:lenPrefixSize], uint32(len(chunk)))
	*scratch = append(*scratch, chunk...)
	out := *scratch
	chunkRelease()
	return out, func() { pool.Put(scratch) }
}

// Iovec returns a two-slice vectored-write view: a sized header scratch
// (with the 4-byte total_len prefix, if withTotalLen) and the body slice,
// per spec.md §4.3 "Iovec emission". It only avoids a copy for clean
// Shared* packets with withTotalLen=false (the host ring path); all other
// combinations fall back to a single contiguous slice in iov[0].
func (p Packet) Iovec(pool *Pool, withTotalLen bool) (iov [2][]byte, release func()) {
	if !withTotalLen && !p.HdrDirty {
		if frame, ok := p.Body.Frame(); ok {
			return [2][]byte{frame, nil}, func() {}
		}
	}

	var buf []byte
	var rel func()
	if withTotalLen {
		buf, rel = p.EncodeFrame(pool)
	} else {
		buf, rel = p.EncodeChunk(pool)
	}
	return [2][]byte{buf, nil}, rel
}
