package wire

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/kaze-mesh/kaze/internal/xerror"
)

const (
	tagEnd        = 0x00
	tagBodyType   = 0x01
	tagSrcIdent   = 0x02
	tagRetCode    = 0x03
	tagVersion    = 0x04
	tagTimeoutMs  = 0x05
	tagHeaderItem = 0x06
	tagRpc        = 0x07
	tagRoute      = 0x08
)

// Encode appends h's wire form to dst and returns the extended slice.
func Encode(dst []byte, h Hdr) []byte {
	dst = appendField(dst, tagBodyType, []byte(h.BodyType))
	dst = appendU32Field(dst, tagSrcIdent, h.SrcIdent)
	dst = appendU32Field(dst, tagRetCode, h.RetCode)
	dst = appendU32Field(dst, tagVersion, h.Version)
	dst = appendU32Field(dst, tagTimeoutMs, h.TimeoutMs)

	keys := make([]string, 0, len(h.Headers))
	for k := range h.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := h.Headers[k]
		body := make([]byte, 2+len(k)+len(v))
		binary.LittleEndian.PutUint16(body[0:2], uint16(len(k)))
		copy(body[2:2+len(k)], k)
		copy(body[2+len(k):], v)
		dst = appendField(dst, tagHeaderItem, body)
	}

	dst = appendField(dst, tagRpc, encodeRpc(h.Rpc))
	dst = appendField(dst, tagRoute, encodeRoute(h.Route))

	dst = append(dst, tagEnd)
	return dst
}

func appendField(dst []byte, tag byte, value []byte) []byte {
	dst = append(dst, tag)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(value)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, value...)
	return dst
}

func appendU32Field(dst []byte, tag byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return appendField(dst, tag, buf[:])
}

func encodeRpc(r RpcType) []byte {
	if r.Kind == RpcNone {
		return []byte{byte(RpcNone)}
	}
	buf := make([]byte, 5)
	buf[0] = byte(r.Kind)
	binary.LittleEndian.PutUint32(buf[1:], r.Seq)
	return buf
}

func encodeRoute(r RouteType) []byte {
	switch r.Kind {
	case RouteNone:
		return []byte{byte(RouteNone)}
	case RouteIdent:
		buf := make([]byte, 5)
		buf[0] = byte(RouteIdent)
		binary.LittleEndian.PutUint32(buf[1:], r.Ident)
		return buf
	case RouteRandom, RouteBroadcast:
		buf := make([]byte, 9)
		buf[0] = byte(r.Kind)
		binary.LittleEndian.PutUint32(buf[1:5], r.Ident)
		binary.LittleEndian.PutUint32(buf[5:9], r.Mask)
		return buf
	case RouteMulticast:
		buf := make([]byte, 1+4+4*len(r.Idents))
		buf[0] = byte(RouteMulticast)
		binary.LittleEndian.PutUint32(buf[1:5], uint32(len(r.Idents)))
		for i, id := range r.Idents {
			binary.LittleEndian.PutUint32(buf[5+4*i:9+4*i], id)
		}
		return buf
	default:
		return []byte{byte(RouteNone)}
	}
}

// Decode parses a Hdr from the start of buf, returning the number of bytes
// consumed. It fails closed on any schema violation per spec.md §4.3
// ("decode error in the header schema → fail").
func Decode(buf []byte) (Hdr, int, error) {
	var h Hdr
	off := 0

	for {
		if off >= len(buf) {
			return Hdr{}, 0, fmt.Errorf("wire: truncated header: %w", xerror.ErrInvalid)
		}
		tag := buf[off]
		off++
		if tag == tagEnd {
			return h, off, nil
		}

		if off+4 > len(buf) {
			return Hdr{}, 0, fmt.Errorf("wire: truncated field length: %w", xerror.ErrInvalid)
		}
		n := binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
		if uint64(off)+uint64(n) > uint64(len(buf)) {
			return Hdr{}, 0, fmt.Errorf("wire: field length %d overruns buffer: %w", n, xerror.ErrInvalid)
		}
		value := buf[off : off+int(n)]
		off += int(n)

		switch tag {
		case tagBodyType:
			h.BodyType = string(value)
		case tagSrcIdent:
			if len(value) != 4 {
				return Hdr{}, 0, fmt.Errorf("wire: src_ident: %w", xerror.ErrInvalid)
			}
			h.SrcIdent = binary.LittleEndian.Uint32(value)
		case tagRetCode:
			if len(value) != 4 {
				return Hdr{}, 0, fmt.Errorf("wire: ret_code: %w", xerror.ErrInvalid)
			}
			h.RetCode = binary.LittleEndian.Uint32(value)
		case tagVersion:
			if len(value) != 4 {
				return Hdr{}, 0, fmt.Errorf("wire: version: %w", xerror.ErrInvalid)
			}
			h.Version = binary.LittleEndian.Uint32(value)
		case tagTimeoutMs:
			if len(value) != 4 {
				return Hdr{}, 0, fmt.Errorf("wire: timeout_ms: %w", xerror.ErrInvalid)
			}
			h.TimeoutMs = binary.LittleEndian.Uint32(value)
		case tagHeaderItem:
			if len(value) < 2 {
				return Hdr{}, 0, fmt.Errorf("wire: header entry: %w", xerror.ErrInvalid)
			}
			klen := int(binary.LittleEndian.Uint16(value[0:2]))
			if 2+klen > len(value) {
				return Hdr{}, 0, fmt.Errorf("wire: header entry key length: %w", xerror.ErrInvalid)
			}
			key := string(value[2 : 2+klen])
			val := append([]byte{}, value[2+klen:]...)
			if h.Headers == nil {
				h.Headers = make(map[string][]byte)
			}
			h.Headers[key] = val
		case tagRpc:
			rpc, err := decodeRpc(value)
			if err != nil {
				return Hdr{}, 0, err
			}
			h.Rpc = rpc
		case tagRoute:
			route, err := decodeRoute(value)
			if err != nil {
				return Hdr{}, 0, err
			}
			h.Route = route
		default:
			return Hdr{}, 0, fmt.Errorf("wire: unknown tag %d: %w", tag, xerror.ErrInvalid)
		}
	}
}

func decodeRpc(value []byte) (RpcType, error) {
	if len(value) == 0 {
		return RpcType{}, fmt.Errorf("wire: empty rpc field: %w", xerror.ErrInvalid)
	}
	kind := RpcKind(value[0])
	if kind == RpcNone {
		return RpcType{Kind: RpcNone}, nil
	}
	if len(value) != 5 {
		return RpcType{}, fmt.Errorf("wire: rpc field: %w", xerror.ErrInvalid)
	}
	return RpcType{Kind: kind, Seq: binary.LittleEndian.Uint32(value[1:])}, nil
}

func decodeRoute(value []byte) (RouteType, error) {
	if len(value) == 0 {
		return RouteType{}, fmt.Errorf("wire: empty route field: %w", xerror.ErrInvalid)
	}
	kind := RouteKind(value[0])
	switch kind {
	case RouteNone:
		return RouteType{Kind: RouteNone}, nil
	case RouteIdent:
		if len(value) != 5 {
			return RouteType{}, fmt.Errorf("wire: route ident: %w", xerror.ErrInvalid)
		}
		return RouteType{Kind: RouteIdent, Ident: binary.LittleEndian.Uint32(value[1:])}, nil
	case RouteRandom, RouteBroadcast:
		if len(value) != 9 {
			return RouteType{}, fmt.Errorf("wire: route masked: %w", xerror.ErrInvalid)
		}
		return RouteType{
			Kind:  kind,
			Ident: binary.LittleEndian.Uint32(value[1:5]),
			Mask:  binary.LittleEndian.Uint32(value[5:9]),
		}, nil
	case RouteMulticast:
		if len(value) < 5 {
			return RouteType{}, fmt.Errorf("wire: route multicast: %w", xerror.ErrInvalid)
		}
		n := binary.LittleEndian.Uint32(value[1:5])
		if uint64(5)+uint64(n)*4 != uint64(len(value)) {
			return RouteType{}, fmt.Errorf("wire: route multicast count: %w", xerror.ErrInvalid)
		}
		idents := make([]uint32, n)
		for i := range idents {
			idents[i] = binary.LittleEndian.Uint32(value[5+4*i : 9+4*i])
		}
		return RouteType{Kind: RouteMulticast, Idents: idents}, nil
	default:
		return RouteType{}, fmt.Errorf("wire: unknown route kind %d: %w", kind, xerror.ErrInvalid)
	}
}
