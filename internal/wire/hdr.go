package wire

// Well-known ret_code values (spec.md §8's scenario list and §4.6).
const (
	RetOK          uint32 = 0
	RetTimeout     uint32 = 1
	RetUnreachable uint32 = 2
)

// RpcKind tags the rpc one-of described in spec.md §3 "Packet".
type RpcKind uint8

const (
	RpcNone RpcKind = iota
	RpcReq
	RpcRsp
	RpcNtf
)

// RpcType is Req(seq) | Rsp(seq) | Ntf(seq) | None.
type RpcType struct {
	Kind RpcKind
	Seq  uint32
}

// RouteKind tags the route one-of described in spec.md §3 "Packet".
type RouteKind uint8

const (
	RouteNone RouteKind = iota
	RouteIdent
	RouteRandom
	RouteBroadcast
	RouteMulticast
)

// RouteType is Ident(u32) | Random(ident,mask) | Broadcast(ident,mask) |
// Multicast(list<u32>) | None.
type RouteType struct {
	Kind   RouteKind
	Ident  uint32
	Mask   uint32
	Idents []uint32 // Multicast only
}

// ByIdent builds a RouteType targeting exactly one ident.
func ByIdent(ident uint32) RouteType { return RouteType{Kind: RouteIdent, Ident: ident} }

// Hdr is the decoded Kaze packet header (spec.md §3 "Packet").
type Hdr struct {
	BodyType  string
	SrcIdent  uint32
	RetCode   uint32
	Version   uint32
	TimeoutMs uint32
	Headers   map[string][]byte
	Rpc       RpcType
	Route     RouteType
}

// Clone returns a deep copy safe to mutate independently of h.
func (h Hdr) Clone() Hdr {
	out := h
	if h.Headers != nil {
		out.Headers = make(map[string][]byte, len(h.Headers))
		for k, v := range h.Headers {
			cp := make([]byte, len(v))
			copy(cp, v)
			out.Headers[k] = cp
		}
	}
	if h.Route.Idents != nil {
		out.Route.Idents = append([]uint32(nil), h.Route.Idents...)
	}
	return out
}
