package pipeline

import (
	"context"
	"net"

	"github.com/kaze-mesh/kaze/internal/metrics"
	"github.com/kaze-mesh/kaze/internal/packet"
	"github.com/kaze-mesh/kaze/internal/resolver"
	"github.com/kaze-mesh/kaze/internal/wire"
)

// DispatchStage is step 3 of spec.md §4.8: resolves hdr.route into a
// Message destination (Drop | Host | Node | NodeList).
type DispatchStage struct {
	localIdent uint32
	res        resolver.Resolver
	m          *metrics.Metrics
	rng        func(n int) int
}

// NewDispatchStage builds a DispatchStage resolving against res; packets
// routed to localIdent are delivered locally rather than looped over TCP
// (spec.md §8 scenario list).
func NewDispatchStage(localIdent uint32, res resolver.Resolver, m *metrics.Metrics) *DispatchStage {
	return &DispatchStage{localIdent: localIdent, res: res, m: m, rng: defaultPick}
}

func (s *DispatchStage) Handle(_ context.Context, msg Message) (Message, error) {
	route := msg.Packet.Hdr.Route

	switch route.Kind {
	case wire.RouteNone:
		msg.Destination = DestDrop
		return msg, nil

	case wire.RouteIdent:
		if route.Ident == s.localIdent {
			msg.Destination = DestHost
			return msg, nil
		}
		addr, ok := s.res.GetNode(route.Ident)
		if !ok {
			return s.unreachable(msg), nil
		}
		msg.Destination = DestNode
		msg.Node = NodeAddr{Ident: route.Ident, Addr: addr}
		return msg, nil

	case wire.RouteRandom:
		nodes := s.collectMasked(route)
		if len(nodes) == 0 {
			return s.unreachable(msg), nil
		}
		msg.Destination = DestNode
		msg.Node = nodes[s.rng(len(nodes))]
		return msg, nil

	case wire.RouteBroadcast:
		nodes := s.collectMasked(route)
		if len(nodes) == 0 {
			return s.unreachable(msg), nil
		}
		msg.Destination = DestNodeList
		msg.NodeList = nodes
		return msg, nil

	case wire.RouteMulticast:
		var nodes []NodeAddr
		s.res.VisitNodes(route.Idents, func(ident uint32, addr net.Addr) {
			nodes = append(nodes, NodeAddr{Ident: ident, Addr: addr})
		})
		if len(nodes) == 0 {
			return s.unreachable(msg), nil
		}
		msg.Destination = DestNodeList
		msg.NodeList = nodes
		return msg, nil

	default:
		msg.Destination = DestDrop
		return msg, nil
	}
}

func (s *DispatchStage) collectMasked(route wire.RouteType) []NodeAddr {
	var nodes []NodeAddr
	s.res.VisitMaskedNodes(route.Ident, route.Mask, func(ident uint32, addr net.Addr) {
		nodes = append(nodes, NodeAddr{Ident: ident, Addr: addr})
	})
	return nodes
}

// unreachable synthesizes a RetUnreachable reply for RPC requests
// (routed back to the host) or drops silently and counts otherwise, per
// spec.md §8 scenario 5.
func (s *DispatchStage) unreachable(msg Message) Message {
	if msg.Packet.Hdr.Rpc.Kind == wire.RpcReq {
		resp := packet.FromRetCode(msg.Packet.Hdr, wire.RetUnreachable)
		resp.Hdr.SrcIdent = s.localIdent
		msg.Packet = resp
		msg.Destination = DestHost
		return msg
	}
	if s.m != nil {
		s.m.DispatchErrors.WithLabelValues(msg.Packet.Hdr.BodyType).Inc()
	}
	msg.Destination = DestDrop
	return msg
}

func defaultPick(n int) int {
	if n <= 1 {
		return 0
	}
	return int(pseudoRandomUint32() % uint32(n))
}
