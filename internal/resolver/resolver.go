// Package resolver maps Kaze idents to TCP addresses (spec.md §4.4). The
// interface is deliberately small so Local, Cached, Chain and the
// Consul-backed resolver all compose through the same contract.
package resolver

import "net"

// Resolver looks up idents and enumerates nodes, optionally masked.
type Resolver interface {
	// AddNode inserts or replaces the address for ident.
	AddNode(ident uint32, addr net.Addr)
	// GetNode returns the address for ident, if known.
	GetNode(ident uint32) (net.Addr, bool)
	// VisitNodes calls fn once for each ident in idents that resolves.
	VisitNodes(idents []uint32, fn func(ident uint32, addr net.Addr))
	// VisitMaskedNodes calls fn once per node whose ident satisfies
	// node_ident & mask == ident & mask. Order is unspecified; a node is
	// visited at most once per call.
	VisitMaskedNodes(ident, mask uint32, fn func(ident uint32, addr net.Addr))
}
