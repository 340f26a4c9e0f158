package resolver

import "net"

// Chain tries r1 first for unicast lookup, falling back to r2; its
// visit methods apply fn against both resolvers' results, possibly
// visiting the same ident twice if both report it (spec.md §4.4 —
// deduplication, if needed, is left to the caller).
type Chain struct {
	r1, r2 Resolver
}

// NewChain returns a Chain(r1, r2).
func NewChain(r1, r2 Resolver) *Chain {
	return &Chain{r1: r1, r2: r2}
}

func (c *Chain) AddNode(ident uint32, addr net.Addr) {
	c.r1.AddNode(ident, addr)
}

func (c *Chain) GetNode(ident uint32) (net.Addr, bool) {
	if addr, ok := c.r1.GetNode(ident); ok {
		return addr, true
	}
	return c.r2.GetNode(ident)
}

func (c *Chain) VisitNodes(idents []uint32, fn func(ident uint32, addr net.Addr)) {
	c.r1.VisitNodes(idents, fn)
	c.r2.VisitNodes(idents, fn)
}

func (c *Chain) VisitMaskedNodes(ident, mask uint32, fn func(ident uint32, addr net.Addr)) {
	c.r1.VisitMaskedNodes(ident, mask, fn)
	c.r2.VisitMaskedNodes(ident, mask, fn)
}
