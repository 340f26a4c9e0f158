package resolver

import (
	"net"

	"github.com/kaze-mesh/kaze/internal/metrics"
)

// WithMetrics decorates inner with lookup/miss counters. This is the
// supplemented instrumentation the distillation dropped (spec.md §1's
// "only its fields matter" framing covers behavior, not observability) —
// a one-line addition once internal/metrics exists.
type WithMetrics struct {
	inner Resolver
	m     *metrics.Metrics
}

// NewWithMetrics wraps inner, counting every GetNode call against m.
func NewWithMetrics(inner Resolver, m *metrics.Metrics) *WithMetrics {
	return &WithMetrics{inner: inner, m: m}
}

func (w *WithMetrics) AddNode(ident uint32, addr net.Addr) {
	w.inner.AddNode(ident, addr)
}

func (w *WithMetrics) GetNode(ident uint32) (net.Addr, bool) {
	w.m.ResolverLookups.Inc()
	addr, ok := w.inner.GetNode(ident)
	if !ok {
		w.m.ResolverMisses.Inc()
	}
	return addr, ok
}

func (w *WithMetrics) VisitNodes(idents []uint32, fn func(ident uint32, addr net.Addr)) {
	w.inner.VisitNodes(idents, fn)
}

func (w *WithMetrics) VisitMaskedNodes(ident, mask uint32, fn func(ident uint32, addr net.Addr)) {
	w.inner.VisitMaskedNodes(ident, mask, fn)
}
