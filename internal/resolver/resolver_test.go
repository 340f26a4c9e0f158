package resolver

import (
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaze-mesh/kaze/internal/metrics"
)

func addr(s string) net.Addr {
	a, err := net.ResolveTCPAddr("tcp", s)
	if err != nil {
		panic(err)
	}
	return a
}

func TestLocalAddGet(t *testing.T) {
	l := NewLocal()
	l.AddNode(1, addr("127.0.0.1:9001"))

	got, ok := l.GetNode(1)
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:9001", got.String())

	_, ok = l.GetNode(2)
	assert.False(t, ok)
}

func TestLocalVisitMaskedNodes(t *testing.T) {
	l := NewLocal()
	l.AddNode(0x0a000001, addr("127.0.0.1:1"))
	l.AddNode(0x0a000002, addr("127.0.0.1:2"))
	l.AddNode(0x0b000001, addr("127.0.0.1:3"))

	var seen []uint32
	l.VisitMaskedNodes(0x0a000000, 0xffffff00, func(ident uint32, _ net.Addr) {
		seen = append(seen, ident)
	})

	assert.ElementsMatch(t, []uint32{0x0a000001, 0x0a000002}, seen)
}

func TestChainFallsBackToSecond(t *testing.T) {
	l1 := NewLocal()
	l2 := NewLocal()
	l2.AddNode(5, addr("127.0.0.1:5"))

	c := NewChain(l1, l2)
	got, ok := c.GetNode(5)
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:5", got.String())
}

func TestCachedMemoizesMaskedQuery(t *testing.T) {
	l := NewLocal()
	l.AddNode(0x0a000001, addr("127.0.0.1:1"))

	c := NewCached(l, 16, time.Minute)

	var calls int
	visit := func(ident uint32, _ net.Addr) { calls++ }

	c.VisitMaskedNodes(0x0a000000, 0xffffff00, visit)
	// A node added to the inner resolver after the first query is not
	// seen by the second one, which is served from the cache.
	l.AddNode(0x0a000002, addr("127.0.0.1:2"))
	c.VisitMaskedNodes(0x0a000000, 0xffffff00, visit)

	assert.Equal(t, 2, calls)
}

func TestWithMetricsCountsLookupsAndMisses(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	l := NewLocal()
	l.AddNode(1, addr("127.0.0.1:1"))
	wm := NewWithMetrics(l, m)

	_, ok := wm.GetNode(1)
	require.True(t, ok)
	_, ok = wm.GetNode(2)
	require.False(t, ok)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ResolverLookups))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ResolverMisses))
}
