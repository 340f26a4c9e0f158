package pipeline

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kaze-mesh/kaze/internal/metrics"
	"github.com/kaze-mesh/kaze/internal/packet"
	"github.com/kaze-mesh/kaze/internal/resolver"
	"github.com/kaze-mesh/kaze/internal/rpctracker"
	"github.com/kaze-mesh/kaze/internal/wire"
)

type fakeCorral struct {
	mu  sync.Mutex
	got []packet.Packet
}

func (f *fakeCorral) SendTo(_ context.Context, _ uint32, _ net.Addr, p packet.Packet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, p)
	return nil
}

func (f *fakeCorral) SendBroadcast(_ context.Context, nodes func(yield func(ident uint32, addr net.Addr)), p packet.Packet) error {
	nodes(func(ident uint32, addr net.Addr) {
		f.mu.Lock()
		f.got = append(f.got, p)
		f.mu.Unlock()
	})
	return nil
}

func buildTestChain(t *testing.T, localIdent uint32, res resolver.Resolver, corral CorralSender) *Chain {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	tr := rpctracker.New(localIdent, func(packet.Packet) {}, zaptest.NewLogger(t).Sugar())
	t.Cleanup(tr.Close)

	var seq uint32
	rpcStage := NewRPCTrackerStage(tr, func() uint32 { return atomic.AddUint32(&seq, 1) })

	return NewChain(
		rpcStage,
		NewDispatchStage(localIdent, res, m),
		NewCorralSinkStage(corral),
		NewTerminalSinkStage(zaptest.NewLogger(t).Sugar()),
	)
}

func addrT(t *testing.T, s string) net.Addr {
	a, err := net.ResolveTCPAddr("tcp", s)
	require.NoError(t, err)
	return a
}

func TestPipelineRoutesToRemoteNode(t *testing.T) {
	res := resolver.NewLocal()
	res.AddNode(2, addrT(t, "127.0.0.1:9002"))
	corral := &fakeCorral{}

	chain := buildTestChain(t, 1, res, corral)

	msg := Message{Packet: packet.Packet{Hdr: wire.Hdr{BodyType: "ping", Route: wire.ByIdent(2)}}}
	out, err := chain.Run(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, DestDrop, out.Destination)

	corral.mu.Lock()
	defer corral.mu.Unlock()
	require.Len(t, corral.got, 1)
}

func TestPipelineUnreachableRpcGetsHostRetUnreachable(t *testing.T) {
	res := resolver.NewLocal()
	corral := &fakeCorral{}
	chain := buildTestChain(t, 1, res, corral)

	msg := Message{Packet: packet.Packet{Hdr: wire.Hdr{
		BodyType: "req",
		Route:    wire.ByIdent(9),
		Rpc:      wire.RpcType{Kind: wire.RpcReq, Seq: 1},
	}}}
	out, err := chain.Run(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, DestDrop, out.Destination)
	assert.Equal(t, wire.RetUnreachable, out.Packet.Hdr.RetCode)
	assert.Equal(t, wire.RpcRsp, out.Packet.Hdr.Rpc.Kind)
}

func TestPipelineUnreachableNonRpcDropsSilently(t *testing.T) {
	res := resolver.NewLocal()
	corral := &fakeCorral{}
	chain := buildTestChain(t, 1, res, corral)

	msg := Message{Packet: packet.Packet{Hdr: wire.Hdr{BodyType: "ntf", Route: wire.ByIdent(9)}}}
	out, err := chain.Run(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, DestDrop, out.Destination)

	corral.mu.Lock()
	defer corral.mu.Unlock()
	assert.Empty(t, corral.got)
}

func TestPipelineLocalIdentRoutesHost(t *testing.T) {
	res := resolver.NewLocal()
	corral := &fakeCorral{}
	chain := buildTestChain(t, 1, res, corral)

	msg := Message{Packet: packet.Packet{Hdr: wire.Hdr{BodyType: "ping", Route: wire.ByIdent(1)}}}
	out, err := chain.Run(context.Background(), msg)
	require.NoError(t, err)
	// TerminalSinkStage always ends in DestDrop; dispatch should have
	// set DestHost before the corral sink passed it through untouched.
	assert.Equal(t, DestDrop, out.Destination)
}
