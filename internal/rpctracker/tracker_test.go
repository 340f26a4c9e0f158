package rpctracker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kaze-mesh/kaze/internal/packet"
	"github.com/kaze-mesh/kaze/internal/wire"
)

func TestTimeoutSynthesizesRetTimeout(t *testing.T) {
	var mu sync.Mutex
	var got []packet.Packet

	tr := New(99, func(p packet.Packet) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	}, zaptest.NewLogger(t).Sugar())
	defer tr.Close()

	var seqCounter uint32
	alloc := func() uint32 { return atomic.AddUint32(&seqCounter, 1) }

	h := wire.Hdr{BodyType: "req", TimeoutMs: 30, Rpc: wire.RpcType{Kind: wire.RpcReq}}
	h = tr.Observe(h, alloc)
	require.NotZero(t, h.Rpc.Seq)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, wire.RetTimeout, got[0].Hdr.RetCode)
	assert.Equal(t, wire.RpcRsp, got[0].Hdr.Rpc.Kind)
	assert.Equal(t, h.Rpc.Seq, got[0].Hdr.Rpc.Seq)
	assert.Equal(t, uint32(99), got[0].Hdr.SrcIdent)
}

func TestRspCancelsPendingTimeout(t *testing.T) {
	var calls int32

	tr := New(1, func(p packet.Packet) {
		atomic.AddInt32(&calls, 1)
	}, zaptest.NewLogger(t).Sugar())
	defer tr.Close()

	h := wire.Hdr{BodyType: "req", TimeoutMs: 50, Rpc: wire.RpcType{Kind: wire.RpcReq, Seq: 7}}
	tr.Observe(h, func() uint32 { return 7 })

	rsp := wire.Hdr{Rpc: wire.RpcType{Kind: wire.RpcRsp, Seq: 7}}
	tr.Observe(rsp, nil)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestZeroTimeoutIsNotTracked(t *testing.T) {
	var calls int32
	tr := New(1, func(p packet.Packet) { atomic.AddInt32(&calls, 1) }, zaptest.NewLogger(t).Sugar())
	defer tr.Close()

	h := wire.Hdr{Rpc: wire.RpcType{Kind: wire.RpcReq, Seq: 5}, TimeoutMs: 0}
	got := tr.Observe(h, func() uint32 { return 99 })
	assert.Equal(t, uint32(5), got.Rpc.Seq)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
