package corral

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kaze-mesh/kaze/internal/metrics"
	"github.com/kaze-mesh/kaze/internal/packet"
	"github.com/kaze-mesh/kaze/internal/wire"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func newTestCorral(t *testing.T, listen string, onFrame FrameHandler) *Corral {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	c, err := New(Config{
		Listen:         listen,
		MaxConnections: 64,
		PendingTimeout: 2 * time.Second,
		IdleTimeout:    0,
		MaxFrameSize:   1 << 16,
	}, m, zaptest.NewLogger(t).Sugar(), onFrame)
	require.NoError(t, err)
	return c
}

func runCorral(t *testing.T, c *Corral) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestAcceptDecodesInboundFrame(t *testing.T) {
	var mu sync.Mutex
	var got []packet.Packet

	listen := freeAddr(t)
	c := newTestCorral(t, listen, func(p packet.Packet) error {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
		return nil
	})
	stop := runCorral(t, c)
	defer stop()

	require.Eventually(t, func() bool {
		_, err := net.Dial("tcp", listen)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	nc, err := net.Dial("tcp", listen)
	require.NoError(t, err)
	defer nc.Close()

	pool := packet.NewPool(256)
	p := packet.Packet{Hdr: wire.Hdr{BodyType: "ping", SrcIdent: 7}, HdrDirty: true, Body: packet.EmptyBody()}
	frame, release := p.EncodeFrame(pool)
	_, err = nc.Write(frame)
	release()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "ping", got[0].Hdr.BodyType)
	assert.Equal(t, uint32(7), got[0].Hdr.SrcIdent)
}

func TestSendToDialsAndDelivers(t *testing.T) {
	var mu sync.Mutex
	var got []packet.Packet

	listen := freeAddr(t)
	server := newTestCorral(t, listen, func(p packet.Packet) error {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
		return nil
	})
	stop := runCorral(t, server)
	defer stop()

	require.Eventually(t, func() bool {
		_, err := net.Dial("tcp", listen)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	client := newTestCorral(t, freeAddr(t), nil)

	addr, err := net.ResolveTCPAddr("tcp", listen)
	require.NoError(t, err)

	p := packet.Packet{Hdr: wire.Hdr{BodyType: "hello", SrcIdent: 1}, HdrDirty: true, Body: packet.EmptyBody()}
	require.NoError(t, client.SendTo(context.Background(), 42, addr, p))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
