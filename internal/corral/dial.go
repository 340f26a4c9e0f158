package corral

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/kaze-mesh/kaze/internal/packet"
)

// findOrConnect returns the cached connection for ident, or dials one,
// coalescing concurrent dials to the same ident through a singleflight
// group (spec.md §4.7, DOMAIN STACK: golang.org/x/sync/singleflight).
func (c *Corral) findOrConnect(ctx context.Context, ident uint32, addr net.Addr) (*conn, error) {
	if cn, ok := c.byIdent.Get(ident); ok {
		return cn, nil
	}

	key := strconv.FormatUint(uint64(ident), 10)
	v, err, _ := c.dialsfg.Do(key, func() (any, error) {
		if cn, ok := c.byIdent.Get(ident); ok {
			return cn, nil
		}

		d := net.Dialer{}
		nc, derr := d.DialContext(ctx, "tcp", addr.String())
		if derr != nil {
			return nil, fmt.Errorf("corral: dial %s (ident=%d): %w", addr, ident, derr)
		}
		cn := newConn(nc)
		c.byIdent.Add(ident, cn)
		c.m.Connections.Inc()
		go c.serve(context.Background(), cn, true)
		return cn, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*conn), nil
}

// SendTo writes a packet to the single node behind ident, dialing if
// necessary.
func (c *Corral) SendTo(ctx context.Context, ident uint32, addr net.Addr, p packet.Packet) error {
	cn, err := c.findOrConnect(ctx, ident, addr)
	if err != nil {
		return err
	}
	return c.writePacket(cn, p)
}

// SendBroadcast writes a packet to every (ident, addr) pair nodes yields,
// collecting every per-destination failure into one composite error
// rather than stopping at the first (spec.md §4.7's vectored broadcast
// send).
func (c *Corral) SendBroadcast(ctx context.Context, nodes func(yield func(ident uint32, addr net.Addr)), p packet.Packet) error {
	var errs []error
	nodes(func(ident uint32, addr net.Addr) {
		if err := c.SendTo(ctx, ident, addr, p); err != nil {
			errs = append(errs, err)
		}
	})
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("corral: broadcast had %d failures: %w", len(errs), errors.Join(errs...))
}

func (c *Corral) writePacket(cn *conn, p packet.Packet) error {
	iov, release := p.Iovec(c.pool, true)
	defer release()
	if err := cn.writev(iov[0], iov[1]); err != nil {
		if isTimeout(err) {
			c.m.SendTimeoutErrors.Inc()
		}
		return fmt.Errorf("corral: write to %s: %w", cn.addr, err)
	}
	c.m.WritePackets.Inc()
	return nil
}
