package corral

import (
	"bufio"
	"context"
	"errors"
	"net"

	"github.com/kaze-mesh/kaze/internal/packet"
)

const readBufSize = 64 * 1024

// serve owns nc's read half for its whole lifetime: it enforces the
// pending-first-frame and idle deadlines, decodes frames, and hands each
// one to onFrame, per spec.md §4.7. dialed distinguishes outbound
// connections (already registered in byIdent by the caller) from inbound
// ones (registered here once their first frame reveals their ident).
func (c *Corral) serve(ctx context.Context, cn *conn, dialed bool) {
	defer func() {
		c.m.Connections.Dec()
		_ = cn.close()
	}()

	r := bufio.NewReaderSize(cn.nc, readBufSize)
	buf := make([]byte, 0, readBufSize)

	if c.cfg.PendingTimeout > 0 {
		_ = cn.nc.SetReadDeadline(deadlineFrom(c.cfg.PendingTimeout))
	}

	for {
		p, n, err := readOneFrame(r, &buf, c.cfg.MaxFrameSize)
		if err != nil {
			if isTimeout(err) {
				if cn.firstFrameSeen {
					c.m.ReadIdleTimeout.Inc()
				} else {
					c.m.ReadPendingTimeout.Inc()
				}
			} else if errors.Is(err, errConnClosed) {
				c.m.ReadClosed.Inc()
			}
			return
		}
		_ = n
		cn.firstFrameSeen = true

		if c.cfg.IdleTimeout > 0 {
			_ = cn.nc.SetReadDeadline(deadlineFrom(c.cfg.IdleTimeout))
		} else {
			_ = cn.nc.SetReadDeadline(zeroTime)
		}

		if !dialed {
			c.registerInbound(p.Hdr.SrcIdent, cn)
		}

		if c.onFrame != nil {
			if err := c.onFrame(p); err != nil {
				return
			}
		}

		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Corral) registerInbound(ident uint32, cn *conn) {
	if ident == 0 {
		return
	}
	if _, ok := c.byIdent.Get(ident); !ok {
		c.byIdent.Add(ident, cn)
	}
}

// readOneFrame reads bytes from r into buf until a complete peer frame
// is available, then decodes it.
func readOneFrame(r *bufio.Reader, buf *[]byte, maxFrameSize uint32) (packet.Packet, int, error) {
	for {
		p, n, err := packet.DecodePeerFrame(*buf, maxFrameSize)
		if err == nil {
			// p.Body may still reference *buf's backing array (clean,
			// zero-copy decode), so the leftover bytes must live in a
			// freshly allocated array rather than reusing this one.
			*buf = append([]byte(nil), (*buf)[n:]...)
			return p, n, nil
		}
		if !isAgain(err) {
			return packet.Packet{}, 0, err
		}

		chunk := make([]byte, 4096)
		rn, rerr := r.Read(chunk)
		if rn > 0 {
			*buf = append(*buf, chunk[:rn]...)
		}
		if rerr != nil {
			return packet.Packet{}, 0, translateReadErr(rerr)
		}
	}
}
