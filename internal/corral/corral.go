// Package corral implements the LRU-bounded TCP connection manager from
// spec.md §4.7: an accept loop plus a bounded cache of outbound
// connections, with single-flight dial coalescing and vectored
// unicast/broadcast sends.
package corral

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kaze-mesh/kaze/internal/metrics"
	"github.com/kaze-mesh/kaze/internal/packet"
)

// FrameHandler is invoked once per decoded inbound packet. Returning an
// error closes the connection it arrived on.
type FrameHandler func(p packet.Packet) error

// Config configures a Corral.
type Config struct {
	Listen         string        `toml:"listen"`
	MaxConnections int           `toml:"max_connections"`
	PendingTimeout time.Duration `toml:"pending_timeout"` // first-frame deadline for inbound connections
	IdleTimeout    time.Duration `toml:"idle_timeout"`     // no-frame-received deadline, 0 disables
	MaxFrameSize   uint32        `toml:"max_frame_size"`
}

// Corral accepts inbound peer connections and manages a bounded set of
// outbound ones, keyed by ident.
type Corral struct {
	cfg     Config
	log     *zap.SugaredLogger
	m       *metrics.Metrics
	pool    *packet.Pool
	onFrame FrameHandler

	ln net.Listener

	byIdent *lru.Cache[uint32, *conn]
	dialsfg singleflight.Group
}

// New constructs a Corral bound to cfg.Listen (opened by Run), with
// onFrame called for every inbound decoded packet.
func New(cfg Config, m *metrics.Metrics, log *zap.SugaredLogger, onFrame FrameHandler) (*Corral, error) {
	c := &Corral{cfg: cfg, log: log, m: m, pool: packet.NewPool(1024), onFrame: onFrame}

	cache, err := lru.NewWithEvict[uint32, *conn](cfg.MaxConnections, func(_ uint32, v *conn) {
		_ = v.close()
	})
	if err != nil {
		return nil, fmt.Errorf("corral: lru: %w", err)
	}
	c.byIdent = cache
	return c, nil
}

// Run opens the listener and serves inbound connections until ctx is
// cancelled, then closes every tracked connection (spec.md §4.7's
// "graceful shutdown").
func (c *Corral) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", c.cfg.Listen)
	if err != nil {
		return fmt.Errorf("corral: listen %q: %w", c.cfg.Listen, err)
	}
	c.ln = ln

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})
	group.Go(func() error {
		return c.acceptLoop(gctx)
	})

	err = group.Wait()
	c.shutdownConns()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (c *Corral) acceptLoop(ctx context.Context) error {
	for {
		nc, err := c.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		cn := newConn(nc)
		c.m.Connections.Inc()
		go c.serve(ctx, cn, false)
	}
}

func (c *Corral) shutdownConns() {
	for _, ident := range c.byIdent.Keys() {
		if cn, ok := c.byIdent.Peek(ident); ok {
			_ = cn.close()
		}
	}
	c.byIdent.Purge()
}
