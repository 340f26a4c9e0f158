package resolver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"
	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"

	"github.com/kaze-mesh/kaze/internal/xerror"
)

// ConsulConfig configures self-registration against a Consul agent.
type ConsulConfig struct {
	Enabled      bool          `toml:"enabled"`
	Address      string        `toml:"address"`
	ServiceName  string        `toml:"service_name"`
	ServiceID    string        `toml:"service_id"`
	Ident        uint32        `toml:"ident"`
	AdvertiseTCP string        `toml:"advertise_tcp"` // host:port Consul should advertise for this node
	Interval     time.Duration `toml:"interval"`
}

// Consul is a self-registration-only resolver: per spec.md §9's Open
// Question, the original implementation never finished get_node/
// visit_nodes for its Consul backend, so this port keeps registration and
// marks lookup unimplemented instead of inventing semantics for it.
type Consul struct {
	client *consulapi.Client
	cfg    ConsulConfig
	log    *zap.SugaredLogger
}

// NewConsul builds a Consul resolver. It does not contact the agent until
// Register is called.
func NewConsul(cfg ConsulConfig, log *zap.SugaredLogger) (*Consul, error) {
	ccfg := consulapi.DefaultConfig()
	if cfg.Address != "" {
		ccfg.Address = cfg.Address
	}
	client, err := consulapi.NewClient(ccfg)
	if err != nil {
		return nil, fmt.Errorf("resolver: consul client: %w", err)
	}
	return &Consul{client: client, cfg: cfg, log: log}, nil
}

// Register registers the local node with the Consul agent, retrying
// with exponential backoff up to 5 tries (spec.md §9's "periodic
// self-registration"). Run calls it once at start and again every
// cfg.Interval.
func (c *Consul) Register(ctx context.Context) error {
	register := func() (struct{}, error) {
		reg := &consulapi.AgentServiceRegistration{
			ID:      c.cfg.ServiceID,
			Name:    c.cfg.ServiceName,
			Address: c.cfg.AdvertiseTCP,
			Tags:    []string{fmt.Sprintf("ident=%d", c.cfg.Ident)},
		}
		if err := c.client.Agent().ServiceRegister(reg); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, register, backoff.WithMaxTries(5))
	if err != nil {
		return fmt.Errorf("resolver: consul register: %w", err)
	}
	if c.log != nil {
		c.log.Debugw("consul registration refreshed", "service", c.cfg.ServiceName, "ident", c.cfg.Ident)
	}
	return nil
}

// Run registers once immediately, then re-registers every cfg.Interval
// until ctx is cancelled.
func (c *Consul) Run(ctx context.Context) error {
	if err := c.Register(ctx); err != nil {
		return err
	}
	interval := c.cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Register(ctx); err != nil && c.log != nil {
				c.log.Warnw("consul re-registration failed", "error", err)
			}
		}
	}
}

// AddNode is a no-op: registration-only, the local node's own entry is
// managed via Register rather than the generic add-node path other
// resolvers expose.
func (c *Consul) AddNode(ident uint32, addr net.Addr) {}

// GetNode always misses; see ErrNotImplemented.
func (c *Consul) GetNode(ident uint32) (net.Addr, bool) {
	return nil, false
}

// VisitNodes never calls fn; see ErrNotImplemented.
func (c *Consul) VisitNodes(idents []uint32, fn func(ident uint32, addr net.Addr)) {}

// VisitMaskedNodes never calls fn; see ErrNotImplemented.
func (c *Consul) VisitMaskedNodes(ident, mask uint32, fn func(ident uint32, addr net.Addr)) {}

// ErrNotImplemented names the unimplemented Consul lookup paths (spec.md
// §9's Open Question on the Consul resolver). No method returns it: the
// Resolver interface has no error result, so GetNode reports a miss and
// the visit methods never call fn.
var ErrNotImplemented = fmt.Errorf("resolver: consul lookup not implemented: %w", xerror.ErrInvalid)
