package kazectx

import (
	"context"

	"github.com/kaze-mesh/kaze/internal/corral"
	"github.com/kaze-mesh/kaze/internal/metrics"
	"github.com/kaze-mesh/kaze/internal/resolver"
	"github.com/kaze-mesh/kaze/internal/rpctracker"
	"github.com/kaze-mesh/kaze/internal/supervisor"
)

// CorralPlugin adapts *corral.Corral to the Plugin contract. It has no
// state of its own to release on Close: the Corral's accept loop and
// connections all tear down inside Run when its context is cancelled.
type CorralPlugin struct {
	Corral *corral.Corral
}

func (p *CorralPlugin) Name() string             { return "corral" }
func (p *CorralPlugin) Init(*Context) error       { return nil }
func (p *CorralPlugin) Run(ctx context.Context) error { return p.Corral.Run(ctx) }
func (p *CorralPlugin) Close() error              { return nil }

// SupervisorPlugin adapts *supervisor.Supervisor to the Plugin contract.
type SupervisorPlugin struct {
	Supervisor *supervisor.Supervisor
}

func (p *SupervisorPlugin) Name() string             { return "supervisor" }
func (p *SupervisorPlugin) Init(*Context) error       { return nil }
func (p *SupervisorPlugin) Run(ctx context.Context) error { return p.Supervisor.Run(ctx) }
func (p *SupervisorPlugin) Close() error              { return nil }

// MetricsPlugin adapts *metrics.Server to the Plugin contract.
type MetricsPlugin struct {
	Server *metrics.Server
}

func (p *MetricsPlugin) Name() string             { return "prometheus" }
func (p *MetricsPlugin) Init(*Context) error       { return nil }
func (p *MetricsPlugin) Run(ctx context.Context) error { return p.Server.Run(ctx) }
func (p *MetricsPlugin) Close() error              { return nil }

// ConsulPlugin adapts *resolver.Consul's registration loop to the
// Plugin contract; it is only registered when Consul self-registration
// is enabled (spec.md §9's Open Question: registration only, no
// lookup).
type ConsulPlugin struct {
	Consul *resolver.Consul
}

func (p *ConsulPlugin) Name() string             { return "consul" }
func (p *ConsulPlugin) Init(*Context) error       { return nil }
func (p *ConsulPlugin) Run(ctx context.Context) error { return p.Consul.Run(ctx) }
func (p *ConsulPlugin) Close() error              { return nil }

// TrackerPlugin adapts *rpctracker.Tracker to the Plugin contract. The
// tracker's own goroutine is already running by the time New returns
// (it owns the map+heap internally), so Run just blocks until
// shutdown; Close releases it.
type TrackerPlugin struct {
	Tracker *rpctracker.Tracker
}

func (p *TrackerPlugin) Name() string       { return "rpctracker" }
func (p *TrackerPlugin) Init(*Context) error { return nil }

func (p *TrackerPlugin) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (p *TrackerPlugin) Close() error {
	p.Tracker.Close()
	return nil
}
