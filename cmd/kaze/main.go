// Command kaze runs the per-host sidecar mesh gateway: it attaches to
// the host's shared-memory channel, accepts/dials peer TCP
// connections, and forwards packets between the two according to the
// pipeline described in spec.md, wiring every plugin through
// internal/kazectx the way the teacher's coordinator binary wires its
// Coordinator (coordinator/cmd/coordinator/main.go).
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kaze-mesh/kaze/internal/config"
	"github.com/kaze-mesh/kaze/internal/corral"
	"github.com/kaze-mesh/kaze/internal/edge"
	"github.com/kaze-mesh/kaze/internal/kazectx"
	"github.com/kaze-mesh/kaze/internal/logging"
	"github.com/kaze-mesh/kaze/internal/metrics"
	"github.com/kaze-mesh/kaze/internal/packet"
	"github.com/kaze-mesh/kaze/internal/pipeline"
	"github.com/kaze-mesh/kaze/internal/ratelimit"
	"github.com/kaze-mesh/kaze/internal/resolver"
	"github.com/kaze-mesh/kaze/internal/rpctracker"
	"github.com/kaze-mesh/kaze/internal/supervisor"
)

// interrupted wraps the signal that stopped the process, mirroring the
// teacher's coordinator/cmd/coordinator/main.go Interrupted type.
type interrupted struct{ os.Signal }

func (m interrupted) Error() string { return m.String() }

// waitInterrupted blocks until SIGINT/SIGTERM arrives or ctx is done.
func waitInterrupted(ctx context.Context) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case v := <-ch:
		return interrupted{Signal: v}
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cliFlags struct {
	configPath string
	listen     string
	threads    int
	dumpConfig bool
}

var flags cliFlags

var rootCmd = &cobra.Command{
	Use:   "kaze",
	Short: "Kaze per-host sidecar mesh gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		var hostArgs []string
		if dash := cmd.ArgsLenAtDash(); dash >= 0 {
			hostArgs = args[dash:]
		}
		if err := runMain(flags, hostArgs); err != nil {
			var i interrupted
			if errors.As(err, &i) {
				return nil
			}
			return err
		}
		return nil
	},
}

var reloadLogLevelCmd = &cobra.Command{
	Use:   "reload-log-level",
	Short: "Placeholder for a running instance's admin-triggered log level reload",
	RunE: func(*cobra.Command, []string) error {
		return fmt.Errorf("kaze: reload-log-level requires a running instance's admin endpoint, not yet wired to this binary")
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "path to the TOML configuration file (required)")
	rootCmd.Flags().StringVarP(&flags.listen, "listen", "l", "", "override the corral TCP listen address")
	rootCmd.Flags().IntVarP(&flags.threads, "threads", "j", 0, "worker thread hint (informational; Go schedules its own M:N runtime)")
	rootCmd.Flags().BoolVar(&flags.dumpConfig, "dump-config", false, "print the merged configuration as TOML and exit")
	rootCmd.AddCommand(reloadLogLevelCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func runMain(flags cliFlags, hostArgs []string) error {
	if flags.configPath == "" {
		return fmt.Errorf("kaze: --config is required")
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.listen != "" {
		cfg.Corral.Listen = flags.listen
	}
	if len(hostArgs) > 0 {
		cfg.Supervisor.HostCommand = hostArgs[0]
		cfg.Supervisor.HostArgs = hostArgs[1:]
	}

	if flags.dumpConfig {
		out, err := cfg.Dump()
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	log, _, err := logging.Init(cfg.Log)
	if err != nil {
		return fmt.Errorf("kaze: init logging: %w", err)
	}
	defer log.Sync()

	return run(cfg, log)
}

func run(cfg config.Config, log *zap.SugaredLogger) error {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	var consulResolver *resolver.Consul
	if cfg.Consul.Enabled {
		var err error
		consulResolver, err = resolver.NewConsul(cfg.Consul, log)
		if err != nil {
			return fmt.Errorf("kaze: build consul resolver: %w", err)
		}
	}
	res := buildResolver(cfg, consulResolver, m, log)

	pool := packet.NewPool(4096)
	guard := kazectx.NewShutdownGuard(context.Background())
	kctx := kazectx.New(log, pool, guard)

	limiter := ratelimit.New(cfg.RateLimit, m)
	defer limiter.Close()

	var refinedChain *pipeline.Chain
	tr := rpctracker.New(cfg.Ident, func(p packet.Packet) {
		entry := pipeline.EntryStage{}
		if _, err := refinedChain.Run(guard.Context(), entry.Wrap(p, nil)); err != nil {
			log.Warnw("rpc tracker sink: pipeline error", "error", err)
		}
	}, log)

	var seq uint32
	allocSeq := func() uint32 { seq++; return seq }

	edgeEntry, err := edge.Create(cfg.Edge.Dir, cfg.Edge.Prefix, cfg.Ident, uint32(cfg.Edge.BufSize.Bytes()), cfg.Edge.ForceUnlink)
	if err != nil {
		return fmt.Errorf("kaze: create edge channel: %w", err)
	}
	defer edgeEntry.Close(false)
	edgeSender, edgeReceiver := edgeEntry.IntoSplit()

	var rawChain *pipeline.Chain
	onFrame := func(p packet.Packet) error {
		entry := pipeline.EntryStage{}
		_, err := rawChain.Run(guard.Context(), entry.Wrap(p, nil))
		return err
	}
	cr, err := corral.New(cfg.Corral, m, log, onFrame)
	if err != nil {
		return fmt.Errorf("kaze: build corral: %w", err)
	}

	refinedChain = pipeline.NewChain(
		pipeline.NewRateLimitStage(limiter),
		pipeline.NewDispatchStage(cfg.Ident, res, m),
		pipeline.NewRPCTrackerStage(tr, allocSeq),
		pipeline.NewCorralSinkStage(cr),
		pipeline.NewEdgeSinkStage(edgeSender, pool),
		pipeline.NewTerminalSinkStage(log),
	)
	rawChain = pipeline.NewChain(
		pipeline.NewDispatchStage(cfg.Ident, res, m),
		pipeline.NewRPCTrackerStage(tr, allocSeq),
		pipeline.NewCorralSinkStage(cr),
		pipeline.NewEdgeSinkStage(edgeSender, pool),
		pipeline.NewTerminalSinkStage(log),
	)
	kctx.RefinedSink.Set(refinedChain)
	kctx.RawSink.Set(rawChain)

	if err := kctx.Register(&kazectx.CorralPlugin{Corral: cr}); err != nil {
		return err
	}
	if err := kctx.Register(&kazectx.TrackerPlugin{Tracker: tr}); err != nil {
		return err
	}
	if err := kctx.Register(&kazectx.EdgeReaderPlugin{
		Receiver: edgeReceiver,
		Pool:     pool,
		Sink:     kctx.RefinedSink,
		Log:      log,
	}); err != nil {
		return err
	}
	if err := kctx.Register(&kazectx.MetricsPlugin{
		Server: metrics.NewServer(cfg.Prometheus.Listen, metrics.Handler(reg), log),
	}); err != nil {
		return err
	}
	if err := kctx.Register(&kazectx.SupervisorPlugin{
		Supervisor: supervisor.New(supervisor.Config{
			HostCommand: cfg.Supervisor.HostCommand,
			HostArgs:    cfg.Supervisor.HostArgs,
			GracePeriod: cfg.Supervisor.GracePeriod,
		}, log),
	}); err != nil {
		return err
	}
	if consulResolver != nil {
		if err := kctx.Register(&kazectx.ConsulPlugin{Consul: consulResolver}); err != nil {
			return err
		}
	}

	wg, gctx := errgroup.WithContext(context.Background())
	wg.Go(func() error { return kctx.Run(gctx, 6*time.Second) })
	wg.Go(func() error {
		err := waitInterrupted(gctx)
		log.Infow("caught signal", "error", err)
		return err
	})

	return wg.Wait()
}

// buildResolver assembles Local (seeded from cfg.Local) optionally
// chained with consulResolver, wrapped with the TTL/LRU cache and
// lookup metrics, per spec.md §4.4.
func buildResolver(cfg config.Config, consulResolver *resolver.Consul, m *metrics.Metrics, log *zap.SugaredLogger) resolver.Resolver {
	local := resolver.NewLocal()
	for _, n := range cfg.Local {
		addr, err := net.ResolveTCPAddr("tcp", n.Addr)
		if err != nil {
			log.Warnw("skipping malformed local node", "ident", n.Ident, "addr", n.Addr, "error", err)
			continue
		}
		local.AddNode(n.Ident, addr)
	}

	var base resolver.Resolver = local
	if consulResolver != nil {
		base = resolver.NewChain(local, consulResolver)
	}

	cached := resolver.NewCached(base, 4096, 30*time.Second)
	return resolver.NewWithMetrics(cached, m)
}
