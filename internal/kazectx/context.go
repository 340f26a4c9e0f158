// Package kazectx implements the dependency-injection container from
// spec.md §4.10, grounded on the teacher's Coordinator/builtInModule
// pattern (coordinator/coordinator.go) and the per-module
// Name()/Close() shape of modules/proxy/controlplane/mod.go: every
// first-class component ("plugin") registers under its Name and is
// supervised until shutdown.
package kazectx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kaze-mesh/kaze/internal/packet"
)

// Plugin is any first-class Kaze component registered into the
// container. Init records whatever the plugin needs from the container
// (the BytesPool, the shutdown guard, other already-registered
// plugins); Run is supervised until the guard fires or it returns on
// its own.
type Plugin interface {
	Name() string
	Init(*Context) error
	Run(ctx context.Context) error
	Close() error
}

// Context is the plugin graph: a registry keyed by name, a shared
// BytesPool, a ShutdownGuard, and the two PipelineCells (spec.md
// §4.10) plugins install their active chain into.
type Context struct {
	log   *zap.SugaredLogger
	Pool  *packet.Pool
	Guard *ShutdownGuard

	// RawSink holds the chain for packets received from peers, which
	// is not rate-limited; RefinedSink holds the chain for packets the
	// host submits (and tracker timeouts), which starts with rate
	// limiting. Both chains go on to dispatch.
	RawSink     *PipelineCell
	RefinedSink *PipelineCell

	mu      sync.Mutex
	byName  map[string]Plugin
	ordered []Plugin
}

// New builds an empty Context. pool is shared by every plugin that
// needs scratch buffers (corral, edge); log is the base logger each
// plugin should derive its own `.With(...)` logger from.
func New(log *zap.SugaredLogger, pool *packet.Pool, guard *ShutdownGuard) *Context {
	return &Context{
		log:         log,
		Pool:        pool,
		Guard:       guard,
		RawSink:     &PipelineCell{},
		RefinedSink: &PipelineCell{},
		byName:      make(map[string]Plugin),
	}
}

// Log returns the base logger, for plugins that only need to derive a
// named child logger and not retain the whole Context.
func (c *Context) Log() *zap.SugaredLogger { return c.log }

// Register runs p.Init(c) and adds it to the graph under p.Name(). Init
// order is the registration order; plugins that depend on another
// plugin's output must be registered after it.
func (c *Context) Register(p Plugin) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := p.Name()
	if _, exists := c.byName[name]; exists {
		return fmt.Errorf("kazectx: plugin %q already registered", name)
	}

	if err := p.Init(c); err != nil {
		return fmt.Errorf("kazectx: init %q: %w", name, err)
	}

	c.byName[name] = p
	c.ordered = append(c.ordered, p)
	return nil
}

// Get returns the first registered plugin (in registration order)
// assignable to T, if any. This is the container's get<T>() lookup from spec.md §4.10.
func Get[T any](c *Context) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	for _, p := range c.ordered {
		if v, ok := any(p).(T); ok {
			return v, true
		}
	}
	return zero, false
}

// ByName returns the plugin registered under name, if any.
func (c *Context) ByName(name string) (Plugin, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.byName[name]
	return p, ok
}

// Run supervises every registered plugin's Run concurrently, until the
// guard's context is cancelled; it then gives stragglers grace to exit
// before giving up on them and returning regardless (spec.md §4.10's
// "wall-clock grace bound aborts stragglers" — Go cannot forcibly kill
// a goroutine, so "abort" here means stop waiting and close the
// plugins anyway).
func (c *Context) Run(ctx context.Context, grace time.Duration) error {
	c.mu.Lock()
	plugins := append([]Plugin(nil), c.ordered...)
	c.mu.Unlock()

	wg, gctx := errgroup.WithContext(c.Guard.Context())
	for _, p := range plugins {
		p := p
		wg.Go(func() error {
			if err := p.Run(gctx); err != nil {
				return fmt.Errorf("kazectx: plugin %q: %w", p.Name(), err)
			}
			return nil
		})
	}

	select {
	case <-ctx.Done():
		c.Guard.Shutdown()
	case <-gctx.Done():
		// A plugin failed or exited on its own; pull the rest down too.
		c.Guard.Shutdown()
	}

	done := make(chan error, 1)
	go func() { done <- wg.Wait() }()

	var runErr error
	select {
	case runErr = <-done:
	case <-time.After(grace):
		c.log.Warnw("shutdown grace period exceeded, closing plugins anyway", "grace", grace)
	}

	c.closeAll()
	return runErr
}

// closeAll closes every plugin in registration order, logging but not
// failing on individual Close errors (mirrors the teacher's
// Coordinator.Close, which best-effort-closes its server).
func (c *Context) closeAll() {
	c.mu.Lock()
	plugins := append([]Plugin(nil), c.ordered...)
	c.mu.Unlock()

	for _, p := range plugins {
		if err := p.Close(); err != nil {
			c.log.Warnw("plugin close failed", "plugin", p.Name(), "error", err)
		}
	}
}
