package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server serves the handler it is given (a promhttp handler for a
// registry) on every path, /metrics included, shut down cooperatively
// alongside everything else in the plugin graph.
type Server struct {
	addr string
	srv  *http.Server
	log  *zap.SugaredLogger
}

// NewServer builds a metrics HTTP server bound to addr, serving handler
// (typically promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).
func NewServer(addr string, handler http.Handler, log *zap.SugaredLogger) *Server {
	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: handler},
		log:  log,
	}
}

// Run listens and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics: listen %q: %w", s.addr, err)
	}
	s.log.Infow("exposing metrics", "addr", ln.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		_ = s.srv.Close()
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics: serve: %w", err)
	}
}

// Handler builds the promhttp handler for the given gatherer, so
// callers serve exactly the registry their Metrics was constructed
// with rather than the package-global default.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
