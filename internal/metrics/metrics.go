// Package metrics declares the prometheus counters/gauges named in
// spec.md §6, wired through wherever the core components perform the
// state transition each metric names, grounded the way the teacher's
// pdump/balancer modules instrument themselves with
// github.com/prometheus/client_golang.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every metric the core components touch. A single
// instance is constructed at startup and threaded through the plugin
// graph (internal/kazectx), mirroring how the teacher threads its
// *zap.SugaredLogger.
type Metrics struct {
	Connections prometheus.Gauge

	ReadClosed         prometheus.Counter
	ReadIdleTimeout    prometheus.Counter
	ReadPendingTimeout prometheus.Counter

	SubmissionPackets  prometheus.Counter
	SubmissionBytes    prometheus.Counter
	SubmissionBlocking prometheus.Counter
	SubmissionErrors   prometheus.Counter

	WritePackets      prometheus.Counter
	SendTimeoutErrors prometheus.Counter
	DispatchErrors    *prometheus.CounterVec
	RateLimitTotal    prometheus.Counter
	ReuniteErrorTotal prometheus.Counter

	ResolverLookups prometheus.Counter
	ResolverMisses  prometheus.Counter
}

// New registers every metric against reg (typically
// prometheus.NewRegistry(), not the global DefaultRegisterer, so tests
// can create independent instances).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kaze_connections_total",
			Help: "Current number of active corral connections.",
		}),
		ReadClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kaze_read_closed_total",
			Help: "Connections whose read half observed a clean close.",
		}),
		ReadIdleTimeout: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kaze_read_idle_timeout_total",
			Help: "Connections dropped for sitting idle past their timeout.",
		}),
		ReadPendingTimeout: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kaze_read_pending_timeout_total",
			Help: "Connections dropped for never completing their first frame in time.",
		}),
		SubmissionPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kaze_submission_packets_total",
			Help: "Packets submitted from the host into the pipeline.",
		}),
		SubmissionBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kaze_submission_bytes_total",
			Help: "Bytes submitted from the host into the pipeline.",
		}),
		SubmissionBlocking: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kaze_submission_blocking_total",
			Help: "Submissions that had to block for outbound ring space.",
		}),
		SubmissionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kaze_submission_errors_total",
			Help: "Submissions rejected outright (decode failure, closed channel).",
		}),
		WritePackets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kaze_write_packets_total",
			Help: "Packets written out to a peer TCP connection.",
		}),
		SendTimeoutErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kaze_send_timeout_errors_total",
			Help: "Vectored sends that exceeded their deadline.",
		}),
		DispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kaze_dispatch_errors_total",
			Help: "Pipeline dispatch failures, labeled by packet body type.",
		}, []string{"bodyType"}),
		RateLimitTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kaze_rate_limit_total",
			Help: "Packets that took a token from at least one enabled rate-limit bucket.",
		}),
		ReuniteErrorTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kaze_reunite_error_total",
			Help: "Failures reuniting a connection's read/write halves on shutdown.",
		}),
		ResolverLookups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kaze_resolver_lookups_total",
			Help: "Resolver lookups performed.",
		}),
		ResolverMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kaze_resolver_misses_total",
			Help: "Resolver lookups that found no node.",
		}),
	}

	reg.MustRegister(
		m.Connections, m.ReadClosed, m.ReadIdleTimeout, m.ReadPendingTimeout,
		m.SubmissionPackets, m.SubmissionBytes, m.SubmissionBlocking, m.SubmissionErrors,
		m.WritePackets, m.SendTimeoutErrors, m.DispatchErrors, m.RateLimitTotal,
		m.ReuniteErrorTotal, m.ResolverLookups, m.ResolverMisses,
	)
	return m
}
