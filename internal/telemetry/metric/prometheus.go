package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/snapmapper-go/internal/infra/buildinfo"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "snapmapper"

// Registry holds all application metrics.
//
// A nil *Registry is valid and records nothing, so components can take
// one unconditionally.
type Registry struct {
	registry  *prometheus.Registry
	namespace string

	// Index metrics
	IndexOps     *prometheus.CounterVec
	KeysEnqueued *prometheus.CounterVec
	Fatal        *prometheus.CounterVec

	// Trim metrics
	TrimScans        *prometheus.CounterVec
	TrimKeysExamined prometheus.Counter
	TrimObjects      prometheus.Counter

	// Commit metrics
	Commits        *prometheus.CounterVec
	CommitDuration prometheus.Histogram
	CommitOps      prometheus.Histogram

	// BuildInfo is always 1, labeled with the binary's build information.
	BuildInfo *prometheus.GaugeVec
}

var (
	globalRegistry *Registry
	globalOnce     sync.Once
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry(DefaultNamespace)
	})
	return globalRegistry
}

// Handler returns an HTTP handler for the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// NewRegistry creates a registry with all metrics registered under
// namespace, plus the Go runtime and process collectors.
func NewRegistry(namespace string) *Registry {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry:  reg,
		namespace: namespace,

		IndexOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_ops_total",
			Help:      "Index maintainer operations by operation and result",
		}, []string{"op", "result"}),

		KeysEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_keys_enqueued_total",
			Help:      "Index keys enqueued into transactions by family and kind",
		}, []string{"family", "kind"}),

		Fatal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fatal_total",
			Help:      "Fatal index inconsistencies by error code",
		}, []string{"code"}),

		TrimScans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trim_scans_total",
			Help:      "Trim scans by result",
		}, []string{"result"}),

		TrimKeysExamined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trim_keys_examined_total",
			Help:      "Keys read by trim scans",
		}),

		TrimObjects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trim_objects_returned_total",
			Help:      "Objects returned by trim scans",
		}),

		Commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Transaction commits by result",
		}, []string{"result"}),

		CommitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Transaction commit latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),

		CommitOps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_ops",
			Help:      "Operations per committed transaction",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),

		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information, always 1",
		}, []string{"version", "commit", "go_version"}),
	}

	reg.MustRegister(
		r.IndexOps,
		r.KeysEnqueued,
		r.Fatal,
		r.TrimScans,
		r.TrimKeysExamined,
		r.TrimObjects,
		r.Commits,
		r.CommitDuration,
		r.CommitOps,
		r.BuildInfo,
	)

	info := buildinfo.Get()
	r.BuildInfo.WithLabelValues(info.Version, info.Commit, info.GoVersion).Set(1)

	return r
}

// Namespace returns the metric name prefix.
func (r *Registry) Namespace() string {
	if r == nil {
		return DefaultNamespace
	}
	return r.namespace
}

// Registerer exposes the underlying registry to components that register
// their own collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordIndexOp counts one index maintainer operation.
func (r *Registry) RecordIndexOp(op, result string) {
	if r == nil {
		return
	}
	r.IndexOps.WithLabelValues(op, result).Inc()
}

// AddKeysEnqueued counts keys written into a transaction.
func (r *Registry) AddKeysEnqueued(family, kind string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.KeysEnqueued.WithLabelValues(family, kind).Add(float64(n))
}

// RecordFatal counts one fatal inconsistency.
func (r *Registry) RecordFatal(code string) {
	if r == nil {
		return
	}
	r.Fatal.WithLabelValues(code).Inc()
}

// RecordTrimScan counts one trim scan and the work it did.
func (r *Registry) RecordTrimScan(result string, examined, returned int) {
	if r == nil {
		return
	}
	r.TrimScans.WithLabelValues(result).Inc()
	r.TrimKeysExamined.Add(float64(examined))
	r.TrimObjects.Add(float64(returned))
}

// ObserveCommit records one transaction commit.
func (r *Registry) ObserveCommit(result string, ops int, seconds float64) {
	if r == nil {
		return
	}
	r.Commits.WithLabelValues(result).Inc()
	r.CommitDuration.Observe(seconds)
	r.CommitOps.Observe(float64(ops))
}
