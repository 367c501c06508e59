package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the service's collectors on a private registry, so tests
// and multiple apps in one process do not collide on the global one.
type Recorder struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	renderTime   prometheus.Histogram
	cacheLookups *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		// outcome: rendered, noop, rejected or fault
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "md2html_requests_total",
				Help: "Render requests by outcome.",
			},
			[]string{"outcome"},
		),
		renderTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "md2html_render_duration_seconds",
				Help:    "Time spent handling a render request.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
		),
		// result: hit, miss or error
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "md2html_cache_lookups_total",
				Help: "Render cache lookups by result.",
			},
			[]string{"result"},
		),
	}
	r.registry.MustRegister(
		r.requests,
		r.renderTime,
		r.cacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveRequest(outcome string, took time.Duration) {
	r.requests.WithLabelValues(outcome).Inc()
	r.renderTime.Observe(took.Seconds())
}

func (r *Recorder) ObserveCacheLookup(result string) {
	r.cacheLookups.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
