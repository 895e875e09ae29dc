package metrics

import (
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application on its own registry
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	Generations         *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics. Process and Go runtime
// collectors are added when withRuntime is true.
func New(withRuntime bool) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "efemerides_http_requests_total",
			Help: "Requests to the today endpoint by selection outcome",
		}, []string{"outcome"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "efemerides_http_request_duration_seconds",
			Help:    "Latency of HTTP requests by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "efemerides_generation_total",
			Help: "Generation runs by outcome",
		}, []string{"outcome"}),
	}

	registry.MustRegister(m.HTTPRequests, m.HTTPRequestDuration, m.Generations)
	if withRuntime {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return m
}

// ObserveRequest counts a today request by outcome label
func (m *Metrics) ObserveRequest(outcome string) {
	m.HTTPRequests.WithLabelValues(outcome).Inc()
}

// ObserveDuration records the latency of a request to route
func (m *Metrics) ObserveDuration(route string, seconds float64) {
	m.HTTPRequestDuration.WithLabelValues(route).Observe(seconds)
}

// ObserveGeneration counts a generation run by outcome label
func (m *Metrics) ObserveGeneration(outcome string) {
	m.Generations.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteTextfile dumps the registry to path for the node exporter textfile
// collector. One-shot commands use it instead of serving /metrics.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return goerr.Wrap(err, "failed to write metrics textfile", goerr.V("path", path))
	}
	return nil
}
