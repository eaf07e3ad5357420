package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric definitions
// Names follow https://prometheus.io/docs/practices/naming/
const namespace = "clawd"

// Metrics holds the gateway collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	completionDuration *prometheus.HistogramVec
	completionErrors   *prometheus.CounterVec
	messagesPersisted  *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		completionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Wall-clock duration of completion calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"model"}),
		completionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_errors_total",
			Help:      "Completion calls that returned an error.",
		}, []string{"model"}),
		messagesPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_persisted_total",
			Help:      "Messages written to the transcript store.",
		}, []string{"role"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status code.",
		}, []string{"method", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.completionDuration,
		m.completionErrors,
		m.messagesPersisted,
		m.httpRequests,
	)
	return m
}

// AddBuildInfo registers a constant gauge labeled with build information.
func (m *Metrics) AddBuildInfo(version, goVersion string) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "A metric with a constant '1' value labeled by version and goversion.",
			ConstLabels: prometheus.Labels{
				"version":   version,
				"goversion": goVersion,
			},
		},
		func() float64 { return 1 },
	))
}

func (m *Metrics) ObserveCompletion(model string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.completionErrors.WithLabelValues(model).Inc()
		return
	}
	m.completionDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

func (m *Metrics) MessagePersisted(role string) {
	if m == nil {
		return
	}
	m.messagesPersisted.WithLabelValues(role).Inc()
}

func (m *Metrics) RequestServed(method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
