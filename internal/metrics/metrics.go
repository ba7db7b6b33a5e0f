// Package metrics exports Prometheus metrics fed from the event bus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	eventbus "github.com/hanpama/classgraph/internal/eventbus"
	events "github.com/hanpama/classgraph/internal/events"
	"github.com/hanpama/classgraph/internal/executor"
)

const namespace = "classgraph"

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	operations      *prometheus.CounterVec
	operationErrors *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	builds          *prometheus.CounterVec
	buildDuration   prometheus.Histogram
	schemaTypes     *prometheus.GaugeVec
	pluginLoads     *prometheus.CounterVec
	pluginClasses   prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graphql",
			Name:      "operations_total",
			Help:      "GraphQL operations by type and outcome",
		}, []string{"operation_type", "outcome"}),
		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graphql",
			Name:      "errors_total",
			Help:      "GraphQL errors by errorType",
		}, []string{"error_type"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "types",
			Name:      "resolutions_total",
			Help:      "Runtime type resolutions by outcome (exact, fallback, failed)",
		}, []string{"expected", "outcome"}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schema",
			Name:      "builds_total",
			Help:      "Schema compilations by result",
		}, []string{"result"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "schema",
			Name:      "build_duration_seconds",
			Help:      "Schema compilation latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		schemaTypes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "schema",
			Name:      "types",
			Help:      "Types in the served schema by kind",
		}, []string{"kind"}),
		pluginLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "plugins",
			Name:      "loads_total",
			Help:      "Plugin directory loads by result",
		}, []string{"result"}),
		pluginClasses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "plugins",
			Name:      "classes",
			Help:      "Classes contributed by the last successful plugin load",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.operations, m.operationErrors,
		m.resolutions,
		m.builds, m.buildDuration, m.schemaTypes,
		m.pluginLoads, m.pluginClasses,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Subscribe attaches the collectors to the global event bus.
func (m *Metrics) Subscribe() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) {
			method := e.Request.Method
			m.httpRequests.WithLabelValues(method, strconv.Itoa(e.Status)).Inc()
			m.httpDuration.WithLabelValues(method).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.GraphQLFinish) {
			outcome := "ok"
			if len(e.Errors) > 0 {
				outcome = "error"
			}
			m.operations.WithLabelValues(opType(e.OperationType), outcome).Inc()
			for _, err := range e.Errors {
				m.operationErrors.WithLabelValues(errorType(err)).Inc()
			}
		}),
		eventbus.Subscribe(func(_ context.Context, e events.TypeResolved) {
			outcome := "exact"
			switch {
			case e.Err != nil:
				outcome = "failed"
			case e.Fallback:
				outcome = "fallback"
			}
			m.resolutions.WithLabelValues(e.Expected, outcome).Inc()
		}),
		eventbus.Subscribe(func(_ context.Context, e events.SchemaBuildFinish) {
			m.buildDuration.Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.builds.WithLabelValues("error").Inc()
				return
			}
			m.builds.WithLabelValues("ok").Inc()
			m.schemaTypes.WithLabelValues("object").Set(float64(e.Types - e.Interfaces - e.Fallbacks))
			m.schemaTypes.WithLabelValues("interface").Set(float64(e.Interfaces))
			m.schemaTypes.WithLabelValues("fallback").Set(float64(e.Fallbacks))
		}),
		eventbus.Subscribe(func(_ context.Context, e events.PluginsLoaded) {
			if e.Err != nil {
				m.pluginLoads.WithLabelValues("error").Inc()
				return
			}
			m.pluginLoads.WithLabelValues("ok").Inc()
			m.pluginClasses.Set(float64(e.Classes))
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func opType(t string) string {
	if t == "" {
		return "unknown"
	}
	return t
}

func errorType(err error) string {
	var ge executor.GraphQLError
	if errors.As(err, &ge) && ge.ErrorType != "" {
		return ge.ErrorType
	}
	return "unknown"
}
