// Package metrics exposes grid dispatch telemetry as Prometheus metrics.
// A Metrics value implements bus.Recorder and is also the row gauge the
// grid updates after structural changes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mattjoyce/gridlink/internal/bus"
	"github.com/mattjoyce/gridlink/internal/command"
)

const namespace = "gridlink"

// Metrics holds all Prometheus metrics of one grid process.
type Metrics struct {
	Registry *prometheus.Registry

	Commands          *prometheus.CounterVec
	Verdicts          *prometheus.CounterVec
	InterceptorErrors *prometheus.CounterVec
	RowsLiveGauge     prometheus.Gauge

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

var _ bus.Recorder = (*Metrics)(nil)

// New registers every metric on a fresh registry, so several grids in one
// process (or one test binary) never collide.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Commands: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Dispatched commands by kind, name and outcome",
			},
			[]string{"kind", "name", "outcome"},
		),
		Verdicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plugin_verdicts_total",
				Help:      "Non-abstaining interceptor verdicts by plugin",
			},
			[]string{"kind", "plugin", "verdict"},
		),
		InterceptorErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "interceptor_errors_total",
				Help:      "Interceptor errors and panics ignored by the buses",
			},
			[]string{"kind", "plugin"},
		),
		RowsLiveGauge: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rows_live",
				Help:      "Rows currently registered in the grid",
			},
		),
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "route"},
		),
	}
}

func (m *Metrics) Outcome(kind command.Kind, name command.Name, outcome command.Outcome) {
	m.Commands.WithLabelValues(string(kind), string(name), string(outcome)).Inc()
}

func (m *Metrics) Verdict(kind command.Kind, plugin string, verdict command.Verdict) {
	m.Verdicts.WithLabelValues(string(kind), plugin, verdict.String()).Inc()
}

func (m *Metrics) InterceptorError(kind command.Kind, plugin string) {
	m.InterceptorErrors.WithLabelValues(string(kind), plugin).Inc()
}

// RowsLive sets the live row gauge.
func (m *Metrics) RowsLive(n int) {
	m.RowsLiveGauge.Set(float64(n))
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
