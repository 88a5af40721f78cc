package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchTotal  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	loopTotal   *prometheus.CounterVec
	tracked     prometheus.Gauge
	latency     *prometheus.HistogramVec
}

// New registers the recorder's collectors with the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers with reg, so tests can use an isolated registry.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickerpulse_fetch_total",
				Help: "Upstream fetches by source and result",
			},
			[]string{"source", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickerpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"component"},
		),
		loopTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickerpulse_loop_iterations_total",
				Help: "Scheduling loop iterations by loop and result",
			},
			[]string{"loop", "result"},
		),
		tracked: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "tickerpulse_tracked_tickers",
				Help: "Number of instruments in the universe",
			},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tickerpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetch records one upstream fetch outcome.
func (r *Recorder) RecordFetch(source, result string) {
	r.fetchTotal.WithLabelValues(source, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(component string) {
	r.errorsTotal.WithLabelValues(component).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordLoop(loop, result string) {
	r.loopTotal.WithLabelValues(loop, result).Inc()
}

func (r *Recorder) SetTracked(n int) {
	r.tracked.Set(float64(n))
}
