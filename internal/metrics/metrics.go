package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// Provider HTTP metrics
	providerRequestsTotal   *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec

	// Batch metrics
	symbolsProcessed *prometheus.CounterVec
	symbolDuration   prometheus.Histogram
	batchRuns        prometheus.Counter
	batchDuration    prometheus.Histogram
	lastSuccess      prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		providerRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chartgen_provider_requests_total",
				Help: "Total number of market data HTTP requests",
			},
			[]string{"host", "status"},
		),

		providerRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chartgen_provider_request_duration_seconds",
				Help:    "Market data HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"host"},
		),
	}

	reg.MustRegister(r.providerRequestsTotal)
	reg.MustRegister(r.providerRequestDuration)

	r.symbolsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartgen_symbols_processed_total",
			Help: "Total number of symbols processed, by outcome",
		},
		[]string{"status"},
	)
	r.symbolDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chartgen_symbol_duration_seconds",
			Help:    "Time spent on one symbol from fetch to save",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)
	r.batchRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chartgen_batch_runs_total",
			Help: "Total number of batch runs completed",
		},
	)
	r.batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chartgen_batch_duration_seconds",
			Help:    "Batch run duration in seconds",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200},
		},
	)
	r.lastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chartgen_last_success_timestamp_seconds",
			Help: "Unix time of the last saved chart",
		},
	)

	reg.MustRegister(r.symbolsProcessed)
	reg.MustRegister(r.symbolDuration)
	reg.MustRegister(r.batchRuns)
	reg.MustRegister(r.batchDuration)
	reg.MustRegister(r.lastSuccess)

	return r
}

// RecordProviderRequest records metrics for an outbound provider request.
func (r *Registry) RecordProviderRequest(host string, status int, duration float64) {
	r.providerRequestsTotal.WithLabelValues(host, statusToString(status)).Inc()
	r.providerRequestDuration.WithLabelValues(host).Observe(duration)
}

// RecordSymbol records the outcome of one symbol.
func (r *Registry) RecordSymbol(status string, duration time.Duration, at time.Time) {
	r.symbolsProcessed.WithLabelValues(status).Inc()
	r.symbolDuration.Observe(duration.Seconds())
	if status == "saved" {
		r.lastSuccess.Set(float64(at.Unix()))
	}
}

// RecordBatch records a batch run completion.
func (r *Registry) RecordBatch(duration time.Duration) {
	r.batchRuns.Inc()
	r.batchDuration.Observe(duration.Seconds())
}

// WriteTextfile writes the current metrics in the node_exporter textfile format.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}

// Push sends the current metrics to a Pushgateway under the given job name.
func (r *Registry) Push(url, job string) error {
	return push.New(url, job).Gatherer(r.Registry).Push()
}

func statusToString(status int) string {
	switch {
	case status == 0:
		return "error"
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
