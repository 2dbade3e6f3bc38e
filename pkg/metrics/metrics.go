package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Queue metrics
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scanengine_queue_depth",
			Help: "Number of scan requests currently queued",
		},
	)

	ActiveHandlers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scanengine_active_handlers",
			Help: "Number of handler processes the supervisor currently considers alive",
		},
	)

	SupervisorTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scanengine_supervisor_tick_duration_seconds",
			Help:    "Duration of one supervisor tick over the queue",
			Buckets: prometheus.DefBuckets,
		},
	)

	ForksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanengine_forks_total",
			Help: "Total handler fork attempts by outcome",
		},
		[]string{"outcome"}, // "started", "failed"
	)

	// Handler metrics
	HandlerResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanengine_handler_results_total",
			Help: "Total handler terminations by return code",
		},
		[]string{"code"},
	)

	ScannerRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanengine_scanner_retries_total",
			Help: "Total scanner-connection retry attempts, by outcome",
		},
		[]string{"outcome"}, // "retried", "exhausted"
	)

	SemaphoreWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scanengine_semaphore_wait_duration_seconds",
			Help:    "Time spent waiting to acquire the concurrent-update semaphore gate",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Filter and asset metrics
	FilterParseDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scanengine_filter_parse_duration_seconds",
			Help:    "Duration of parsing a filter-term string into keywords",
			Buckets: prometheus.DefBuckets,
		},
	)

	AssetMergeDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanengine_asset_merge_decisions_total",
			Help: "Total asset-key merge decisions by outcome",
		},
		[]string{"outcome"}, // "new_key", "merged"
	)
)

func init() {
	// Register queue and supervisor metrics
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(ActiveHandlers)
	prometheus.MustRegister(SupervisorTickDuration)
	prometheus.MustRegister(ForksTotal)

	// Register handler metrics
	prometheus.MustRegister(HandlerResultsTotal)
	prometheus.MustRegister(ScannerRetriesTotal)
	prometheus.MustRegister(SemaphoreWaitDuration)

	// Register filter and asset metrics
	prometheus.MustRegister(FilterParseDuration)
	prometheus.MustRegister(AssetMergeDecisionsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
