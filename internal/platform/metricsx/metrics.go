package metricsx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	scoreComputations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "priority_score_computations_total",
			Help: "Priority score computations by outcome.",
		},
		[]string{"outcome"},
	)
	scoreComputeLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "priority_score_compute_seconds",
			Help:    "Priority score computation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	rebalancePasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_rebalance_passes_total",
			Help: "Queue rebalance passes by outcome.",
		},
		[]string{"outcome"},
	)
	rebalanceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queue_rebalance_duration_seconds",
			Help:    "Queue rebalance pass duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	itemsReordered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_items_reordered_total",
			Help: "Total queue items whose sequence changed during rebalancing.",
		},
	)
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fulfillment_queue_depth",
			Help: "Queued item count observed at the last rebalance pass.",
		},
		[]string{"queue"},
	)
)

func Register() {
	prometheus.MustRegister(httpRequests, httpLatency, scoreComputations, scoreComputeLatency, rebalancePasses, rebalanceDuration, itemsReordered, queueDepth)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		status := strconv.Itoa(lrw.statusCode)
		httpRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpLatency.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

func IncScoreComputation(outcome string) {
	scoreComputations.WithLabelValues(outcome).Inc()
}

func ObserveScoreComputeLatency(d time.Duration) {
	scoreComputeLatency.Observe(d.Seconds())
}

func IncRebalancePass(outcome string) {
	rebalancePasses.WithLabelValues(outcome).Inc()
}

func ObserveRebalanceDuration(d time.Duration) {
	rebalanceDuration.Observe(d.Seconds())
}

func AddItemsReordered(n int) {
	itemsReordered.Add(float64(n))
}

func SetQueueDepth(queue string, depth int) {
	queueDepth.WithLabelValues(queue).Set(float64(depth))
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
