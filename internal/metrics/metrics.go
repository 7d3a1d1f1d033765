package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects HTTP and business metrics for the service
type Metrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	requestsInFlight  prometheus.Gauge
	CheckoutsTotal    *prometheus.CounterVec
	QuotaDenials      *prometheus.CounterVec
	StockShortfalls   prometheus.Counter
	RefundFailures    prometheus.Counter
	ExpiredReservations prometheus.Counter
}

// Config holds metrics configuration
type Config struct {
	Namespace string
	Subsystem string
}

// New creates and registers the service metrics
func New(cfg Config) *Metrics {
	return &Metrics{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		requestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),
		CheckoutsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "checkouts_total",
				Help:      "Total number of checkout attempts",
			},
			[]string{"result"}, // success, quota_exceeded, insufficient_stock, conflict, error
		),
		QuotaDenials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "quota_denials_total",
				Help:      "Total number of creations denied by plan quota",
			},
			[]string{"resource"},
		),
		StockShortfalls: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stock_shortfalls_total",
				Help:      "Total number of reservations rejected for insufficient stock",
			},
		),
		RefundFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "refund_failures_total",
				Help:      "Total number of provider refund failures",
			},
		),
		ExpiredReservations: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "expired_reservations_total",
				Help:      "Total number of stale pending orders reclaimed by the sweep",
			},
		),
	}
}

// Middleware records request counts, durations and in-flight gauge
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.requestsInFlight.Inc()

		c.Next()

		m.requestsInFlight.Dec()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
