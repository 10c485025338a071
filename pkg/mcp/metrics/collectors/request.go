package collectors

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Azure/toolguard/pkg/mcp/validation/validators"
)

// StatusOK is the request status for a JSON-RPC call that returned a result
const StatusOK = "ok"

// RequestStats holds the in-memory counters for one method or route
type RequestStats struct {
	Count          int64         `json:"count"`
	Errors         int64         `json:"errors"`
	TotalDuration  time.Duration `json:"total_duration"`
	AverageLatency float64       `json:"average_latency_seconds"`
}

// RequestMetricsCollector records MCP request counts, latency and size
type RequestMetricsCollector struct {
	mu    sync.RWMutex
	stats map[string]*RequestStats

	requests         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	inFlight         prometheus.Gauge
	size             *prometheus.HistogramVec
	validationErrors *prometheus.CounterVec
}

// NewRequestMetricsCollector creates the collector
func NewRequestMetricsCollector(opts Options) *RequestMetricsCollector {
	opts = opts.withDefaults()

	return &RequestMetricsCollector{
		stats: make(map[string]*RequestStats),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "requests_total",
			Help:        "Total number of requests by method and status",
			ConstLabels: opts.ConstLabels,
		}, []string{"method", "status"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "request_duration_seconds",
			Help:        "Duration of requests in seconds",
			Buckets:     opts.Buckets,
			ConstLabels: opts.ConstLabels,
		}, []string{"method"}),

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "requests_in_flight",
			Help:        "Number of requests currently being served",
			ConstLabels: opts.ConstLabels,
		}),

		size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "request_size_bytes",
			Help:        "Size of request payloads in bytes",
			Buckets:     prometheus.ExponentialBuckets(64, 4, 8),
			ConstLabels: opts.ConstLabels,
		}, []string{"method"}),

		validationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "request_validation_errors_total",
			Help:        "Total number of request validation errors by code",
			ConstLabels: opts.ConstLabels,
		}, []string{"code"}),
	}
}

// Describe implements prometheus.Collector
func (c *RequestMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.requests.Describe(ch)
	c.duration.Describe(ch)
	c.inFlight.Describe(ch)
	c.size.Describe(ch)
	c.validationErrors.Describe(ch)
}

// Collect implements prometheus.Collector
func (c *RequestMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	c.requests.Collect(ch)
	c.duration.Collect(ch)
	c.inFlight.Collect(ch)
	c.size.Collect(ch)
	c.validationErrors.Collect(ch)
}

// RecordRequest records one finished request. A negative size is not observed.
func (c *RequestMetricsCollector) RecordRequest(method, status string, duration time.Duration, size int) {
	c.requests.WithLabelValues(method, status).Inc()
	c.duration.WithLabelValues(method).Observe(duration.Seconds())
	if size >= 0 {
		c.size.WithLabelValues(method).Observe(float64(size))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.stats[method]
	if !ok {
		s = &RequestStats{}
		c.stats[method] = s
	}
	s.Count++
	s.TotalDuration += duration
	if isErrorStatus(status) {
		s.Errors++
	}
}

// RecordValidation counts every error code in result
func (c *RequestMetricsCollector) RecordValidation(result *validators.ValidationResult) {
	if result == nil {
		return
	}
	for _, e := range result.Errors {
		c.validationErrors.WithLabelValues(string(e.Code)).Inc()
	}
}

// Begin marks a request in flight and returns the func that ends it
func (c *RequestMetricsCollector) Begin() func() {
	c.inFlight.Inc()
	var once sync.Once
	return func() {
		once.Do(c.inFlight.Dec)
	}
}

// Stats returns per-method counters with the average latency filled in
func (c *RequestMetricsCollector) Stats() map[string]RequestStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]RequestStats, len(c.stats))
	for method, s := range c.stats {
		cp := *s
		if cp.Count > 0 {
			cp.AverageLatency = (cp.TotalDuration / time.Duration(cp.Count)).Seconds()
		}
		out[method] = cp
	}
	return out
}

// Instrument records every request passing through next under its chi
// route pattern, so path parameters do not explode label cardinality.
func (c *RequestMetricsCollector) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := c.Begin()
		defer done()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		size := -1
		if r.ContentLength >= 0 {
			size = int(r.ContentLength)
		}
		c.RecordRequest(r.Method+" "+routePattern(r), statusClass(status), time.Since(start), size)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

func isErrorStatus(status string) bool {
	switch status {
	case StatusOK, "1xx", "2xx", "3xx":
		return false
	}
	return true
}
