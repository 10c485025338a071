package collectors

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ToolMetrics holds the in-memory counters for a single tool
type ToolMetrics struct {
	TotalCalls      int64         `json:"total_calls"`
	SuccessfulCalls int64         `json:"successful_calls"`
	FailedCalls     int64         `json:"failed_calls"`
	RetryAttempts   int64         `json:"retry_attempts"`
	TotalDuration   time.Duration `json:"total_duration"`
	LastError       string        `json:"last_error,omitempty"`
	LastErrorTime   time.Time     `json:"last_error_time,omitempty"`
	LastCallTime    time.Time     `json:"last_call_time"`
}

// AverageDuration returns the mean call duration
func (m ToolMetrics) AverageDuration() time.Duration {
	if m.TotalCalls == 0 {
		return 0
	}
	return m.TotalDuration / time.Duration(m.TotalCalls)
}

// MetricsSummary provides a high-level summary
type MetricsSummary struct {
	TotalCalls         int64                  `json:"total_calls"`
	TotalRetries       int64                  `json:"total_retries"`
	OverallSuccessRate float64                `json:"overall_success_rate"`
	OverallRetryRate   float64                `json:"overall_retry_rate"`
	ToolSummaries      map[string]ToolSummary `json:"tools"`
}

// ToolSummary provides summary for a specific tool
type ToolSummary struct {
	TotalCalls      int64     `json:"total_calls"`
	SuccessRate     float64   `json:"success_rate"`
	FailureRate     float64   `json:"failure_rate"`
	RetryRate       float64   `json:"retry_rate"`
	AverageDuration float64   `json:"average_duration_seconds"`
	LastError       string    `json:"last_error,omitempty"`
	LastCallTime    time.Time `json:"last_call_time"`
}

// ToolMetricsCollector records tool call outcomes, durations and retries
type ToolMetricsCollector struct {
	mu      sync.RWMutex
	metrics map[string]*ToolMetrics

	calls              *prometheus.CounterVec
	duration           *prometheus.HistogramVec
	retries            *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	inFlight           *prometheus.GaugeVec
	lastCall           *prometheus.GaugeVec

	otelCalls    metric.Int64Counter
	otelDuration metric.Float64Histogram

	logger zerolog.Logger
}

// NewToolMetricsCollector creates the collector. It fails only when the
// OpenTelemetry mirror instruments cannot be created.
func NewToolMetricsCollector(opts Options, logger zerolog.Logger) (*ToolMetricsCollector, error) {
	opts = opts.withDefaults()

	c := &ToolMetricsCollector{
		metrics: make(map[string]*ToolMetrics),
		logger:  logger.With().Str("component", "tool_metrics").Logger(),

		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "tool_calls_total",
			Help:        "Total number of tool calls by outcome",
			ConstLabels: opts.ConstLabels,
		}, []string{"tool", "status"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "tool_call_duration_seconds",
			Help:        "Duration of tool calls in seconds",
			Buckets:     opts.Buckets,
			ConstLabels: opts.ConstLabels,
		}, []string{"tool"}),

		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "tool_retries_total",
			Help:        "Total number of retried tool calls",
			ConstLabels: opts.ConstLabels,
		}, []string{"tool"}),

		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "tool_validation_failures_total",
			Help:        "Total number of tool calls rejected by parameter validation",
			ConstLabels: opts.ConstLabels,
		}, []string{"tool", "code"}),

		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "tool_calls_in_flight",
			Help:        "Number of tool calls currently executing",
			ConstLabels: opts.ConstLabels,
		}, []string{"tool"}),

		lastCall: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "tool_last_call_timestamp_seconds",
			Help:        "Unix timestamp of the last call per tool",
			ConstLabels: opts.ConstLabels,
		}, []string{"tool"}),
	}

	if opts.Meter != nil {
		var err error
		c.otelCalls, err = opts.Meter.Int64Counter("tool.calls",
			metric.WithDescription("Number of tool calls"))
		if err != nil {
			return nil, err
		}
		c.otelDuration, err = opts.Meter.Float64Histogram("tool.duration",
			metric.WithDescription("Duration of tool calls"),
			metric.WithUnit("s"))
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Describe implements prometheus.Collector
func (c *ToolMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.calls.Describe(ch)
	c.duration.Describe(ch)
	c.retries.Describe(ch)
	c.validationFailures.Describe(ch)
	c.inFlight.Describe(ch)
	c.lastCall.Describe(ch)
}

// Collect implements prometheus.Collector
func (c *ToolMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	c.calls.Collect(ch)
	c.duration.Collect(ch)
	c.retries.Collect(ch)
	c.validationFailures.Collect(ch)
	c.inFlight.Collect(ch)
	c.lastCall.Collect(ch)
}

// RecordCall records one finished call. Attempts above 1 count as retries.
func (c *ToolMetricsCollector) RecordCall(tool string, duration time.Duration, err error, attempt int) {
	c.RecordCallContext(context.Background(), tool, duration, err, attempt)
}

// RecordCallContext is RecordCall with a context for the OpenTelemetry mirror
func (c *ToolMetricsCollector) RecordCallContext(ctx context.Context, tool string, duration time.Duration, err error, attempt int) {
	now := time.Now()
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}

	c.calls.WithLabelValues(tool, status).Inc()
	c.duration.WithLabelValues(tool).Observe(duration.Seconds())
	c.lastCall.WithLabelValues(tool).Set(float64(now.Unix()))
	if attempt > 1 {
		c.retries.WithLabelValues(tool).Inc()
	}

	c.mu.Lock()
	m := c.getOrCreateMetrics(tool)
	m.TotalCalls++
	m.TotalDuration += duration
	m.LastCallTime = now
	if err != nil {
		m.FailedCalls++
		m.LastError = err.Error()
		m.LastErrorTime = now
	} else {
		m.SuccessfulCalls++
	}
	if attempt > 1 {
		m.RetryAttempts++
	}
	c.mu.Unlock()

	if c.otelCalls != nil {
		attrs := metric.WithAttributes(
			attribute.String("tool.name", tool),
			attribute.String("status", status),
		)
		c.otelCalls.Add(ctx, 1, attrs)
		c.otelDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("tool.name", tool)))
	}

	if err != nil {
		c.logger.Debug().Err(err).Str("tool", tool).Int("attempt", attempt).Msg("Tool call failed")
	}
}

// RecordValidationFailure counts a call rejected before reaching its handler
func (c *ToolMetricsCollector) RecordValidationFailure(tool, code string) {
	c.validationFailures.WithLabelValues(tool, code).Inc()
}

// Start marks a call in flight. The returned func records it as a first attempt.
func (c *ToolMetricsCollector) Start(tool string) func(err error) {
	return c.StartAttempt(context.Background(), tool, 1)
}

// StartAttempt marks a call in flight and returns the func that finishes it
func (c *ToolMetricsCollector) StartAttempt(ctx context.Context, tool string, attempt int) func(err error) {
	start := time.Now()
	gauge := c.inFlight.WithLabelValues(tool)
	gauge.Inc()

	var once sync.Once
	return func(err error) {
		once.Do(func() {
			gauge.Dec()
			c.RecordCallContext(ctx, tool, time.Since(start), err, attempt)
		})
	}
}

// Stats returns a copy of the metrics for tool, or nil
func (c *ToolMetricsCollector) Stats(tool string) *ToolMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if m, exists := c.metrics[tool]; exists {
		cp := *m
		return &cp
	}
	return nil
}

// AllStats returns copies of the metrics for every tool
func (c *ToolMetricsCollector) AllStats() map[string]*ToolMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]*ToolMetrics, len(c.metrics))
	for name, m := range c.metrics {
		cp := *m
		result[name] = &cp
	}
	return result
}

// Summary returns success, failure and retry rates as percentages
func (c *ToolMetricsCollector) Summary() MetricsSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := MetricsSummary{
		ToolSummaries: make(map[string]ToolSummary, len(c.metrics)),
	}

	var totalSuccess int64
	for name, m := range c.metrics {
		var successRate, retryRate float64
		if m.TotalCalls > 0 {
			successRate = float64(m.SuccessfulCalls) / float64(m.TotalCalls) * 100
			retryRate = float64(m.RetryAttempts) / float64(m.TotalCalls) * 100
		}

		summary.ToolSummaries[name] = ToolSummary{
			TotalCalls:      m.TotalCalls,
			SuccessRate:     successRate,
			FailureRate:     100 - successRate,
			RetryRate:       retryRate,
			AverageDuration: m.AverageDuration().Seconds(),
			LastError:       m.LastError,
			LastCallTime:    m.LastCallTime,
		}
		summary.TotalCalls += m.TotalCalls
		summary.TotalRetries += m.RetryAttempts
		totalSuccess += m.SuccessfulCalls
	}

	if summary.TotalCalls > 0 {
		summary.OverallSuccessRate = float64(totalSuccess) / float64(summary.TotalCalls) * 100
		summary.OverallRetryRate = float64(summary.TotalRetries) / float64(summary.TotalCalls) * 100
	}
	return summary
}

// Reset clears the in-memory stats and every Prometheus series
func (c *ToolMetricsCollector) Reset() {
	c.mu.Lock()
	c.metrics = make(map[string]*ToolMetrics)
	c.mu.Unlock()

	c.calls.Reset()
	c.duration.Reset()
	c.retries.Reset()
	c.validationFailures.Reset()
	c.inFlight.Reset()
	c.lastCall.Reset()
}

func (c *ToolMetricsCollector) getOrCreateMetrics(tool string) *ToolMetrics {
	if m, exists := c.metrics[tool]; exists {
		return m
	}
	m := &ToolMetrics{}
	c.metrics[tool] = m
	return m
}
