package collectors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newToolCollector(t *testing.T, opts Options) *ToolMetricsCollector {
	t.Helper()
	c, err := NewToolMetricsCollector(opts, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestToolMetricsCollector_RecordCall(t *testing.T) {
	c := newToolCollector(t, Options{})

	c.RecordCall("build_image", 200*time.Millisecond, nil, 1)
	c.RecordCall("build_image", 100*time.Millisecond, errors.New("daemon unreachable"), 2)
	c.RecordCall("scan_image", 50*time.Millisecond, nil, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.calls.WithLabelValues("build_image", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.calls.WithLabelValues("build_image", StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.retries.WithLabelValues("build_image")))
	assert.Equal(t, 2, testutil.CollectAndCount(c, "mcp_tool_call_duration_seconds"))

	stats := c.Stats("build_image")
	require.NotNil(t, stats)
	assert.EqualValues(t, 2, stats.TotalCalls)
	assert.EqualValues(t, 1, stats.SuccessfulCalls)
	assert.EqualValues(t, 1, stats.FailedCalls)
	assert.EqualValues(t, 1, stats.RetryAttempts)
	assert.Equal(t, "daemon unreachable", stats.LastError)
	assert.Equal(t, 150*time.Millisecond, stats.AverageDuration())

	assert.Nil(t, c.Stats("unknown"))
	assert.Len(t, c.AllStats(), 2)
}

func TestToolMetricsCollector_StatsAreCopies(t *testing.T) {
	c := newToolCollector(t, Options{})
	c.RecordCall("a", time.Millisecond, nil, 1)

	c.Stats("a").TotalCalls = 99
	c.AllStats()["a"].TotalCalls = 99

	assert.EqualValues(t, 1, c.Stats("a").TotalCalls)
}

func TestToolMetricsCollector_Summary(t *testing.T) {
	c := newToolCollector(t, Options{})
	c.RecordCall("a", time.Second, nil, 1)
	c.RecordCall("a", time.Second, nil, 2)
	c.RecordCall("a", time.Second, errors.New("x"), 3)
	c.RecordCall("b", time.Second, nil, 1)

	summary := c.Summary()
	assert.EqualValues(t, 4, summary.TotalCalls)
	assert.EqualValues(t, 2, summary.TotalRetries)
	assert.InDelta(t, 75.0, summary.OverallSuccessRate, 0.001)
	assert.InDelta(t, 50.0, summary.OverallRetryRate, 0.001)

	a := summary.ToolSummaries["a"]
	assert.InDelta(t, 66.667, a.SuccessRate, 0.01)
	assert.InDelta(t, 33.333, a.FailureRate, 0.01)
	assert.InDelta(t, 66.667, a.RetryRate, 0.01)
	assert.InDelta(t, 1.0, a.AverageDuration, 0.001)
	assert.Equal(t, "x", a.LastError)
}

func TestToolMetricsCollector_EmptySummary(t *testing.T) {
	summary := newToolCollector(t, Options{}).Summary()
	assert.Zero(t, summary.TotalCalls)
	assert.Zero(t, summary.OverallSuccessRate)
	assert.Empty(t, summary.ToolSummaries)
}

func TestToolMetricsCollector_StartTracksInFlight(t *testing.T) {
	c := newToolCollector(t, Options{})

	finish := c.Start("deploy")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.inFlight.WithLabelValues("deploy")))

	finish(nil)
	finish(nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.inFlight.WithLabelValues("deploy")))
	assert.EqualValues(t, 1, c.Stats("deploy").TotalCalls)

	retry := c.StartAttempt(context.Background(), "deploy", 2)
	retry(errors.New("timeout"))
	assert.EqualValues(t, 1, c.Stats("deploy").RetryAttempts)
}

func TestToolMetricsCollector_ValidationFailuresAndReset(t *testing.T) {
	c := newToolCollector(t, Options{})
	c.RecordValidationFailure("deploy", "MISSING_PARAMETER")
	c.RecordValidationFailure("deploy", "MISSING_PARAMETER")
	c.RecordCall("deploy", time.Millisecond, nil, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.validationFailures.WithLabelValues("deploy", "MISSING_PARAMETER")))

	c.Reset()
	assert.Nil(t, c.Stats("deploy"))
	assert.Equal(t, 0, testutil.CollectAndCount(c, "mcp_tool_validation_failures_total"))
	assert.Equal(t, 0, testutil.CollectAndCount(c, "mcp_tool_calls_total"))
}

func TestToolMetricsCollector_Options(t *testing.T) {
	c := newToolCollector(t, Options{
		Namespace:   "toolguard",
		Subsystem:   "svc",
		ConstLabels: prometheus.Labels{"env": "test"},
	})
	c.RecordCall("a", time.Millisecond, nil, 1)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() == "toolguard_svc_tool_calls_total" {
			found = true
			labels := mf.GetMetric()[0].GetLabel()
			var names []string
			for _, l := range labels {
				names = append(names, l.GetName())
			}
			assert.Contains(t, names, "env")
		}
	}
	assert.True(t, found)
}

func TestToolMetricsCollector_OTelMirror(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	c := newToolCollector(t, Options{Meter: provider.Meter("test")})
	c.RecordCall("build_image", 2*time.Second, nil, 1)
	c.RecordCall("build_image", time.Second, errors.New("x"), 1)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	var histogramCount uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "tool.calls":
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			case "tool.duration":
				hist, ok := m.Data.(metricdata.Histogram[float64])
				require.True(t, ok)
				for _, dp := range hist.DataPoints {
					histogramCount += dp.Count
				}
			}
		}
	}
	assert.EqualValues(t, 2, total)
	assert.EqualValues(t, 2, histogramCount)
}
