// Package collectors provides Prometheus collectors for tool calls, MCP
// requests and process runtime statistics.
package collectors

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
)

// DefaultNamespace prefixes every metric name
const DefaultNamespace = "mcp"

// Options are shared by all collectors
type Options struct {
	Namespace   string
	Subsystem   string
	ConstLabels prometheus.Labels
	// Buckets for duration histograms. Defaults to prometheus.DefBuckets.
	Buckets []float64
	// Meter, when set, receives an OpenTelemetry mirror of tool call metrics.
	Meter metric.Meter
}

func (o Options) withDefaults() Options {
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	if len(o.Buckets) == 0 {
		o.Buckets = prometheus.DefBuckets
	}
	return o
}

func (o Options) fqName(name string) string {
	return prometheus.BuildFQName(o.Namespace, o.Subsystem, name)
}
