// Package exporters renders collected metrics in Prometheus text,
// OpenMetrics and JSON formats.
package exporters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
)

const (
	FormatPrometheus  = "prometheus"
	FormatOpenMetrics = "openmetrics"
	FormatJSON        = "json"
)

const (
	MaxMetricNames      = 100
	MaxMetricNameLength = 200
)

// SupportedFormats lists every format understood by ExportRequest
var SupportedFormats = []string{FormatPrometheus, FormatOpenMetrics, FormatJSON}

// MetricsExporter renders the metrics it owns on request
type MetricsExporter interface {
	Name() string
	Export(ctx context.Context, req ExportRequest) (*ExportResult, error)
	Shutdown(ctx context.Context) error
}

// ExportRequest selects what to export and how
type ExportRequest struct {
	Format       string   `json:"format,omitempty"`
	MetricNames  []string `json:"metric_names,omitempty"`
	IncludeHelp  bool     `json:"include_help,omitempty"`
	IncludeEmpty bool     `json:"include_empty,omitempty"`
}

// Validate checks the request limits and defaults the format to prometheus
func (r *ExportRequest) Validate() error {
	r.Format = strings.ToLower(strings.TrimSpace(r.Format))
	if r.Format == "" {
		r.Format = FormatPrometheus
	}

	switch r.Format {
	case FormatPrometheus, FormatOpenMetrics, FormatJSON:
	default:
		return errors.UnsupportedFormatError(r.Format, SupportedFormats)
	}

	if len(r.MetricNames) > MaxMetricNames {
		return errors.InvalidParameterError("metric_names",
			fmt.Sprintf("too many metric names (max %d)", MaxMetricNames), len(r.MetricNames))
	}
	for _, name := range r.MetricNames {
		if name == "" {
			return errors.InvalidParameterError("metric_names", "metric names cannot be empty", name)
		}
		if len(name) > MaxMetricNameLength {
			return errors.InvalidParameterError("metric_names",
				fmt.Sprintf("metric name is too long (max %d characters)", MaxMetricNameLength), name)
		}
	}
	return nil
}

// ExportResult is the rendered output of an export
type ExportResult struct {
	Format      string    `json:"format"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"-"`
	FamilyCount int       `json:"family_count"`
	SampleCount int       `json:"sample_count"`
	Timestamp   time.Time `json:"timestamp"`
}

func nameSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
