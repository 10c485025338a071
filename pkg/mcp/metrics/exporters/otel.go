package exporters

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
)

// OTelExporter exports instruments created from its Meter through an
// OpenTelemetry manual reader.
type OTelExporter struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
	logger   zerolog.Logger
}

// NewOTelExporter creates a meter provider whose resource carries attrs
func NewOTelExporter(scope string, logger zerolog.Logger, attrs ...attribute.KeyValue) *OTelExporter {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewSchemaless(attrs...)),
	)

	return &OTelExporter{
		reader:   reader,
		provider: provider,
		meter:    provider.Meter(scope),
		logger:   logger.With().Str("component", "otel_exporter").Logger(),
	}
}

// Name implements MetricsExporter
func (e *OTelExporter) Name() string {
	return "otel"
}

// Meter returns the meter collectors mirror their instruments on
func (e *OTelExporter) Meter() metric.Meter {
	return e.meter
}

// OTelMetric is the JSON rendering of one OpenTelemetry metric
type OTelMetric struct {
	Scope       string      `json:"scope"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Unit        string      `json:"unit,omitempty"`
	Kind        string      `json:"kind"`
	Points      []OTelPoint `json:"points"`
}

// OTelPoint is one data point of an OTelMetric
type OTelPoint struct {
	Attributes map[string]string `json:"attributes,omitempty"`
	Value      *float64          `json:"value,omitempty"`
	Count      *uint64           `json:"count,omitempty"`
	Sum        *float64          `json:"sum,omitempty"`
}

// Export implements MetricsExporter. Only the json format is supported, and
// an empty format means json.
func (e *OTelExporter) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	if strings.TrimSpace(req.Format) == "" {
		req.Format = FormatJSON
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Format != FormatJSON {
		return nil, errors.UnsupportedFormatError(req.Format, []string{FormatJSON})
	}

	var rm metricdata.ResourceMetrics
	if err := e.reader.Collect(ctx, &rm); err != nil {
		return nil, errors.ExportFailedError(e.Name(), err)
	}

	metrics := convertResourceMetrics(rm, nameSet(req.MetricNames), req.IncludeEmpty)
	if !req.IncludeHelp {
		for i := range metrics {
			metrics[i].Description = ""
		}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(metrics); err != nil {
		return nil, errors.ExportFailedError(e.Name(), err)
	}

	samples := 0
	for _, m := range metrics {
		samples += len(m.Points)
	}
	e.logger.Debug().Int("metrics", len(metrics)).Int("points", samples).Msg("OpenTelemetry metrics exported")

	return &ExportResult{
		Format:      FormatJSON,
		ContentType: "application/json",
		Body:        buf.Bytes(),
		FamilyCount: len(metrics),
		SampleCount: samples,
		Timestamp:   time.Now().UTC(),
	}, nil
}

// Shutdown implements MetricsExporter
func (e *OTelExporter) Shutdown(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}

func convertResourceMetrics(rm metricdata.ResourceMetrics, names map[string]bool, includeEmpty bool) []OTelMetric {
	var out []OTelMetric
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if names != nil && !names[m.Name] {
				continue
			}
			om := OTelMetric{
				Scope:       sm.Scope.Name,
				Name:        m.Name,
				Description: m.Description,
				Unit:        m.Unit,
			}
			om.Kind, om.Points = convertData(m.Data)
			if !includeEmpty {
				om.Points = dropEmptyPoints(om.Points)
			}
			if len(om.Points) == 0 && !includeEmpty {
				continue
			}
			out = append(out, om)
		}
	}
	if out == nil {
		out = []OTelMetric{}
	}
	return out
}

func convertData(data metricdata.Aggregation) (string, []OTelPoint) {
	switch d := data.(type) {
	case metricdata.Sum[int64]:
		return "sum", numberPoints(d.DataPoints)
	case metricdata.Sum[float64]:
		return "sum", numberPoints(d.DataPoints)
	case metricdata.Gauge[int64]:
		return "gauge", numberPoints(d.DataPoints)
	case metricdata.Gauge[float64]:
		return "gauge", numberPoints(d.DataPoints)
	case metricdata.Histogram[int64]:
		return "histogram", histogramPoints(d.DataPoints)
	case metricdata.Histogram[float64]:
		return "histogram", histogramPoints(d.DataPoints)
	default:
		return "unknown", nil
	}
}

func numberPoints[N int64 | float64](dps []metricdata.DataPoint[N]) []OTelPoint {
	points := make([]OTelPoint, 0, len(dps))
	for _, dp := range dps {
		v := float64(dp.Value)
		points = append(points, OTelPoint{Attributes: attributeMap(dp.Attributes), Value: &v})
	}
	return points
}

func histogramPoints[N int64 | float64](dps []metricdata.HistogramDataPoint[N]) []OTelPoint {
	points := make([]OTelPoint, 0, len(dps))
	for _, dp := range dps {
		count := dp.Count
		sum := float64(dp.Sum)
		points = append(points, OTelPoint{Attributes: attributeMap(dp.Attributes), Count: &count, Sum: &sum})
	}
	return points
}

func attributeMap(set attribute.Set) map[string]string {
	if set.Len() == 0 {
		return nil
	}
	out := make(map[string]string, set.Len())
	for _, kv := range set.ToSlice() {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func dropEmptyPoints(points []OTelPoint) []OTelPoint {
	kept := points[:0]
	for _, p := range points {
		switch {
		case p.Value != nil && *p.Value == 0:
		case p.Count != nil && *p.Count == 0:
		default:
			kept = append(kept, p)
		}
	}
	return kept
}
