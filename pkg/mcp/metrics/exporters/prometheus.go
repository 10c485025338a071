package exporters

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promcollectors "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
)

// PrometheusOptions configures a PrometheusExporter
type PrometheusOptions struct {
	// Registry to export. A fresh registry is created when nil.
	Registry *prometheus.Registry
	// RuntimeCollectors registers the Go runtime and process collectors.
	RuntimeCollectors bool
}

// PrometheusExporter exports the metrics of a Prometheus registry
type PrometheusExporter struct {
	registry *prometheus.Registry
	logger   zerolog.Logger

	handlerOnce sync.Once
	handler     http.Handler
}

// NewPrometheusExporter creates the exporter and registers cs with it
func NewPrometheusExporter(opts PrometheusOptions, logger zerolog.Logger, cs ...prometheus.Collector) (*PrometheusExporter, error) {
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{
		registry: registry,
		logger:   logger.With().Str("component", "prometheus_exporter").Logger(),
	}

	if opts.RuntimeCollectors {
		if err := e.WithRuntimeCollectors(); err != nil {
			return nil, err
		}
	}
	if err := e.Register(cs...); err != nil {
		return nil, err
	}
	return e, nil
}

// Name implements MetricsExporter
func (e *PrometheusExporter) Name() string {
	return "prometheus"
}

// Registry returns the underlying registry
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}

// Register adds collectors. A collector that is already registered fails with ALREADY_EXISTS.
func (e *PrometheusExporter) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := e.registry.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if stderrors.As(err, &are) {
				return errors.NewError().
					Code(errors.CodeAlreadyExists).
					Type(errors.ErrTypeConflict).
					Message("collector is already registered").
					Cause(err).
					Build()
			}
			return errors.NewError().
				Code(errors.CodeInvalidParameter).
				Type(errors.ErrTypeMetrics).
				Message("collector cannot be registered").
				Cause(err).
				Build()
		}
	}
	return nil
}

// WithRuntimeCollectors registers the Go runtime and process collectors
func (e *PrometheusExporter) WithRuntimeCollectors() error {
	return e.Register(
		promcollectors.NewGoCollector(),
		promcollectors.NewProcessCollector(promcollectors.ProcessCollectorOpts{}),
	)
}

// Gather collects every registered metric family
func (e *PrometheusExporter) Gather() ([]*dto.MetricFamily, error) {
	return e.registry.Gather()
}

// Export implements MetricsExporter
func (e *PrometheusExporter) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	families, err := e.Gather()
	if err != nil {
		return nil, errors.ExportFailedError(e.Name(), err)
	}

	families = filterMetricFamilies(families, req.MetricNames)
	if !req.IncludeEmpty {
		families = removeEmptyMetricFamilies(families)
	}
	if !req.IncludeHelp {
		for _, mf := range families {
			mf.Help = nil
		}
	}

	result := &ExportResult{
		Format:      req.Format,
		FamilyCount: len(families),
		SampleCount: countSamples(families),
		Timestamp:   time.Now().UTC(),
	}

	var buf bytes.Buffer
	switch req.Format {
	case FormatJSON:
		if err := json.NewEncoder(&buf).Encode(FamiliesToJSON(families)); err != nil {
			return nil, errors.ExportFailedError(e.Name(), err)
		}
		result.ContentType = "application/json"
	default:
		format := expfmt.NewFormat(expfmt.TypeTextPlain)
		if req.Format == FormatOpenMetrics {
			format = expfmt.NewFormat(expfmt.TypeOpenMetrics)
		}
		if err := encodeFamilies(&buf, format, families); err != nil {
			return nil, errors.ExportFailedError(e.Name(), err)
		}
		result.ContentType = string(format)
	}
	result.Body = buf.Bytes()

	e.logger.Debug().
		Str("format", req.Format).
		Int("families", result.FamilyCount).
		Int("samples", result.SampleCount).
		Msg("Metrics exported")
	return result, nil
}

// Handler returns the standard scrape handler with OpenMetrics enabled
func (e *PrometheusExporter) Handler() http.Handler {
	e.handlerOnce.Do(func() {
		e.handler = promhttp.InstrumentMetricHandler(e.registry,
			promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
				EnableOpenMetrics: true,
				Registry:          e.registry,
			}))
	})
	return e.handler
}

// ServeHTTP serves a negotiated exposition restricted to the repeated
// "name" query parameter, when present.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	families, err := e.Gather()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	families = filterMetricFamilies(families, r.URL.Query()["name"])

	format := expfmt.NegotiateIncludingOpenMetrics(r.Header)
	var buf bytes.Buffer
	if err := encodeFamilies(&buf, format, families); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", string(format))
	if _, err := w.Write(buf.Bytes()); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to write metrics response")
	}
}

// Shutdown implements MetricsExporter
func (e *PrometheusExporter) Shutdown(context.Context) error {
	return nil
}

// ParseText parses the Prometheus text exposition format, sorted by family name
func ParseText(r io.Reader) ([]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	parsed, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, errors.NewError().
			Code(errors.CodeParseError).
			Type(errors.ErrTypeMetrics).
			Message("failed to parse metrics text").
			Cause(err).
			Build()
	}

	families := make([]*dto.MetricFamily, 0, len(parsed))
	for _, mf := range parsed {
		families = append(families, mf)
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	return families, nil
}

func encodeFamilies(w io.Writer, format expfmt.Format, families []*dto.MetricFamily) error {
	encoder := expfmt.NewEncoder(w, format)
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return err
		}
	}
	if closer, ok := encoder.(expfmt.Closer); ok {
		return closer.Close()
	}
	return nil
}

func filterMetricFamilies(families []*dto.MetricFamily, names []string) []*dto.MetricFamily {
	set := nameSet(names)
	if set == nil {
		return families
	}

	filtered := make([]*dto.MetricFamily, 0, len(names))
	for _, mf := range families {
		if set[mf.GetName()] {
			filtered = append(filtered, mf)
		}
	}
	return filtered
}

// removeEmptyMetricFamilies drops zero counters and gauges and histograms
// or summaries without observations, then drops families left empty.
func removeEmptyMetricFamilies(families []*dto.MetricFamily) []*dto.MetricFamily {
	filtered := make([]*dto.MetricFamily, 0, len(families))

	for _, mf := range families {
		metrics := make([]*dto.Metric, 0, len(mf.GetMetric()))
		for _, m := range mf.GetMetric() {
			if !isEmptyMetric(mf.GetType(), m) {
				metrics = append(metrics, m)
			}
		}
		if len(metrics) > 0 {
			filtered = append(filtered, &dto.MetricFamily{
				Name:   mf.Name,
				Help:   mf.Help,
				Type:   mf.Type,
				Metric: metrics,
			})
		}
	}
	return filtered
}

func isEmptyMetric(t dto.MetricType, m *dto.Metric) bool {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue() == 0
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue() == 0
	case dto.MetricType_HISTOGRAM, dto.MetricType_GAUGE_HISTOGRAM:
		return m.GetHistogram().GetSampleCount() == 0
	case dto.MetricType_SUMMARY:
		return m.GetSummary().GetSampleCount() == 0
	default:
		return false
	}
}

func countSamples(families []*dto.MetricFamily) int {
	count := 0
	for _, mf := range families {
		count += len(mf.GetMetric())
	}
	return count
}
