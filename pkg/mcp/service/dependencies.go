package service

import (
	stderrors "errors"

	"github.com/rs/zerolog"

	"github.com/Azure/toolguard/pkg/mcp/config"
	"github.com/Azure/toolguard/pkg/mcp/infra/telemetry"
	"github.com/Azure/toolguard/pkg/mcp/metrics/collectors"
	"github.com/Azure/toolguard/pkg/mcp/metrics/exporters"
	"github.com/Azure/toolguard/pkg/mcp/service/tools"
	"github.com/Azure/toolguard/pkg/mcp/service/transport/http"
	"github.com/Azure/toolguard/pkg/mcp/validation/schemas"
	"github.com/Azure/toolguard/pkg/mcp/validation/validators"
)

// Dependencies is everything the server is assembled from
type Dependencies struct {
	Logger zerolog.Logger
	Config *config.Config

	Registry  *schemas.Registry
	Validator *validators.Validator

	ToolMetrics    *collectors.ToolMetricsCollector
	RequestMetrics *collectors.RequestMetricsCollector
	SystemMetrics  *collectors.SystemMetricsCollector

	// Prometheus is nil when metrics are disabled
	Prometheus *exporters.PrometheusExporter
	Telemetry  *telemetry.Manager
}

// Validate reports every missing dependency
func (d *Dependencies) Validate() error {
	var errs []error

	if d.Config == nil {
		errs = append(errs, stderrors.New("config is required"))
	}
	if d.Registry == nil {
		errs = append(errs, stderrors.New("schema registry is required"))
	}
	if d.Validator == nil {
		errs = append(errs, stderrors.New("validator is required"))
	}
	if d.ToolMetrics == nil {
		errs = append(errs, stderrors.New("tool metrics collector is required"))
	}
	if d.RequestMetrics == nil {
		errs = append(errs, stderrors.New("request metrics collector is required"))
	}
	if d.SystemMetrics == nil {
		errs = append(errs, stderrors.New("system metrics collector is required"))
	}
	if d.Telemetry == nil {
		errs = append(errs, stderrors.New("telemetry manager is required"))
	}

	return stderrors.Join(errs...)
}

// ToolDependencies returns the subset the tool handlers use
func (d *Dependencies) ToolDependencies() tools.ToolDependencies {
	deps := tools.ToolDependencies{
		Registry:       d.Registry,
		Validator:      d.Validator,
		ToolMetrics:    d.ToolMetrics,
		RequestMetrics: d.RequestMetrics,
		SystemMetrics:  d.SystemMetrics,
		Prometheus:     d.Prometheus,
		Logger:         d.Logger.With().Str("component", "tools").Logger(),
	}
	if d.Telemetry != nil {
		deps.OTel = d.Telemetry.Metrics()
		if d.Telemetry.Config().TracingEnabled {
			deps.Tracing = d.Telemetry.Tracing()
		}
	}
	return deps
}

// HTTPOptions returns the HTTP transport options
func (d *Dependencies) HTTPOptions() http.Options {
	srv := d.Config.Server
	opts := http.Options{
		Name:            srv.Name,
		Version:         srv.Version,
		Host:            srv.Host,
		Port:            srv.Port,
		ReadTimeout:     srv.ReadTimeout,
		WriteTimeout:    srv.WriteTimeout,
		IdleTimeout:     srv.IdleTimeout,
		ShutdownTimeout: srv.ShutdownTimeout,
		CORSOrigins:     srv.CORSOrigins,
		MetricsPath:     d.Config.Metrics.Path,
		Registry:        d.Registry,
		Validator:       d.Validator,
		Prometheus:      d.Prometheus,
		RequestMetrics:  d.RequestMetrics,
		ToolMetrics:     d.ToolMetrics,
		SystemMetrics:   d.SystemMetrics,
	}
	if d.Telemetry != nil {
		opts.OTel = d.Telemetry.Metrics()
		if d.Telemetry.Config().TracingEnabled {
			opts.TracerProvider = d.Telemetry.Tracing().Provider()
		}
	}
	return opts
}
