// Package telemetry wires OpenTelemetry tracing and the OpenTelemetry
// metrics exporter for the server.
package telemetry

import (
	"context"

	"github.com/rs/zerolog"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
	"github.com/Azure/toolguard/pkg/mcp/metrics/exporters"
)

// Manager coordinates tracing and metrics
type Manager struct {
	config  *Config
	logger  zerolog.Logger
	tracing *TracingManager
	metrics *exporters.OTelExporter
}

// NewManager creates a new telemetry manager
func NewManager(config *Config, logger zerolog.Logger, opts ...TracingOption) *Manager {
	if config == nil {
		config = DefaultConfig()
	}

	return &Manager{
		config:  config,
		logger:  logger,
		tracing: NewTracingManager(config, logger, opts...),
	}
}

// Initialize validates the configuration and starts tracing and metrics
func (m *Manager) Initialize(ctx context.Context) error {
	if err := m.config.Validate(); err != nil {
		return errors.NewError().
			Code(errors.CodeConfigurationInvalid).
			Type(errors.ErrTypeConfiguration).
			Message("invalid telemetry configuration").
			Cause(err).
			Build()
	}

	if err := m.tracing.Initialize(ctx); err != nil {
		return errors.NewError().
			Code(errors.CodeInternalError).
			Message("failed to initialize tracing").
			Cause(err).
			Build()
	}

	if m.config.MetricsEnabled {
		m.metrics = exporters.NewOTelExporter(m.config.ServiceName, m.logger, resourceAttributes(m.config)...)
	}
	return nil
}

// Shutdown gracefully shuts down the telemetry system
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.metrics != nil {
		if err := m.metrics.Shutdown(ctx); err != nil {
			return errors.NewError().Code(errors.CodeInternalError).Message("failed to shutdown metrics").Cause(err).Build()
		}
	}

	if err := m.tracing.Shutdown(ctx); err != nil {
		return errors.NewError().Code(errors.CodeInternalError).Message("failed to shutdown tracing").Cause(err).Build()
	}
	return nil
}

// Tracing returns the tracing manager
func (m *Manager) Tracing() *TracingManager {
	return m.tracing
}

// Metrics returns the OpenTelemetry metrics exporter, or nil when disabled
func (m *Manager) Metrics() *exporters.OTelExporter {
	return m.metrics
}

// Config returns the telemetry configuration
func (m *Manager) Config() *Config {
	return m.config
}

// TraceID returns the trace ID of the span in ctx, or ""
func TraceID(ctx context.Context) string {
	sc := oteltrace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}
