package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracingOption customizes a TracingManager
type TracingOption func(*TracingManager)

// WithSpanProcessor adds a span processor next to the OTLP exporter
func WithSpanProcessor(sp sdktrace.SpanProcessor) TracingOption {
	return func(tm *TracingManager) {
		tm.processors = append(tm.processors, sp)
	}
}

// WithoutGlobal keeps the provider out of the otel globals
func WithoutGlobal() TracingOption {
	return func(tm *TracingManager) {
		tm.global = false
	}
}

// TracingManager manages OpenTelemetry tracing
type TracingManager struct {
	config     *Config
	logger     zerolog.Logger
	processors []sdktrace.SpanProcessor
	global     bool

	provider *sdktrace.TracerProvider
	tracer   oteltrace.Tracer
}

// NewTracingManager creates a new tracing manager
func NewTracingManager(config *Config, logger zerolog.Logger, opts ...TracingOption) *TracingManager {
	tm := &TracingManager{
		config: config,
		logger: logger.With().Str("component", "tracing").Logger(),
		global: true,
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// Initialize initializes the tracing system
func (tm *TracingManager) Initialize(ctx context.Context) error {
	if !tm.config.TracingEnabled {
		tm.tracer = noop.NewTracerProvider().Tracer(tm.config.ServiceName)
		return nil
	}

	res, err := newResource(tm.config)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tm.config.TraceSampleRate))),
	}

	if tm.config.TracingEndpoint != "" {
		exporter, err := tm.createExporter(ctx)
		if err != nil {
			return fmt.Errorf("failed to create exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	for _, sp := range tm.processors {
		opts = append(opts, sdktrace.WithSpanProcessor(sp))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	if tm.global {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	tm.provider = tp
	tm.tracer = tp.Tracer(tm.config.ServiceName)

	tm.logger.Info().
		Str("endpoint", tm.config.TracingEndpoint).
		Float64("sample_rate", tm.config.TraceSampleRate).
		Msg("Tracing initialized")
	return nil
}

// Shutdown flushes pending spans and stops the provider
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	if tm.provider != nil {
		return tm.provider.Shutdown(ctx)
	}
	return nil
}

// Provider returns the SDK provider, or nil when tracing is disabled
func (tm *TracingManager) Provider() oteltrace.TracerProvider {
	if tm.provider == nil {
		return noop.NewTracerProvider()
	}
	return tm.provider
}

// StartSpan starts a new tracing span
func (tm *TracingManager) StartSpan(ctx context.Context, name string, opts ...oteltrace.SpanStartOption) (context.Context, oteltrace.Span) {
	if tm.tracer == nil {
		return ctx, oteltrace.SpanFromContext(ctx)
	}
	return tm.tracer.Start(ctx, name, opts...)
}

// RecordError records an error in the span
func (tm *TracingManager) RecordError(span oteltrace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddSpanAttributes adds attributes to a span
func (tm *TracingManager) AddSpanAttributes(span oteltrace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddSpanEvent adds an event to a span
func (tm *TracingManager) AddSpanEvent(span oteltrace.Span, name string, attrs ...attribute.KeyValue) {
	if span != nil {
		span.AddEvent(name, oteltrace.WithAttributes(attrs...))
	}
}

// InstrumentToolExecution runs fn inside a "tool.<name>" span
func (tm *TracingManager) InstrumentToolExecution(ctx context.Context, toolName string, fn func(context.Context) error) error {
	ctx, span := tm.StartSpan(ctx, "tool."+toolName,
		oteltrace.WithAttributes(
			attribute.String("tool.name", toolName),
			attribute.String("operation.type", "tool_execution"),
		))
	defer span.End()

	err := fn(ctx)
	if err != nil {
		tm.RecordError(span, err)
	}
	return err
}

func (tm *TracingManager) createExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	opts, err := endpointOptions(tm.config.TracingEndpoint, tm.config.Insecure)
	if err != nil {
		return nil, err
	}
	return otlptracehttp.New(ctx, opts...)
}

// endpointOptions accepts either host:port or a full http(s) URL
func endpointOptions(endpoint string, insecure bool) ([]otlptracehttp.Option, error) {
	if !strings.Contains(endpoint, "://") {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return opts, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid tracing endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid tracing endpoint %q: missing host", endpoint)
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(u.Host)}
	if u.Path != "" && u.Path != "/" {
		opts = append(opts, otlptracehttp.WithURLPath(u.Path))
	}
	if insecure || u.Scheme == "http" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts, nil
}

func resourceAttributes(config *Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
		semconv.DeploymentEnvironment(config.Environment),
	}
	for key, value := range config.ResourceAttributes {
		attrs = append(attrs, attribute.String(key, value))
	}
	return attrs
}

func newResource(config *Config) (*resource.Resource, error) {
	return resource.Merge(resource.Default(), resource.NewSchemaless(resourceAttributes(config)...))
}
