// Package service assembles the toolguard MCP server from its configuration.
package service

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/Azure/toolguard/pkg/mcp/config"
	"github.com/Azure/toolguard/pkg/mcp/infra/telemetry"
	"github.com/Azure/toolguard/pkg/mcp/metrics/collectors"
	"github.com/Azure/toolguard/pkg/mcp/metrics/exporters"
	"github.com/Azure/toolguard/pkg/mcp/service/lifecycle"
	"github.com/Azure/toolguard/pkg/mcp/service/tools"
	"github.com/Azure/toolguard/pkg/mcp/service/transport"
	"github.com/Azure/toolguard/pkg/mcp/validation/schemas"
	"github.com/Azure/toolguard/pkg/mcp/validation/validators"
)

// ServerFactory builds a Server and its dependencies
type ServerFactory struct {
	logger      zerolog.Logger
	config      *config.Config
	tracingOpts []telemetry.TracingOption
}

// NewServerFactory creates a factory. A nil config selects config.Default().
func NewServerFactory(logger zerolog.Logger, cfg *config.Config, tracingOpts ...telemetry.TracingOption) *ServerFactory {
	if cfg == nil {
		cfg = config.Default()
	}
	return &ServerFactory{
		logger:      logger,
		config:      cfg,
		tracingOpts: tracingOpts,
	}
}

// Server is an assembled MCP server with its transports
type Server struct {
	deps       *Dependencies
	mcpServer  *server.MCPServer
	transports *transport.Registry
	http       *transport.HTTPTransport
	lifecycle  *lifecycle.LifecycleManager
}

// CreateServer builds the dependencies, registers the built-in tools and
// prepares both transports.
func (f *ServerFactory) CreateServer(ctx context.Context) (*Server, error) {
	f.logger.Info().
		Str("name", f.config.Server.Name).
		Str("transport", f.config.Server.Transport).
		Msg("Creating MCP server")

	deps, err := f.BuildDependencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependencies: %w", err)
	}

	mcpServer := server.NewMCPServer(
		f.config.Server.Name,
		f.config.Server.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	if err := tools.RegisterTools(ctx, mcpServer, deps.ToolDependencies()); err != nil {
		closeDependencies(ctx, deps)
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	transports := transport.NewRegistry(f.logger)
	httpTransport := transport.NewHTTPTransport(deps.HTTPOptions(), f.logger)
	httpTransport.Handler().SetServer(mcpServer)
	transports.Register(transport.TransportTypeStdio, transport.NewStdioTransport(f.logger))
	transports.Register(transport.TransportTypeHTTP, httpTransport)

	closers := []lifecycle.Closer{
		{Name: "schema_registry", Close: func(context.Context) error { return deps.Registry.Close() }},
		{Name: "telemetry", Close: deps.Telemetry.Shutdown},
	}
	if deps.Prometheus != nil {
		closers = append(closers, lifecycle.Closer{Name: "prometheus", Close: deps.Prometheus.Shutdown})
	}

	s := &Server{
		deps:       deps,
		mcpServer:  mcpServer,
		transports: transports,
		http:       httpTransport,
		lifecycle: lifecycle.NewLifecycleManager(f.logger,
			transport.TransportType(f.config.Server.Transport), transports, mcpServer, deps.SystemMetrics, closers...),
	}

	f.logger.Info().Int("tools", deps.Registry.Len()).Msg("MCP server created successfully")
	return s, nil
}

// BuildDependencies creates the registry, validator, telemetry and metrics
func (f *ServerFactory) BuildDependencies(ctx context.Context) (*Dependencies, error) {
	registry, err := f.createRegistry(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema registry: %w", err)
	}

	validator := f.createValidator(registry)

	manager, err := f.createTelemetry(ctx)
	if err != nil {
		_ = registry.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	deps := &Dependencies{
		Logger:    f.logger,
		Config:    f.config,
		Registry:  registry,
		Validator: validator,
		Telemetry: manager,
	}
	if err := f.createMetrics(deps); err != nil {
		closeDependencies(ctx, deps)
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	if err := deps.Validate(); err != nil {
		closeDependencies(ctx, deps)
		return nil, fmt.Errorf("dependency validation failed: %w", err)
	}

	// Package-level validation helpers follow the server's registry.
	schemas.SetDefaultRegistry(registry)
	validators.SetDefault(validator)
	return deps, nil
}

func (f *ServerFactory) createRegistry(ctx context.Context) (*schemas.Registry, error) {
	opts := []schemas.Option{schemas.WithLogger(f.logger)}

	path := f.config.Validation.SchemaStorePath
	if path == "" {
		return schemas.NewRegistry(opts...), nil
	}

	store, err := schemas.NewBoltStore(path, f.logger)
	if err != nil {
		return nil, err
	}
	registry := schemas.NewRegistry(append(opts, schemas.WithStore(store))...)

	loaded, err := registry.Load(ctx)
	if err != nil {
		_ = registry.Close()
		return nil, err
	}
	f.logger.Info().Str("path", path).Int("schemas", loaded).Msg("Loaded stored tool schemas")
	return registry, nil
}

func (f *ServerFactory) createValidator(registry *schemas.Registry) *validators.Validator {
	v := f.config.Validation
	return validators.NewValidator(registry, validators.Options{
		StrictMode:      v.StrictMode,
		MaxErrors:       v.MaxErrors,
		FailFast:        v.FailFast,
		MaxRequestBytes: v.MaxRequestBytes,
	}, f.logger)
}

func (f *ServerFactory) createTelemetry(ctx context.Context) (*telemetry.Manager, error) {
	t := f.config.Telemetry
	manager := telemetry.NewManager(&telemetry.Config{
		ServiceName:     f.config.Server.Name,
		ServiceVersion:  f.config.Server.Version,
		Environment:     t.Environment,
		TracingEnabled:  t.TracingEnabled,
		TracingEndpoint: t.Endpoint,
		Insecure:        t.Insecure,
		TraceSampleRate: t.SampleRate,
		MetricsEnabled:  f.config.Metrics.Enabled && f.config.Metrics.OTelEnabled,
	}, f.logger, f.tracingOpts...)

	if err := manager.Initialize(ctx); err != nil {
		return nil, err
	}
	return manager, nil
}

func (f *ServerFactory) createMetrics(deps *Dependencies) error {
	opts := collectors.Options{Namespace: f.config.Metrics.Namespace}
	if otel := deps.Telemetry.Metrics(); otel != nil {
		opts.Meter = otel.Meter()
	}

	toolMetrics, err := collectors.NewToolMetricsCollector(opts, f.logger)
	if err != nil {
		return err
	}
	deps.ToolMetrics = toolMetrics
	deps.RequestMetrics = collectors.NewRequestMetricsCollector(opts)
	deps.SystemMetrics = collectors.NewSystemMetricsCollector(opts, f.config.Metrics.SampleInterval, f.logger)

	if !f.config.Metrics.Enabled {
		return nil
	}

	prom, err := exporters.NewPrometheusExporter(exporters.PrometheusOptions{
		RuntimeCollectors: f.config.Metrics.RuntimeCollectors,
	}, f.logger, deps.ToolMetrics, deps.RequestMetrics, deps.SystemMetrics)
	if err != nil {
		return err
	}
	deps.Prometheus = prom
	return nil
}

func closeDependencies(ctx context.Context, deps *Dependencies) {
	if deps.Registry != nil {
		_ = deps.Registry.Close()
	}
	if deps.Telemetry != nil {
		_ = deps.Telemetry.Shutdown(ctx)
	}
}

// Start serves the configured transport until ctx is done
func (s *Server) Start(ctx context.Context) error {
	return s.lifecycle.Start(ctx)
}

// Shutdown releases the store, telemetry and exporters
func (s *Server) Shutdown(ctx context.Context) error {
	return s.lifecycle.Shutdown(ctx)
}

// MCPServer returns the underlying MCP server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Dependencies returns the assembled dependencies
func (s *Server) Dependencies() *Dependencies {
	return s.deps
}

// HTTPTransport returns the HTTP transport, whether or not it is the one served
func (s *Server) HTTPTransport() *transport.HTTPTransport {
	return s.http
}

// InitializeServer builds a server with a background context
func InitializeServer(logger zerolog.Logger, cfg *config.Config) (*Server, error) {
	return NewServerFactory(logger, cfg).CreateServer(context.Background())
}
