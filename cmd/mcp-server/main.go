package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Azure/toolguard/pkg/logger"
	"github.com/Azure/toolguard/pkg/mcp/config"
	"github.com/Azure/toolguard/pkg/mcp/service"
)

// Build-time variables set via ldflags
var (
	// Version is the semantic version of the application
	Version = "dev"
	// GitCommit is the git commit SHA at build time
	GitCommit = "unknown"
	// BuildTime is the time of the build
	BuildTime = "unknown"
)

// FlagConfig holds all command line flags
type FlagConfig struct {
	configFile      *string
	transportType   *string
	host            *string
	port            *int
	logLevel        *string
	logFormat       *string
	strict          *bool
	schemaStore     *string
	metricsEnabled  *bool
	tracingEnabled  *bool
	tracingEndpoint *string
	traceSampleRate *float64
	version         *bool
}

// parseFlags parses command line flags and returns configuration
func parseFlags(fs *flag.FlagSet, args []string) (*FlagConfig, error) {
	flags := &FlagConfig{
		configFile:      fs.String("config", "", "Path to configuration file"),
		transportType:   fs.String("transport", "", "Transport type (stdio, http)"),
		host:            fs.String("host", "", "HTTP listen host"),
		port:            fs.Int("port", 0, "HTTP listen port"),
		logLevel:        fs.String("log-level", "", "Log level (debug, info, warn, error)"),
		logFormat:       fs.String("log-format", "", "Log format (console, json)"),
		strict:          fs.Bool("strict", false, "Reject unknown tools and methods"),
		schemaStore:     fs.String("schema-store", "", "Path of the bbolt schema store"),
		metricsEnabled:  fs.Bool("metrics", true, "Enable Prometheus metrics"),
		tracingEnabled:  fs.Bool("otel", false, "Enable OpenTelemetry tracing"),
		tracingEndpoint: fs.String("otel-endpoint", "", "OpenTelemetry OTLP endpoint (e.g., http://localhost:4318/v1/traces)"),
		traceSampleRate: fs.Float64("trace-sample-rate", -1, "Trace sampling rate (0.0-1.0)"),
		version:         fs.Bool("version", false, "Show version information"),
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

func main() {
	flags, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if *flags.version {
		fmt.Println("toolguard MCP server " + getVersion())
		return
	}

	// A missing .env file is not an error
	_ = godotenv.Load()

	cfg, err := loadConfig(flags, flag.CommandLine)
	if err != nil {
		log.Error().Err(err).Msg("Failed to configure server")
		os.Exit(1)
	}

	logger.Init(cfg.Server.LoggerConfig())
	root := logger.Get()

	root.Info().
		Str("version", getVersion()).
		Str("transport", cfg.Server.Transport).
		Str("config", cfg.Source()).
		Msg("Starting toolguard MCP server")

	if err := run(root, cfg); err != nil {
		root.Error().Err(err).Msg("Server failed")
		os.Exit(1)
	}
}

// loadConfig loads the configuration file and applies explicitly set flags
func loadConfig(flags *FlagConfig, fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(*flags.configFile)
	if err != nil {
		return nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if *flags.transportType != "" {
		cfg.Server.Transport = *flags.transportType
	}
	if *flags.host != "" {
		cfg.Server.Host = *flags.host
	}
	if *flags.port != 0 {
		cfg.Server.Port = *flags.port
	}
	if *flags.logLevel != "" {
		cfg.Server.LogLevel = *flags.logLevel
	}
	if *flags.logFormat != "" {
		cfg.Server.LogFormat = *flags.logFormat
	}
	if set["strict"] {
		cfg.Validation.StrictMode = *flags.strict
	}
	if *flags.schemaStore != "" {
		cfg.Validation.SchemaStorePath = *flags.schemaStore
	}
	if set["metrics"] {
		cfg.Metrics.Enabled = *flags.metricsEnabled
	}
	if set["otel"] {
		cfg.Telemetry.TracingEnabled = *flags.tracingEnabled
	}
	if *flags.tracingEndpoint != "" {
		cfg.Telemetry.Endpoint = *flags.tracingEndpoint
	}
	if *flags.traceSampleRate >= 0 {
		cfg.Telemetry.SampleRate = *flags.traceSampleRate
	}
	if cfg.Server.Version == "" || cfg.Server.Version == "dev" {
		cfg.Server.Version = Version
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run starts the server and shuts it down on SIGINT or SIGTERM
func run(root zerolog.Logger, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := service.NewServerFactory(root, cfg).CreateServer(ctx)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		root.Info().Msg("Received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			shutdown(root, srv, cfg.Server.ShutdownTimeout)
			return err
		}
	}

	shutdown(root, srv, cfg.Server.ShutdownTimeout)
	return nil
}

func shutdown(root zerolog.Logger, srv *service.Server, timeout time.Duration) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		root.Error().Err(err).Msg("Error during server shutdown")
	}
}

// getVersion returns formatted version information
func getVersion() string {
	if Version == "dev" {
		return fmt.Sprintf("dev (commit: %s, built: %s)", GitCommit, BuildTime)
	}
	return fmt.Sprintf("v%s (commit: %s, built: %s)", Version, GitCommit, BuildTime)
}
