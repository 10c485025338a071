// Package config loads the toolguard server configuration from defaults, an
// optional YAML file and TOOLGUARD_* environment variables.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Azure/toolguard/pkg/logger"
	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "TOOLGUARD_"

// Config is the complete server configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Validation ValidationConfig `yaml:"validation" json:"validation"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" json:"telemetry"`

	source string
}

// ServerConfig contains server and transport settings
type ServerConfig struct {
	Name            string        `yaml:"name" json:"name" validate:"required"`
	Version         string        `yaml:"version" json:"version"`
	Transport       string        `yaml:"transport" json:"transport" validate:"oneof=stdio http"`
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `yaml:"cors_origins" json:"cors_origins"`
	LogLevel        string        `yaml:"log_level" json:"log_level" validate:"oneof=trace debug info warn error fatal panic"`
	LogFormat       string        `yaml:"log_format" json:"log_format" validate:"oneof=console json"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggerConfig returns the logger settings. The stdio transport logs to
// stderr only.
func (s ServerConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      s.LogLevel,
		Format:     s.LogFormat,
		StderrOnly: s.Transport == "stdio",
	}
}

// ValidationConfig contains validator settings
type ValidationConfig struct {
	StrictMode      bool   `yaml:"strict_mode" json:"strict_mode"`
	FailFast        bool   `yaml:"fail_fast" json:"fail_fast"`
	MaxErrors       int    `yaml:"max_errors" json:"max_errors" validate:"min=1"`
	MaxRequestBytes int    `yaml:"max_request_bytes" json:"max_request_bytes" validate:"min=1"`
	SchemaStorePath string `yaml:"schema_store_path" json:"schema_store_path"`
}

// MetricsConfig contains collector and exporter settings
type MetricsConfig struct {
	Enabled           bool          `yaml:"enabled" json:"enabled"`
	Namespace         string        `yaml:"namespace" json:"namespace" validate:"required"`
	Path              string        `yaml:"path" json:"path" validate:"startswith=/"`
	RuntimeCollectors bool          `yaml:"runtime_collectors" json:"runtime_collectors"`
	SampleInterval    time.Duration `yaml:"sample_interval" json:"sample_interval" validate:"gt=0"`
	OTelEnabled       bool          `yaml:"otel_enabled" json:"otel_enabled"`
}

// TelemetryConfig contains tracing settings
type TelemetryConfig struct {
	TracingEnabled bool    `yaml:"tracing_enabled" json:"tracing_enabled"`
	Endpoint       string  `yaml:"endpoint" json:"endpoint"`
	Insecure       bool    `yaml:"insecure" json:"insecure"`
	SampleRate     float64 `yaml:"sample_rate" json:"sample_rate" validate:"min=0,max=1"`
	Environment    string  `yaml:"environment" json:"environment"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:            "toolguard",
			Version:         "dev",
			Transport:       "stdio",
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			LogLevel:        "info",
			LogFormat:       "console",
		},
		Validation: ValidationConfig{
			MaxErrors:       100,
			MaxRequestBytes: 1 << 20,
		},
		Metrics: MetricsConfig{
			Enabled:           true,
			Namespace:         "mcp",
			Path:              "/metrics",
			RuntimeCollectors: true,
			SampleInterval:    15 * time.Second,
			OTelEnabled:       true,
		},
		Telemetry: TelemetryConfig{
			SampleRate:  0.1,
			Environment: "development",
		},
	}
}

// DefaultPaths lists the files tried, in order, when no path is given
func DefaultPaths() []string {
	paths := []string{"./toolguard.yaml", "./toolguard.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".toolguard", "config.yaml"))
	}
	return append(paths, "/etc/toolguard/config.yaml")
}

// Load builds the configuration in priority order: environment variables,
// the YAML file at path (or the first default path that exists), defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range DefaultPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, errors.NewError().
				Code(errors.CodeConfigurationInvalid).
				Type(errors.ErrTypeConfiguration).
				Messagef("failed to load configuration file %s: %w", path, err).
				Context("path", path).
				Build()
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Source returns the file the configuration was read from, if any
func (c *Config) Source() string {
	return c.source
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return err
	}
	c.source = path
	return nil
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every section against its struct rules
func (c *Config) Validate() error {
	err := structValidator.Struct(c)
	if err == nil {
		return nil
	}

	b := errors.NewError().
		Code(errors.CodeConfigurationInvalid).
		Type(errors.ErrTypeConfiguration).
		Severity(errors.SeverityHigh).
		Cause(err)

	var fieldErrs validator.ValidationErrors
	if stderrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		b = b.Messagef("invalid configuration: %s fails %q", first.Namespace(), first.Tag()).
			Context("field", first.Namespace()).
			Context("rule", first.Tag()).
			Context("error_count", len(fieldErrs))
	} else {
		b = b.Messagef("invalid configuration: %v", err)
	}
	return b.Build()
}
