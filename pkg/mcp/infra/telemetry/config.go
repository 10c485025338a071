package telemetry

import (
	"os"
	"strconv"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
)

// Config holds telemetry configuration
type Config struct {
	// Service identification
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Tracing configuration
	TracingEnabled  bool
	TracingEndpoint string
	Insecure        bool
	TraceSampleRate float64

	// MetricsEnabled creates the OpenTelemetry meter provider
	MetricsEnabled bool

	// Resource attributes
	ResourceAttributes map[string]string
}

// DefaultConfig returns a default telemetry configuration
func DefaultConfig() *Config {
	return &Config{
		ServiceName:     "toolguard",
		ServiceVersion:  getEnvWithDefault("TOOLGUARD_VERSION", "dev"),
		Environment:     getEnvWithDefault("TOOLGUARD_ENV", "development"),
		TracingEnabled:  getBoolEnvWithDefault("TOOLGUARD_TRACING_ENABLED", false),
		TracingEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"),
		TraceSampleRate: getFloatEnvWithDefault("TOOLGUARD_TRACE_SAMPLE_RATE", 1.0),
		MetricsEnabled:  getBoolEnvWithDefault("TOOLGUARD_OTEL_METRICS_ENABLED", true),
	}
}

// LoadFromEnv overrides fields from the standard OTEL_* variables and the
// TOOLGUARD_* telemetry variables
func (c *Config) LoadFromEnv() {
	if val := os.Getenv("OTEL_SERVICE_NAME"); val != "" {
		c.ServiceName = val
	}
	if val := os.Getenv("TOOLGUARD_VERSION"); val != "" {
		c.ServiceVersion = val
	}
	if val := os.Getenv("TOOLGUARD_ENV"); val != "" {
		c.Environment = val
	}
	if val := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); val != "" {
		c.TracingEndpoint = val
	}

	c.TracingEnabled = getBoolEnvWithDefault("TOOLGUARD_TRACING_ENABLED", c.TracingEnabled)
	c.MetricsEnabled = getBoolEnvWithDefault("TOOLGUARD_OTEL_METRICS_ENABLED", c.MetricsEnabled)
	c.Insecure = getBoolEnvWithDefault("OTEL_EXPORTER_OTLP_INSECURE", c.Insecure)
	c.TraceSampleRate = getFloatEnvWithDefault("TOOLGUARD_TRACE_SAMPLE_RATE", c.TraceSampleRate)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch {
	case c.ServiceName == "":
		return errors.MissingParameterError("service_name")
	case c.ServiceVersion == "":
		return errors.MissingParameterError("service_version")
	case c.TraceSampleRate < 0 || c.TraceSampleRate > 1:
		return errors.InvalidParameterError("trace_sample_rate", "must be between 0 and 1", c.TraceSampleRate)
	}
	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	parsed, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	parsed, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}
