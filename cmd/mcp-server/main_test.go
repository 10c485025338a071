package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azure/toolguard/pkg/mcp/config"
	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
)

func TestGetVersion(t *testing.T) {
	// Test default values
	version := getVersion()
	if !strings.Contains(version, "dev") {
		t.Errorf("Expected version to contain 'dev', got: %s", version)
	}

	// Test with set values
	Version = "1.0.0"
	GitCommit = "abc123"
	BuildTime = "2024-01-01T00:00:00Z"

	version = getVersion()
	expected := "v1.0.0 (commit: abc123, built: 2024-01-01T00:00:00Z)"
	if version != expected {
		t.Errorf("Expected version '%s', got: %s", expected, version)
	}

	// Reset for other tests
	Version = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  transport: stdio\n  port: 9000\nvalidation:\n  strict_mode: true\n"), 0o600))

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "file values kept without flags",
			args: []string{"-config", path},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "stdio", cfg.Server.Transport)
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.True(t, cfg.Validation.StrictMode)
			},
		},
		{
			name: "flags override file",
			args: []string{"-config", path, "-transport", "http", "-port", "9100", "-strict=false", "-metrics=false"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "http", cfg.Server.Transport)
				assert.Equal(t, 9100, cfg.Server.Port)
				assert.False(t, cfg.Validation.StrictMode)
				assert.False(t, cfg.Metrics.Enabled)
			},
		},
		{
			name: "sample rate flag",
			args: []string{"-config", path, "-trace-sample-rate", "0.5"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.InDelta(t, 0.5, cfg.Telemetry.SampleRate, 1e-9)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			flags, err := parseFlags(fs, tt.args)
			require.NoError(t, err)

			cfg, err := loadConfig(flags, fs)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfig_InvalidOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  name: toolguard\n"), 0o600))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	flags, err := parseFlags(fs, []string{"-config", path, "-transport", "grpc"})
	require.NoError(t, err)

	_, err = loadConfig(flags, fs)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeConfigurationInvalid))
}
