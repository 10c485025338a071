package config

import (
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
)

// envBinding maps a configuration key to its environment variable. An empty
// envVar means EnvPrefix followed by the upper-cased key with dots as
// underscores.
type envBinding struct {
	key    string
	envVar string
}

var envBindings = []envBinding{
	{key: "server.name"},
	{key: "server.version"},
	{key: "server.transport"},
	{key: "server.host"},
	{key: "server.port"},
	{key: "server.read_timeout"},
	{key: "server.write_timeout"},
	{key: "server.idle_timeout"},
	{key: "server.shutdown_timeout"},
	{key: "server.cors_origins"},
	{key: "server.log_level", envVar: EnvPrefix + "LOG_LEVEL"},
	{key: "server.log_format", envVar: EnvPrefix + "LOG_FORMAT"},

	{key: "validation.strict_mode"},
	{key: "validation.fail_fast"},
	{key: "validation.max_errors"},
	{key: "validation.max_request_bytes"},
	{key: "validation.schema_store_path"},

	{key: "metrics.enabled"},
	{key: "metrics.namespace"},
	{key: "metrics.path"},
	{key: "metrics.runtime_collectors"},
	{key: "metrics.sample_interval"},
	{key: "metrics.otel_enabled"},

	{key: "telemetry.tracing_enabled"},
	{key: "telemetry.endpoint"},
	{key: "telemetry.insecure"},
	{key: "telemetry.sample_rate"},
	{key: "telemetry.environment"},
}

// newEnvViper returns a viper instance that reads only the bound variables
func newEnvViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(strings.TrimSuffix(EnvPrefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, b := range envBindings {
		names := []string{b.key}
		if b.envVar != "" {
			names = append(names, b.envVar)
		}
		if err := v.BindEnv(names...); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// applyEnv overrides cfg with every bound environment variable that is set
func applyEnv(cfg *Config) error {
	v, err := newEnvViper()
	if err != nil {
		return errors.Wrap(err, "config", "failed to bind environment variables")
	}

	err = v.Unmarshal(cfg,
		func(dc *mapstructure.DecoderConfig) {
			dc.TagName = "yaml"
			dc.ZeroFields = true
		},
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToTrimmedSliceHook(","),
		)),
	)
	if err != nil {
		return errors.NewError().
			Code(errors.CodeConfigurationInvalid).
			Type(errors.ErrTypeConfiguration).
			Messagef("invalid %s* environment override: %v", EnvPrefix, err).
			Cause(err).
			Build()
	}
	return nil
}

// stringToTrimmedSliceHook splits a string on sep, dropping blank items
func stringToTrimmedSliceHook(sep string) mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Slice {
			return data, nil
		}
		items := []string{}
		for _, item := range strings.Split(data.(string), sep) {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	}
}
