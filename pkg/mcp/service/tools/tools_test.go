package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
	"github.com/Azure/toolguard/pkg/mcp/infra/telemetry"
	"github.com/Azure/toolguard/pkg/mcp/metrics/collectors"
	"github.com/Azure/toolguard/pkg/mcp/metrics/exporters"
	"github.com/Azure/toolguard/pkg/mcp/validation/schemas"
	"github.com/Azure/toolguard/pkg/mcp/validation/validators"
)

type testEnv struct {
	server   *server.MCPServer
	deps     ToolDependencies
	recorder *tracetest.SpanRecorder
}

type decodedResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ToolError      `json:"error"`
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	registry := schemas.NewRegistry()
	toolMetrics, err := collectors.NewToolMetricsCollector(collectors.Options{}, zerolog.Nop())
	require.NoError(t, err)
	requestMetrics := collectors.NewRequestMetricsCollector(collectors.Options{})
	system := collectors.NewSystemMetricsCollector(collectors.Options{}, 0, zerolog.Nop())

	prom, err := exporters.NewPrometheusExporter(exporters.PrometheusOptions{}, zerolog.Nop(),
		toolMetrics, requestMetrics, system)
	require.NoError(t, err)

	recorder := tracetest.NewSpanRecorder()
	cfg := telemetry.DefaultConfig()
	cfg.TracingEnabled = true
	cfg.TracingEndpoint = ""
	cfg.TraceSampleRate = 1
	tracing := telemetry.NewTracingManager(cfg, zerolog.Nop(),
		telemetry.WithSpanProcessor(recorder), telemetry.WithoutGlobal())
	require.NoError(t, tracing.Initialize(context.Background()))
	t.Cleanup(func() { _ = tracing.Shutdown(context.Background()) })

	deps := ToolDependencies{
		Registry:       registry,
		Validator:      validators.NewValidator(registry, validators.DefaultOptions(), zerolog.Nop()),
		ToolMetrics:    toolMetrics,
		RequestMetrics: requestMetrics,
		SystemMetrics:  system,
		Prometheus:     prom,
		Tracing:        tracing,
		Logger:         zerolog.Nop(),
	}

	s := server.NewMCPServer("test-server", "1.0.0", server.WithToolCapabilities(true))
	require.NoError(t, RegisterTools(context.Background(), s, deps))

	return &testEnv{server: s, deps: deps, recorder: recorder}
}

// call sends a tools/call message through the MCP server
func (e *testEnv) call(t *testing.T, name string, args map[string]interface{}) decodedResult {
	t.Helper()

	msg, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      name,
			"arguments": args,
		},
	})
	require.NoError(t, err)

	raw, err := json.Marshal(e.server.HandleMessage(context.Background(), msg))
	require.NoError(t, err)

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp), string(raw))
	require.Nil(t, resp.Error, string(raw))
	require.Len(t, resp.Result.Content, 1)

	var decoded decodedResult
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &decoded))
	assert.Equal(t, !decoded.Success, resp.Result.IsError)
	return decoded
}

func TestRegisterTools(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, []string{
		"get_metrics",
		"get_tool_schema",
		"get_tool_stats",
		"list_tool_schemas",
		"validate_request",
		"validate_tool_parameters",
	}, env.deps.Registry.Names())

	schema, err := env.deps.Registry.Get("get_tool_schema")
	require.NoError(t, err)
	assert.Equal(t, schemas.CategoryUtility, schema.Category)
	assert.Equal(t, schemaVersion, schema.Version)
	assert.Equal(t, []string{"name"}, schema.RequiredParams())
	assert.Contains(t, schema.Properties(), "retryNumber")
}

func TestRegisterTools_ReplacesStoredSchema(t *testing.T) {
	registry := schemas.NewRegistry()
	stale, err := schemas.NewToolSchema("get_tool_schema", "stale", nil)
	require.NoError(t, err)
	require.NoError(t, registry.Register(stale))

	deps := ToolDependencies{
		Registry:  registry,
		Validator: validators.NewValidator(registry, validators.DefaultOptions(), zerolog.Nop()),
		Logger:    zerolog.Nop(),
	}
	require.NoError(t, RegisterTools(context.Background(), server.NewMCPServer("test-server", "1.0.0"), deps))

	schema, err := registry.Get("get_tool_schema")
	require.NoError(t, err)
	assert.Equal(t, "Get the input schema of a registered tool", schema.Description)
}

func TestRegisterTool_InvalidDependencies(t *testing.T) {
	registry := schemas.NewRegistry()
	validator := validators.NewValidator(registry, validators.DefaultOptions(), zerolog.Nop())
	config, err := GetToolConfig("get_tool_schema")
	require.NoError(t, err)

	tests := []struct {
		name   string
		config ToolConfig
		deps   ToolDependencies
	}{
		{
			name:   "missing registry",
			config: config,
			deps:   ToolDependencies{Validator: validator},
		},
		{
			name:   "missing validator",
			config: config,
			deps:   ToolDependencies{Registry: registry},
		},
		{
			name:   "missing handler",
			config: ToolConfig{Name: "broken", Args: &ToolStatsArgs{}},
			deps:   ToolDependencies{Registry: registry, Validator: validator},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RegisterTool(context.Background(), server.NewMCPServer("test-server", "1.0.0"), tt.config, tt.deps)
			assert.True(t, errors.IsCode(err, errors.CodeMissingParameter), "got %v", err)
		})
	}
}

func TestGetToolConfig(t *testing.T) {
	config, err := GetToolConfig("get_metrics")
	require.NoError(t, err)
	assert.Equal(t, schemas.CategoryDiagnostics, config.Category)

	_, err = GetToolConfig("missing")
	assert.True(t, errors.IsCode(err, errors.CodeToolNotFound))

	assert.Len(t, Configs(), len(toolConfigs))
}

func TestBuiltinSchemas(t *testing.T) {
	builtins, err := BuiltinSchemas()
	require.NoError(t, err)
	require.Len(t, builtins, len(toolConfigs))

	for _, s := range builtins {
		assert.NotContains(t, s.InputSchema, "$schema", s.Name)
		assert.Equal(t, false, s.InputSchema["additionalProperties"], s.Name)
	}
}

func TestListToolSchemas(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		args     map[string]interface{}
		expected int
	}{
		{name: "all", args: nil, expected: 6},
		{name: "diagnostics", args: map[string]interface{}{"category": "diagnostics"}, expected: 2},
		{name: "workflow", args: map[string]interface{}{"category": "workflow"}, expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.call(t, "list_tool_schemas", tt.args)
			require.True(t, res.Success)

			var list SchemaList
			require.NoError(t, json.Unmarshal(res.Data, &list))
			assert.Equal(t, tt.expected, list.Count)
			assert.Len(t, list.Tools, tt.expected)
		})
	}
}

func TestGetToolSchema(t *testing.T) {
	env := newTestEnv(t)

	t.Run("found", func(t *testing.T) {
		res := env.call(t, "get_tool_schema", map[string]interface{}{"name": "get_metrics"})
		require.True(t, res.Success)

		var schema schemas.ToolSchema
		require.NoError(t, json.Unmarshal(res.Data, &schema))
		assert.Equal(t, "get_metrics", schema.Name)
		assert.Equal(t, schemas.CategoryDiagnostics, schema.Category)
	})

	t.Run("not found", func(t *testing.T) {
		res := env.call(t, "get_tool_schema", map[string]interface{}{"name": "missing"})
		assert.False(t, res.Success)
		require.NotNil(t, res.Error)
		assert.Equal(t, errors.CodeToolNotFound, res.Error.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		res := env.call(t, "get_tool_schema", map[string]interface{}{})
		assert.False(t, res.Success)
		require.NotNil(t, res.Error)
		assert.Equal(t, errors.CodeValidationFailed, res.Error.Code)

		count, err := testutil.GatherAndCount(env.deps.Prometheus.Registry(), "mcp_tool_validation_failures_total")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("unknown parameter", func(t *testing.T) {
		res := env.call(t, "get_tool_schema", map[string]interface{}{"name": "get_metrics", "verbose": true})
		assert.False(t, res.Success)
		require.NotNil(t, res.Error)
		assert.Equal(t, errors.CodeValidationFailed, res.Error.Code)
		assert.NotNil(t, res.Error.Details)
	})
}

func TestValidateToolParameters(t *testing.T) {
	env := newTestEnv(t)

	deploy, err := schemas.NewToolSchema("deploy", "Deploy an image", map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"image":    map[string]interface{}{"type": "string"},
			"replicas": map[string]interface{}{"type": "integer", "minimum": 1},
		},
		"required": []interface{}{"image"},
	})
	require.NoError(t, err)
	require.NoError(t, env.deps.Registry.Register(deploy))

	tests := []struct {
		name      string
		params    map[string]interface{}
		valid     bool
		firstCode errors.ErrorCode
	}{
		{name: "valid", params: map[string]interface{}{"image": "nginx", "replicas": 2}, valid: true},
		{name: "missing image", params: map[string]interface{}{}, firstCode: errors.CodeMissingParameter},
		{name: "wrong type", params: map[string]interface{}{"image": 42}, firstCode: errors.CodeTypeMismatch},
		{name: "below minimum", params: map[string]interface{}{"image": "nginx", "replicas": 0}, firstCode: errors.CodeInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.call(t, "validate_tool_parameters", map[string]interface{}{
				"tool":   "deploy",
				"params": tt.params,
			})
			require.True(t, res.Success)

			var result validators.ValidationResult
			require.NoError(t, json.Unmarshal(res.Data, &result))
			assert.Equal(t, tt.valid, result.Valid)
			if !tt.valid {
				require.NotEmpty(t, result.Errors)
				assert.Equal(t, tt.firstCode, result.Errors[0].Code)
			}
		})
	}
}

func TestValidateRequest(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		payload string
		valid   bool
	}{
		{name: "tools list", payload: `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, valid: true},
		{name: "wrong version", payload: `{"jsonrpc":"1.0","id":1,"method":"tools/list"}`},
		{name: "not json", payload: `{"jsonrpc":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.call(t, "validate_request", map[string]interface{}{"payload": tt.payload})
			require.True(t, res.Success)

			var result validators.ValidationResult
			require.NoError(t, json.Unmarshal(res.Data, &result))
			assert.Equal(t, tt.valid, result.Valid)
		})
	}
}

func TestGetMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.call(t, "list_tool_schemas", nil)

	t.Run("prometheus text", func(t *testing.T) {
		res := env.call(t, "get_metrics", map[string]interface{}{
			"metric_names": []interface{}{"mcp_tool_calls_total"},
		})
		require.True(t, res.Success)

		var export MetricsExport
		require.NoError(t, json.Unmarshal(res.Data, &export))
		assert.Equal(t, "prometheus", export.Source)
		assert.Equal(t, 1, export.FamilyCount)
		assert.Contains(t, export.Body, `mcp_tool_calls_total{status="success",tool="list_tool_schemas"} 1`)
	})

	t.Run("json", func(t *testing.T) {
		res := env.call(t, "get_metrics", map[string]interface{}{"format": "json"})
		require.True(t, res.Success)

		var export MetricsExport
		require.NoError(t, json.Unmarshal(res.Data, &export))
		var families []exporters.JSONFamily
		require.NoError(t, json.Unmarshal([]byte(export.Body), &families))
		assert.NotEmpty(t, families)
	})

	t.Run("unknown format", func(t *testing.T) {
		res := env.call(t, "get_metrics", map[string]interface{}{"format": "yaml"})
		assert.False(t, res.Success)
		assert.Equal(t, errors.CodeValidationFailed, res.Error.Code)
	})

	t.Run("otel disabled", func(t *testing.T) {
		res := env.call(t, "get_metrics", map[string]interface{}{"source": "otel"})
		assert.False(t, res.Success)
		assert.Equal(t, errors.CodeNotFound, res.Error.Code)
	})
}

func TestGetMetrics_OTel(t *testing.T) {
	otel := exporters.NewOTelExporter("toolguard-test", zerolog.Nop())
	t.Cleanup(func() { _ = otel.Shutdown(context.Background()) })

	registry := schemas.NewRegistry()
	toolMetrics, err := collectors.NewToolMetricsCollector(collectors.Options{Meter: otel.Meter()}, zerolog.Nop())
	require.NoError(t, err)
	deps := ToolDependencies{
		Registry:    registry,
		Validator:   validators.NewValidator(registry, validators.DefaultOptions(), zerolog.Nop()),
		ToolMetrics: toolMetrics,
		OTel:        otel,
		Logger:      zerolog.Nop(),
	}
	s := server.NewMCPServer("test-server", "1.0.0", server.WithToolCapabilities(true))
	require.NoError(t, RegisterTools(context.Background(), s, deps))
	env := &testEnv{server: s, deps: deps}

	env.call(t, "list_tool_schemas", nil)
	res := env.call(t, "get_metrics", map[string]interface{}{"source": "otel"})
	require.True(t, res.Success)

	var export MetricsExport
	require.NoError(t, json.Unmarshal(res.Data, &export))
	assert.Equal(t, "otel", export.Source)
	assert.Equal(t, exporters.FormatJSON, export.Format)
	assert.Contains(t, export.Body, `"tool.calls"`)
}

func TestGetToolStats(t *testing.T) {
	env := newTestEnv(t)
	env.call(t, "list_tool_schemas", map[string]interface{}{"retryNumber": 2})
	env.call(t, "get_tool_schema", map[string]interface{}{"name": "missing"})

	t.Run("summary", func(t *testing.T) {
		res := env.call(t, "get_tool_stats", nil)
		require.True(t, res.Success)

		var stats ToolStats
		require.NoError(t, json.Unmarshal(res.Data, &stats))
		require.NotNil(t, stats.Summary)
		assert.Equal(t, int64(2), stats.Summary.TotalCalls)
		assert.Equal(t, int64(1), stats.Summary.TotalRetries)
		assert.InDelta(t, 50.0, stats.Summary.OverallSuccessRate, 0.001)
		require.NotNil(t, stats.System)
		assert.Positive(t, stats.System.Goroutines)
	})

	t.Run("single tool", func(t *testing.T) {
		res := env.call(t, "get_tool_stats", map[string]interface{}{"tool": "get_tool_schema"})
		require.True(t, res.Success)

		var stats ToolStats
		require.NoError(t, json.Unmarshal(res.Data, &stats))
		require.NotNil(t, stats.Tool)
		assert.Equal(t, int64(1), stats.Tool.FailedCalls)
		assert.Contains(t, stats.Tool.LastError, "not found")
	})

	t.Run("unknown tool", func(t *testing.T) {
		res := env.call(t, "get_tool_stats", map[string]interface{}{"tool": "never_called"})
		assert.False(t, res.Success)
		assert.Equal(t, errors.CodeNotFound, res.Error.Code)
	})
}

func TestTracingMiddleware_RecordsSpans(t *testing.T) {
	env := newTestEnv(t)

	env.call(t, "list_tool_schemas", nil)
	env.call(t, "get_tool_schema", map[string]interface{}{"name": "missing"})

	spans := env.recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "tool.list_tool_schemas", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, "tool.get_tool_schema", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestChain_Order(t *testing.T) {
	var order []string
	record := func(tag string) Middleware {
		return func(name string, next server.ToolHandlerFunc) server.ToolHandlerFunc {
			return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				order = append(order, tag+":"+name)
				return next(ctx, req)
			}
		}
	}

	handler := Chain("demo", func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		order = append(order, "handler")
		return createToolResult(nil), nil
	}, record("outer"), nil, record("inner"))

	result, err := handler(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, isSuccessResult(result))
	assert.Equal(t, []string{"outer:demo", "inner:demo", "handler"}, order)
}

func TestIsSuccessResult(t *testing.T) {
	tests := []struct {
		name     string
		result   *mcp.CallToolResult
		expected bool
	}{
		{name: "nil", result: nil, expected: false},
		{name: "success", result: createToolResult(map[string]string{"ok": "yes"}), expected: true},
		{name: "error", result: createErrorResult(errors.ToolNotFoundError("x")), expected: false},
		{name: "no text", result: &mcp.CallToolResult{}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isSuccessResult(tt.result))
		})
	}
}

func TestRetryNumber(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]interface{}
		expected int
	}{
		{name: "absent", args: nil, expected: 1},
		{name: "float", args: map[string]interface{}{"retryNumber": float64(3)}, expected: 3},
		{name: "int", args: map[string]interface{}{"retryNumber": 2}, expected: 2},
		{name: "zero", args: map[string]interface{}{"retryNumber": float64(0)}, expected: 1},
		{name: "string", args: map[string]interface{}{"retryNumber": "2"}, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: tt.args}}
			assert.Equal(t, tt.expected, retryNumber(req))
		})
	}
}

func TestResultError(t *testing.T) {
	err := resultError(createErrorResult(errors.ToolNotFoundError("deploy")))
	assert.True(t, errors.IsCode(err, errors.CodeToolNotFound))

	err = resultError(&mcp.CallToolResult{})
	assert.True(t, errors.IsCode(err, errors.CodeToolExecutionFailed))
}
