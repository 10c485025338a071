package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
	"github.com/Azure/toolguard/pkg/mcp/validation/schemas"
)

const schemaVersion = "1.0.0"

var toolConfigs = []ToolConfig{
	{
		Name:        "list_tool_schemas",
		Description: "List the input schemas of every registered tool",
		Category:    schemas.CategoryUtility,
		Args:        &ListSchemasArgs{},
		Handler:     listToolSchemasHandler,
	},
	{
		Name:        "get_tool_schema",
		Description: "Get the input schema of a registered tool",
		Category:    schemas.CategoryUtility,
		Args:        &GetSchemaArgs{},
		Handler:     getToolSchemaHandler,
	},
	{
		Name:        "validate_tool_parameters",
		Description: "Check parameters against the input schema of a registered tool without calling it",
		Category:    schemas.CategoryWorkflow,
		Args:        &ValidateParamsArgs{},
		Handler:     validateToolParametersHandler,
	},
	{
		Name:        "validate_request",
		Description: "Check a raw JSON-RPC request document against the MCP request rules",
		Category:    schemas.CategoryWorkflow,
		Args:        &ValidateRequestArgs{},
		Handler:     validateRequestHandler,
	},
	{
		Name:        "get_metrics",
		Description: "Export the collected metrics as Prometheus text, OpenMetrics or JSON",
		Category:    schemas.CategoryDiagnostics,
		Args:        &GetMetricsArgs{},
		Handler:     getMetricsHandler,
	},
	{
		Name:        "get_tool_stats",
		Description: "Report call counts, success and retry rates per tool with request and runtime statistics",
		Category:    schemas.CategoryDiagnostics,
		Args:        &ToolStatsArgs{},
		Handler:     getToolStatsHandler,
	},
}

// Configs returns a copy of the built-in tool table
func Configs() []ToolConfig {
	out := make([]ToolConfig, len(toolConfigs))
	copy(out, toolConfigs)
	return out
}

// GetToolConfig looks up a built-in tool by name
func GetToolConfig(name string) (ToolConfig, error) {
	for _, config := range toolConfigs {
		if config.Name == name {
			return config, nil
		}
	}
	return ToolConfig{}, errors.ToolNotFoundError(name)
}

// BuildSchema reflects the input schema of config
func BuildSchema(config ToolConfig) (*schemas.ToolSchema, error) {
	schema, err := schemas.FromArgs(config.Name, config.Description, config.Args)
	if err != nil {
		return nil, err
	}
	schema.Version = schemaVersion
	schema.Category = config.Category
	return schema, nil
}

// BuiltinSchemas returns the schemas of every built-in tool
func BuiltinSchemas() ([]*schemas.ToolSchema, error) {
	out := make([]*schemas.ToolSchema, 0, len(toolConfigs))
	for _, config := range toolConfigs {
		schema, err := BuildSchema(config)
		if err != nil {
			return nil, err
		}
		out = append(out, schema)
	}
	return out, nil
}

// RegisterTools registers all tools based on their configurations
func RegisterTools(ctx context.Context, mcpServer *server.MCPServer, deps ToolDependencies) error {
	for _, config := range toolConfigs {
		if err := RegisterTool(ctx, mcpServer, config, deps); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", config.Name, err)
		}
	}
	return nil
}

// RegisterTool stores the schema of config in the registry and adds the
// tool to mcpServer behind the default middlewares. A stored schema with
// the same name is replaced.
func RegisterTool(ctx context.Context, mcpServer *server.MCPServer, config ToolConfig, deps ToolDependencies) error {
	if err := validateDependencies(config, deps); err != nil {
		return err
	}

	schema, err := BuildSchema(config)
	if err != nil {
		return err
	}
	if err := deps.Registry.Replace(ctx, schema); err != nil {
		return err
	}

	handler := Chain(config.Name, config.Handler(deps), DefaultMiddlewares(deps)...)
	mcpServer.AddTool(schema.MCPTool(), handler)

	deps.Logger.Info().
		Str("name", config.Name).
		Str("category", string(config.Category)).
		Msg("Registered tool")
	return nil
}

func validateDependencies(config ToolConfig, deps ToolDependencies) error {
	if config.Handler == nil {
		return errors.MissingParameterError("handler")
	}
	if config.Args == nil {
		return errors.MissingParameterError("args")
	}
	if deps.Registry == nil {
		return errors.MissingParameterError("registry")
	}
	if deps.Validator == nil {
		return errors.MissingParameterError("validator")
	}
	return nil
}
