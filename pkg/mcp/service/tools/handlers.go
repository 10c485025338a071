package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
	"github.com/Azure/toolguard/pkg/mcp/metrics/collectors"
	"github.com/Azure/toolguard/pkg/mcp/metrics/exporters"
	"github.com/Azure/toolguard/pkg/mcp/validation/schemas"
)

// ListSchemasArgs are the arguments of list_tool_schemas
type ListSchemasArgs struct {
	RetryArgs
	Category string `json:"category,omitempty" jsonschema:"enum=workflow,enum=utility,enum=diagnostics,description=Only list tools of this category"`
}

// GetSchemaArgs are the arguments of get_tool_schema
type GetSchemaArgs struct {
	RetryArgs
	Name string `json:"name" jsonschema:"required,minLength=1,description=Name of the registered tool"`
}

// ValidateParamsArgs are the arguments of validate_tool_parameters
type ValidateParamsArgs struct {
	RetryArgs
	Tool   string                 `json:"tool" jsonschema:"required,minLength=1,description=Tool whose schema the parameters are checked against"`
	Params map[string]interface{} `json:"params,omitempty" jsonschema:"description=Parameters to check"`
}

// ValidateRequestArgs are the arguments of validate_request
type ValidateRequestArgs struct {
	RetryArgs
	Payload string `json:"payload" jsonschema:"required,description=Raw JSON-RPC request document"`
}

// GetMetricsArgs are the arguments of get_metrics
type GetMetricsArgs struct {
	RetryArgs
	Source       string   `json:"source,omitempty" jsonschema:"enum=prometheus,enum=otel,description=Exporter to read from (default prometheus)"`
	Format       string   `json:"format,omitempty" jsonschema:"enum=prometheus,enum=openmetrics,enum=json,description=Output format (default prometheus)"`
	MetricNames  []string `json:"metric_names,omitempty" jsonschema:"maxItems=100,description=Only export these metric families"`
	IncludeHelp  bool     `json:"include_help,omitempty" jsonschema:"description=Keep HELP text in the output"`
	IncludeEmpty bool     `json:"include_empty,omitempty" jsonschema:"description=Keep series without observations"`
}

// ToolStatsArgs are the arguments of get_tool_stats
type ToolStatsArgs struct {
	RetryArgs
	Tool string `json:"tool,omitempty" jsonschema:"description=Only report this tool"`
}

// SchemaList is the data returned by list_tool_schemas
type SchemaList struct {
	Count int                   `json:"count"`
	Tools []*schemas.ToolSchema `json:"tools"`
}

// MetricsExport is the data returned by get_metrics
type MetricsExport struct {
	*exporters.ExportResult
	Source string `json:"source"`
	Body   string `json:"body"`
}

// ToolStats is the data returned by get_tool_stats
type ToolStats struct {
	Summary  *collectors.MetricsSummary         `json:"summary,omitempty"`
	Tool     *collectors.ToolMetrics            `json:"tool,omitempty"`
	Requests map[string]collectors.RequestStats `json:"requests,omitempty"`
	System   *collectors.SystemSnapshot         `json:"system,omitempty"`
}

// bindArgs decodes the call arguments into args
func bindArgs(req mcp.CallToolRequest, args interface{}) error {
	raw := req.GetArguments()
	if raw == nil {
		raw = map[string]interface{}{}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return errors.InvalidRequestError(errors.CodeInvalidParameter, err.Error())
	}
	if err := json.Unmarshal(data, args); err != nil {
		return errors.InvalidRequestError(errors.CodeTypeMismatch, err.Error())
	}
	return nil
}

func listToolSchemasHandler(deps ToolDependencies) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ListSchemasArgs
		if err := bindArgs(req, &args); err != nil {
			return createErrorResult(err), nil
		}

		list := SchemaList{Tools: []*schemas.ToolSchema{}}
		for _, s := range deps.Registry.List() {
			if args.Category != "" && string(s.Category) != args.Category {
				continue
			}
			list.Tools = append(list.Tools, s)
		}
		list.Count = len(list.Tools)
		return createToolResult(list), nil
	}
}

func getToolSchemaHandler(deps ToolDependencies) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GetSchemaArgs
		if err := bindArgs(req, &args); err != nil {
			return createErrorResult(err), nil
		}
		if args.Name == "" {
			return createErrorResult(errors.MissingParameterError("name")), nil
		}

		schema, err := deps.Registry.Get(args.Name)
		if err != nil {
			return createErrorResult(err), nil
		}
		return createToolResult(schema), nil
	}
}

func validateToolParametersHandler(deps ToolDependencies) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ValidateParamsArgs
		if err := bindArgs(req, &args); err != nil {
			return createErrorResult(err), nil
		}
		if args.Tool == "" {
			return createErrorResult(errors.MissingParameterError("tool")), nil
		}

		result := deps.Validator.ValidateToolParameters(args.Tool, args.Params)
		if deps.ToolMetrics != nil && !result.Valid {
			if first := result.FirstError(); first != nil {
				deps.ToolMetrics.RecordValidationFailure(args.Tool, string(first.Code))
			}
		}
		return createToolResult(result), nil
	}
}

func validateRequestHandler(deps ToolDependencies) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ValidateRequestArgs
		if err := bindArgs(req, &args); err != nil {
			return createErrorResult(err), nil
		}

		result := deps.Validator.ValidateRequest([]byte(args.Payload))
		if deps.RequestMetrics != nil {
			deps.RequestMetrics.RecordValidation(result)
		}
		return createToolResult(result), nil
	}
}

func getMetricsHandler(deps ToolDependencies) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GetMetricsArgs
		if err := bindArgs(req, &args); err != nil {
			return createErrorResult(err), nil
		}

		var exporter exporters.MetricsExporter
		switch args.Source {
		case "", "prometheus":
			if deps.Prometheus != nil {
				exporter = deps.Prometheus
			}
		case "otel":
			if deps.OTel != nil {
				exporter = deps.OTel
			}
			if args.Format == "" {
				args.Format = exporters.FormatJSON
			}
		default:
			return createErrorResult(errors.InvalidParameterError("source", "unknown metrics source", args.Source)), nil
		}
		if exporter == nil {
			return createErrorResult(errors.NewError().
				Code(errors.CodeNotFound).
				Type(errors.ErrTypeMetrics).
				Messagef("metrics source %q is not enabled", args.Source).
				Build()), nil
		}

		result, err := exporter.Export(ctx, exporters.ExportRequest{
			Format:       args.Format,
			MetricNames:  args.MetricNames,
			IncludeHelp:  args.IncludeHelp,
			IncludeEmpty: args.IncludeEmpty,
		})
		if err != nil {
			return createErrorResult(err), nil
		}
		return createToolResult(MetricsExport{
			ExportResult: result,
			Source:       exporter.Name(),
			Body:         string(result.Body),
		}), nil
	}
}

func getToolStatsHandler(deps ToolDependencies) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ToolStatsArgs
		if err := bindArgs(req, &args); err != nil {
			return createErrorResult(err), nil
		}

		var stats ToolStats
		if deps.ToolMetrics != nil {
			if args.Tool != "" {
				stats.Tool = deps.ToolMetrics.Stats(args.Tool)
				if stats.Tool == nil {
					return createErrorResult(errors.NewError().
						Code(errors.CodeNotFound).
						Type(errors.ErrTypeNotFound).
						Messagef("no calls recorded for tool %s", args.Tool).
						Context("tool", args.Tool).
						Build()), nil
				}
			} else {
				summary := deps.ToolMetrics.Summary()
				stats.Summary = &summary
			}
		}
		if deps.RequestMetrics != nil {
			stats.Requests = deps.RequestMetrics.Stats()
		}
		if deps.SystemMetrics != nil {
			snap, ok := deps.SystemMetrics.Snapshot()
			if !ok {
				snap = deps.SystemMetrics.Sample()
			}
			stats.System = &snap
		}
		return createToolResult(stats), nil
	}
}
