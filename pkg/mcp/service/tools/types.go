// Package tools defines the built-in MCP tools and the middleware every
// tool handler runs through.
package tools

import (
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
	"github.com/Azure/toolguard/pkg/mcp/infra/telemetry"
	"github.com/Azure/toolguard/pkg/mcp/metrics/collectors"
	"github.com/Azure/toolguard/pkg/mcp/metrics/exporters"
	"github.com/Azure/toolguard/pkg/mcp/validation/schemas"
	"github.com/Azure/toolguard/pkg/mcp/validation/validators"
)

// ToolConfig defines the configuration for a tool
type ToolConfig struct {
	Name        string
	Description string
	Category    schemas.Category

	// Args is a pointer to the argument struct the input schema is reflected from.
	Args interface{}

	Handler func(deps ToolDependencies) server.ToolHandlerFunc
}

// ToolDependencies holds everything a tool handler might need. Only
// Registry and Validator are required.
type ToolDependencies struct {
	Registry       *schemas.Registry
	Validator      *validators.Validator
	ToolMetrics    *collectors.ToolMetricsCollector
	RequestMetrics *collectors.RequestMetricsCollector
	SystemMetrics  *collectors.SystemMetricsCollector
	Prometheus     *exporters.PrometheusExporter
	OTel           *exporters.OTelExporter
	Tracing        *telemetry.TracingManager
	Logger         zerolog.Logger
}

// ToolResult is the JSON document every tool returns as text content
type ToolResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ToolError  `json:"error,omitempty"`
}

// ToolError describes why a tool call failed
type ToolError struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Details interface{}      `json:"details,omitempty"`
}

// RetryArgs is embedded in every argument struct so clients can report
// which attempt a call is.
type RetryArgs struct {
	RetryNumber int `json:"retryNumber,omitempty" jsonschema:"minimum=1,description=Attempt number of this call; values above 1 are counted as retries"`
}

// MarshalJSON renders v, falling back to an encoded error document
func MarshalJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		fallback, _ := json.Marshal(ToolResult{
			Success: false,
			Error:   &ToolError{Code: errors.CodeInternalError, Message: err.Error()},
		})
		return string(fallback)
	}
	return string(data)
}

func createToolResult(data interface{}) *mcp.CallToolResult {
	return textResult(ToolResult{Success: true, Data: data}, false)
}

func createErrorResult(err error) *mcp.CallToolResult {
	te := &ToolError{Code: errors.CodeOf(err), Message: err.Error()}
	var rich *errors.RichError
	if stderrors.As(err, &rich) {
		te.Message = rich.Message
		if len(rich.Context) > 0 {
			te.Details = rich.Context
		}
	}
	return textResult(ToolResult{Success: false, Error: te}, true)
}

func createValidationErrorResult(result *validators.ValidationResult) *mcp.CallToolResult {
	message := "parameter validation failed"
	var rich *errors.RichError
	if stderrors.As(result.Err(), &rich) {
		message = rich.Message
	}
	return textResult(ToolResult{
		Success: false,
		Error: &ToolError{
			Code:    errors.CodeValidationFailed,
			Message: message,
			Details: result.Errors,
		},
	}, true)
}

func textResult(result ToolResult, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: MarshalJSON(result),
			},
		},
		IsError: isError,
	}
}

// isSuccessResult checks if a result indicates success
func isSuccessResult(result *mcp.CallToolResult) bool {
	if result == nil {
		return false
	}

	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return strings.Contains(textContent.Text, `"success":true`)
		}
	}
	return false
}

// resultError extracts the ToolError of an unsuccessful result
func resultError(result *mcp.CallToolResult) error {
	if result != nil {
		for _, content := range result.Content {
			textContent, ok := content.(mcp.TextContent)
			if !ok {
				continue
			}
			var decoded ToolResult
			if json.Unmarshal([]byte(textContent.Text), &decoded) == nil && decoded.Error != nil {
				return errors.NewError().
					Code(decoded.Error.Code).
					Type(errors.ErrTypeTool).
					Message(decoded.Error.Message).
					Build()
			}
		}
	}
	return errors.NewError().
		Code(errors.CodeToolExecutionFailed).
		Type(errors.ErrTypeTool).
		Message("tool returned an unsuccessful result").
		Build()
}

// retryNumber reads the retryNumber argument, defaulting to 1
func retryNumber(req mcp.CallToolRequest) int {
	if args := req.GetArguments(); args != nil {
		switch rn := args["retryNumber"].(type) {
		case float64:
			if rn >= 1 {
				return int(rn)
			}
		case int:
			if rn >= 1 {
				return rn
			}
		case json.Number:
			if n, err := rn.Int64(); err == nil && n >= 1 {
				return int(n)
			}
		}
	}
	return 1
}
