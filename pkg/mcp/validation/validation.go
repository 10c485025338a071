package validation

import (
	"github.com/Azure/toolguard/pkg/mcp/validation/schemas"
	"github.com/Azure/toolguard/pkg/mcp/validation/validators"
)

// ToolSchema describes a tool and the JSON Schema its parameters must satisfy
type ToolSchema = schemas.ToolSchema

// RegisterToolSchema registers schema in the default registry
func RegisterToolSchema(schema *ToolSchema) error {
	return schemas.RegisterToolSchema(schema)
}

// GetToolSchema returns the schema registered under name
func GetToolSchema(name string) (*ToolSchema, error) {
	return schemas.GetToolSchema(name)
}

// ListToolSchemas returns every registered schema sorted by name
func ListToolSchemas() []*ToolSchema {
	return schemas.ListToolSchemas()
}

// ValidateRequest validates a JSON-RPC 2.0 MCP request envelope
func ValidateRequest(payload []byte) *validators.ValidationResult {
	return validators.ValidateRequest(payload)
}

// ValidateToolParameters validates params against the schema registered for toolName
func ValidateToolParameters(toolName string, params map[string]interface{}) *validators.ValidationResult {
	return validators.ValidateToolParameters(toolName, params)
}
