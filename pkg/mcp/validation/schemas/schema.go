// Package schemas holds tool input schemas and the registry they live in.
package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
)

// Category groups tools for listing
type Category string

const (
	CategoryWorkflow    Category = "workflow"
	CategoryUtility     Category = "utility"
	CategoryDiagnostics Category = "diagnostics"
)

var toolNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]{0,63}$`)

// ToolSchema describes a tool and the JSON Schema its parameters must satisfy.
// A registered schema is shared between callers and must be treated as read-only.
type ToolSchema struct {
	Name         string                 `json:"name" yaml:"name"`
	Description  string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Version      string                 `json:"version,omitempty" yaml:"version,omitempty"`
	Category     Category               `json:"category,omitempty" yaml:"category,omitempty"`
	InputSchema  map[string]interface{} `json:"inputSchema" yaml:"inputSchema"`
	RegisteredAt time.Time              `json:"registeredAt,omitempty" yaml:"registeredAt,omitempty"`

	mu       sync.Mutex
	compiled *jsonschema.Schema
}

// NewToolSchema builds and checks a schema. A nil input schema accepts any object.
func NewToolSchema(name, description string, inputSchema map[string]interface{}) (*ToolSchema, error) {
	if inputSchema == nil {
		inputSchema = map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}

	s := &ToolSchema{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the name, category and input schema, compiling it
func (s *ToolSchema) Validate() error {
	if !toolNamePattern.MatchString(s.Name) {
		return errors.InvalidParameterError("name", "tool names must match "+toolNamePattern.String(), s.Name)
	}

	switch s.Category {
	case "", CategoryWorkflow, CategoryUtility, CategoryDiagnostics:
	default:
		return errors.InvalidParameterError("category", "unknown category", s.Category)
	}

	if s.InputSchema == nil {
		return errors.InvalidSchemaError(s.Name, fmt.Errorf("input schema is required"))
	}
	if t, _ := s.InputSchema["type"].(string); t != "object" {
		return errors.InvalidSchemaError(s.Name, fmt.Errorf("input schema type must be \"object\", got %v", s.InputSchema["type"]))
	}

	_, err := s.Compiled()
	return err
}

// Compiled returns the compiled validator, compiling on first use
func (s *ToolSchema) Compiled() (*jsonschema.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.compiled != nil {
		return s.compiled, nil
	}

	compiled, err := compile(s.Name, s.InputSchema)
	if err != nil {
		return nil, errors.InvalidSchemaError(s.Name, err)
	}
	s.compiled = compiled
	return compiled, nil
}

func compile(name string, input map[string]interface{}) (*jsonschema.Schema, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal input schema: %w", err)
	}

	url := "mem://tools/" + name + ".json"
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// Properties returns the top-level property schemas
func (s *ToolSchema) Properties() map[string]interface{} {
	props, ok := s.InputSchema["properties"].(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return props
}

// RequiredParams returns the sorted top-level required property names
func (s *ToolSchema) RequiredParams() []string {
	var required []string
	switch v := s.InputSchema["required"].(type) {
	case []string:
		required = append(required, v...)
	case []interface{}:
		for _, item := range v {
			if name, ok := item.(string); ok {
				required = append(required, name)
			}
		}
	}
	sort.Strings(required)
	return required
}

// MCPTool converts the schema into the tool definition advertised to MCP clients
func (s *ToolSchema) MCPTool() mcp.Tool {
	return mcp.Tool{
		Name:        s.Name,
		Description: s.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: s.Properties(),
			Required:   s.RequiredParams(),
		},
	}
}

// Clone returns a deep copy without the compiled validator
func (s *ToolSchema) Clone() (*ToolSchema, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out ToolSchema
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
