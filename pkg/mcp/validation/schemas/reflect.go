package schemas

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
)

// FromArgs reflects an argument struct into a tool schema. Required
// properties come from `jsonschema:"required"` tags and unknown
// properties are rejected.
func FromArgs(name, description string, args interface{}) (*ToolSchema, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
	}

	schemaJSON, err := json.Marshal(reflector.Reflect(args))
	if err != nil {
		return nil, errors.InvalidSchemaError(name, err)
	}

	var schemaMap map[string]interface{}
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, errors.InvalidSchemaError(name, err)
	}

	Sanitize(schemaMap)
	if _, ok := schemaMap["properties"]; !ok {
		schemaMap["properties"] = map[string]interface{}{}
	}

	return NewToolSchema(name, description, schemaMap)
}

// Sanitize strips meta-schema keywords that MCP clients reject and adds
// string items to arrays that declare none.
func Sanitize(node map[string]interface{}) {
	delete(node, "$schema")
	delete(node, "$id")
	delete(node, "$dynamicRef")
	delete(node, "$dynamicAnchor")

	if node["type"] == "array" {
		if _, hasItems := node["items"]; !hasItems {
			node["items"] = map[string]interface{}{"type": "string"}
		}
	}

	for _, v := range node {
		switch child := v.(type) {
		case map[string]interface{}:
			Sanitize(child)
		case []interface{}:
			for _, elem := range child {
				if m, ok := elem.(map[string]interface{}); ok {
					Sanitize(m)
				}
			}
		}
	}
}
