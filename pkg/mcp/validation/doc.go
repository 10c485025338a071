// Package validation is the public entry point for tool schema validation.
//
// It re-exports the schema type and the registry functions from the
// schemas sub-package, and the two validation entry points from the
// validators sub-package:
//
//	schema, err := schemas.FromArgs("build_image", "Build an image", &BuildArgs{})
//	if err != nil {
//		return err
//	}
//	if err := validation.RegisterToolSchema(schema); err != nil {
//		return err
//	}
//
//	result := validation.ValidateToolParameters("build_image", params)
//	if !result.Valid {
//		for _, e := range result.Errors {
//			fmt.Printf("%s: %s\n", e.Field, e.Message)
//		}
//	}
//
// ValidateRequest checks a raw JSON-RPC 2.0 envelope before it reaches the
// MCP server, including the arguments of tools/call requests.
//
// The functions operate on the default registry and the default validator.
// Servers that need their own instances use schemas.NewRegistry and
// validators.NewValidator directly.
package validation
