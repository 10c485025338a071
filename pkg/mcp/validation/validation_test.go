package validation_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
	"github.com/Azure/toolguard/pkg/mcp/validation"
	"github.com/Azure/toolguard/pkg/mcp/validation/schemas"
)

func exportedIdentifiers(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	fset := token.NewFileSet()
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, name, nil, 0)
		require.NoError(t, err)

		for _, decl := range file.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				if d.Recv == nil && d.Name.IsExported() {
					names = append(names, d.Name.Name)
				}
			case *ast.GenDecl:
				for _, spec := range d.Specs {
					switch s := spec.(type) {
					case *ast.TypeSpec:
						if s.Name.IsExported() {
							names = append(names, s.Name.Name)
						}
					case *ast.ValueSpec:
						for _, n := range s.Names {
							if n.IsExported() {
								names = append(names, n.Name)
							}
						}
					}
				}
			}
		}
	}
	sort.Strings(names)
	return names
}

func TestExportedSurface(t *testing.T) {
	expected := []string{
		"GetToolSchema",
		"ListToolSchemas",
		"RegisterToolSchema",
		"ToolSchema",
		"ValidateRequest",
		"ValidateToolParameters",
	}
	assert.Equal(t, expected, exportedIdentifiers(t, "."))
}

func TestSurfaceForwards(t *testing.T) {
	previous := schemas.SetDefaultRegistry(schemas.NewRegistry())
	t.Cleanup(func() { schemas.SetDefaultRegistry(previous) })

	var schema *validation.ToolSchema
	schema, err := schemas.NewToolSchema("deploy", "Deploy an app", map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"replicas": map[string]interface{}{"type": "integer"}},
		"required":   []interface{}{"replicas"},
	})
	require.NoError(t, err)

	require.NoError(t, validation.RegisterToolSchema(schema))
	assert.True(t, errors.IsCode(validation.RegisterToolSchema(schema), errors.CodeToolAlreadyRegistered))

	got, err := validation.GetToolSchema("deploy")
	require.NoError(t, err)
	assert.Same(t, schema, got)
	assert.Len(t, validation.ListToolSchemas(), 1)

	_, err = validation.GetToolSchema("missing")
	assert.True(t, errors.IsCode(err, errors.CodeToolNotFound))

	assert.True(t, validation.ValidateToolParameters("deploy", map[string]interface{}{"replicas": 3}).Valid)
	assert.False(t, validation.ValidateToolParameters("deploy", map[string]interface{}{"replicas": "three"}).Valid)

	result := validation.ValidateRequest([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"deploy","arguments":{}}}`))
	require.False(t, result.Valid)
	assert.Equal(t, "params.arguments.replicas", result.FirstError().Field)
}
