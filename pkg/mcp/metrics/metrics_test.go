package metrics_test

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azure/toolguard/pkg/mcp/metrics"
	"github.com/Azure/toolguard/pkg/mcp/metrics/collectors"
	"github.com/Azure/toolguard/pkg/mcp/metrics/exporters"
)

func TestExportedSurface(t *testing.T) {
	entries, err := os.ReadDir(".")
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

	assert.Equal(t, []string{
		"MetricsExporter",
		"PrometheusExporter",
		"RequestMetricsCollector",
		"SystemMetricsCollector",
		"ToolMetricsCollector",
	}, names)
}

func TestAliasesInteroperate(t *testing.T) {
	var tools *metrics.ToolMetricsCollector
	tools, err := collectors.NewToolMetricsCollector(collectors.Options{}, zerolog.Nop())
	require.NoError(t, err)

	var requests *metrics.RequestMetricsCollector = collectors.NewRequestMetricsCollector(collectors.Options{})
	var system *metrics.SystemMetricsCollector = collectors.NewSystemMetricsCollector(collectors.Options{}, 0, zerolog.Nop())

	var prom *metrics.PrometheusExporter
	prom, err = exporters.NewPrometheusExporter(exporters.PrometheusOptions{}, zerolog.Nop(), tools, requests, system)
	require.NoError(t, err)

	tools.RecordCall("build", time.Millisecond, nil, 1)

	var exporter metrics.MetricsExporter = prom
	res, err := exporter.Export(context.Background(), exporters.ExportRequest{MetricNames: []string{"mcp_tool_calls_total"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FamilyCount)
	assert.Contains(t, string(res.Body), `tool="build"`)
}
