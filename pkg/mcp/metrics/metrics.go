// Package metrics is the public entry point for tool, request and system
// metrics and their export.
//
// Collectors implement prometheus.Collector and are registered with a
// PrometheusExporter, which renders them for scraping or on demand:
//
//	tools, err := collectors.NewToolMetricsCollector(collectors.Options{}, logger)
//	if err != nil {
//		return err
//	}
//	exporter, err := exporters.NewPrometheusExporter(exporters.PrometheusOptions{}, logger, tools)
//	if err != nil {
//		return err
//	}
//	http.Handle("/metrics", exporter.Handler())
package metrics

import (
	"github.com/Azure/toolguard/pkg/mcp/metrics/collectors"
	"github.com/Azure/toolguard/pkg/mcp/metrics/exporters"
)

// ToolMetricsCollector tracks tool call counts, latencies and retries
type ToolMetricsCollector = collectors.ToolMetricsCollector

// RequestMetricsCollector tracks MCP requests by method and outcome
type RequestMetricsCollector = collectors.RequestMetricsCollector

// SystemMetricsCollector samples Go runtime statistics
type SystemMetricsCollector = collectors.SystemMetricsCollector

// MetricsExporter renders collected metrics on request
type MetricsExporter = exporters.MetricsExporter

// PrometheusExporter exports a Prometheus registry
type PrometheusExporter = exporters.PrometheusExporter
