// Package http provides the HTTP transport: a JSON-RPC bridge to MCP plus
// REST endpoints for schemas, validation and metrics.
package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/Azure/toolguard/pkg/mcp/metrics/collectors"
	"github.com/Azure/toolguard/pkg/mcp/metrics/exporters"
	"github.com/Azure/toolguard/pkg/mcp/validation/schemas"
	"github.com/Azure/toolguard/pkg/mcp/validation/validators"
)

const (
	defaultPort        = 8080
	defaultMetricsPath = "/metrics"
	corsMaxAge         = 300
)

// Options configures a Handler. Registry and Validator are required; the
// metrics endpoints are only mounted when their exporter is set.
type Options struct {
	Name    string
	Version string

	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MetricsPath     string

	Registry       *schemas.Registry
	Validator      *validators.Validator
	Prometheus     *exporters.PrometheusExporter
	OTel           *exporters.OTelExporter
	RequestMetrics *collectors.RequestMetricsCollector
	ToolMetrics    *collectors.ToolMetricsCollector
	SystemMetrics  *collectors.SystemMetricsCollector
	TracerProvider oteltrace.TracerProvider
}

// Handler implements HTTP transport for MCP with JSON-RPC bridge
type Handler struct {
	opts    Options
	logger  zerolog.Logger
	started time.Time

	mu        sync.RWMutex // protects mcpServer
	mcpServer *server.MCPServer

	handlerOnce sync.Once
	handler     http.Handler
}

// NewHandler creates a new HTTP handler
func NewHandler(opts Options, logger zerolog.Logger) *Handler {
	if opts.Port == 0 {
		opts.Port = defaultPort
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = defaultMetricsPath
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 120 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}
	if opts.Validator == nil {
		opts.Validator = validators.Default()
	}
	if opts.Registry == nil {
		opts.Registry = schemas.DefaultRegistry()
	}

	return &Handler{
		opts:    opts,
		logger:  logger.With().Str("component", "http_handler").Logger(),
		started: time.Now(),
	}
}

// Addr is the listen address
func (h *Handler) Addr() string {
	return net.JoinHostPort(h.opts.Host, strconv.Itoa(h.opts.Port))
}

// SetServer attaches the MCP server that /rpc forwards to
func (h *Handler) SetServer(mcpServer *server.MCPServer) {
	h.mu.Lock()
	h.mcpServer = mcpServer
	h.mu.Unlock()
}

func (h *Handler) server() *server.MCPServer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.mcpServer
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Router().ServeHTTP(w, r)
}

// Router returns the full handler stack, building it on first use
func (h *Handler) Router() http.Handler {
	h.handlerOnce.Do(func() {
		router := chi.NewRouter()
		h.setupMiddlewareChain(router)
		h.setupRoutes(router)

		var handler http.Handler = router
		if h.opts.TracerProvider != nil {
			handler = otelhttp.NewHandler(router, "toolguard.http",
				otelhttp.WithTracerProvider(h.opts.TracerProvider),
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return r.Method + " " + r.URL.Path
				}))
		}
		h.handler = handler
	})
	return h.handler
}

// Serve starts the HTTP server with MCP endpoints
func (h *Handler) Serve(ctx context.Context, mcpServer *server.MCPServer) error {
	h.SetServer(mcpServer)

	listener, err := net.Listen("tcp", h.Addr())
	if err != nil {
		return err
	}
	return h.ServeListener(ctx, listener)
}

// ServeListener serves on an existing listener until ctx is done
func (h *Handler) ServeListener(ctx context.Context, listener net.Listener) error {
	h.logger.Info().Str("addr", listener.Addr().String()).Msg("Starting HTTP transport with MCP endpoints")

	httpServer := &http.Server{
		Handler:      h.Router(),
		ReadTimeout:  h.opts.ReadTimeout,
		WriteTimeout: h.opts.WriteTimeout,
		IdleTimeout:  h.opts.IdleTimeout,
	}

	transportDone := make(chan error, 1)
	go func() {
		transportDone <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		h.logger.Info().Msg("Shutting down HTTP transport")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.opts.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-transportDone:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			h.logger.Error().Err(err).Msg("HTTP transport stopped with error")
			return err
		}
		h.logger.Info().Msg("HTTP transport stopped gracefully")
		return nil
	}
}

func (h *Handler) setupMiddlewareChain(router chi.Router) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(h.setupCORS())
	router.Use(h.loggingMiddleware)
	if h.opts.RequestMetrics != nil {
		router.Use(h.opts.RequestMetrics.Instrument)
	}
}

func (h *Handler) setupRoutes(router chi.Router) {
	router.Post("/rpc", h.handleRPC)
	router.Get("/healthz", h.handleHealth)
	router.Get("/readyz", h.handleReady)
	router.Get("/", h.handleRoot)
	if h.opts.Prometheus != nil {
		router.Handle(h.opts.MetricsPath, h.opts.Prometheus.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/tools/schemas", h.handleListSchemas)
		r.Get("/tools/{tool}/schema", h.handleGetSchema)
		r.Post("/tools/{tool}/validate", h.handleValidateParams)
		r.Post("/requests/validate", h.handleValidateRequest)
		r.Get("/metrics", h.handleMetrics)
		r.Get("/metrics/otel", h.handleOTelMetrics)
		r.Get("/stats", h.handleStats)
	})
}

// setupCORS creates CORS middleware. A wildcard origin disables credentials.
func (h *Handler) setupCORS() func(http.Handler) http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins:   h.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	}

	if len(h.opts.CORSOrigins) == 0 || (len(h.opts.CORSOrigins) == 1 && h.opts.CORSOrigins[0] == "*") {
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false
	}

	return cors.Handler(corsOptions)
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request completed")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

// handleHealth handles liveness probes
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": time.Since(h.started).Seconds(),
		"tools":          h.opts.Registry.Len(),
	})
}

// handleReady reports ready once an MCP server is attached and tools are registered
func (h *Handler) handleReady(w http.ResponseWriter, _ *http.Request) {
	response := map[string]interface{}{
		"ready":     true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	switch {
	case h.server() == nil:
		response["ready"] = false
		response["reason"] = "MCP server not initialized"
	case h.opts.Registry.Len() == 0:
		response["ready"] = false
		response["reason"] = "no tool schemas registered"
	}

	status := http.StatusOK
	if response["ready"] == false {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, response)
}

// handleRoot lists the endpoints
func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	endpoints := map[string]string{
		"/rpc":                          "JSON-RPC bridge to MCP",
		"/healthz":                      "Liveness probe",
		"/readyz":                       "Readiness probe",
		"/api/v1/tools/schemas":         "Registered tool schemas",
		"/api/v1/tools/{tool}/schema":   "Schema of one tool",
		"/api/v1/tools/{tool}/validate": "Validate tool parameters",
		"/api/v1/requests/validate":     "Validate a JSON-RPC request",
		"/api/v1/metrics":               "Export metrics",
		"/api/v1/metrics/otel":          "Export OpenTelemetry metrics",
		"/api/v1/stats":                 "Tool, request and runtime statistics",
	}
	if h.opts.Prometheus != nil {
		endpoints[h.opts.MetricsPath] = "Prometheus scrape endpoint"
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":      h.opts.Name,
		"version":   h.opts.Version,
		"endpoints": endpoints,
	})
}

func readBody(r *http.Request, limit int) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r.Body)
	}
	// One byte past the limit lets the validator report the request as too large.
	return io.ReadAll(io.LimitReader(r.Body, int64(limit)+1))
}
