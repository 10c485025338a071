package transport

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/Azure/toolguard/pkg/mcp/service/transport/http"
)

// HTTPTransport handles HTTP-based MCP communication
type HTTPTransport struct {
	handler *http.Handler
}

// NewHTTPTransport creates a new HTTP transport
func NewHTTPTransport(opts http.Options, logger zerolog.Logger) *HTTPTransport {
	return &HTTPTransport{
		handler: http.NewHandler(opts, logger),
	}
}

// Handler returns the HTTP handler, for mounting in tests or another server
func (t *HTTPTransport) Handler() *http.Handler {
	return t.handler
}

// Serve implements the Transport interface
func (t *HTTPTransport) Serve(ctx context.Context, mcpServer *server.MCPServer) error {
	return t.handler.Serve(ctx, mcpServer)
}
