package transport

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// StdioTransport serves MCP over newline-delimited JSON-RPC on a reader and writer
type StdioTransport struct {
	in     io.Reader
	out    io.Writer
	logger zerolog.Logger
}

// NewStdioTransport creates a stdio transport on os.Stdin and os.Stdout
func NewStdioTransport(logger zerolog.Logger) *StdioTransport {
	return NewStdioTransportWithIO(os.Stdin, os.Stdout, logger)
}

// NewStdioTransportWithIO creates a stdio transport on in and out
func NewStdioTransportWithIO(in io.Reader, out io.Writer, logger zerolog.Logger) *StdioTransport {
	return &StdioTransport{
		in:     in,
		out:    out,
		logger: logger.With().Str("transport", "stdio").Logger(),
	}
}

// Serve implements the Transport interface
func (t *StdioTransport) Serve(ctx context.Context, mcpServer *server.MCPServer) error {
	stdio := server.NewStdioServer(mcpServer)
	stdio.SetErrorLogger(log.New(t.logger, "", 0))

	t.logger.Info().Msg("Starting stdio transport")
	err := stdio.Listen(ctx, t.in, t.out)
	t.logger.Info().Msg("Stdio transport stopped")
	return err
}
