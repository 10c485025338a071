// Package transport handles MCP transport layer concerns
package transport

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
)

// Transport defines the interface for MCP transport implementations
type Transport interface {
	Serve(ctx context.Context, mcpServer *server.MCPServer) error
}

// TransportType represents the type of transport
type TransportType string

const (
	TransportTypeStdio TransportType = "stdio"
	TransportTypeHTTP  TransportType = "http"
)

// ErrUnsupportedTransport is returned when an unsupported transport type is requested
var ErrUnsupportedTransport = errors.NewError().
	Code(errors.CodeInvalidParameter).
	Type(errors.ErrTypeConfiguration).
	Message("unsupported transport type").
	Build()

// Registry holds registered transport implementations
type Registry struct {
	mu         sync.RWMutex
	transports map[TransportType]Transport
	logger     zerolog.Logger
}

// NewRegistry creates a new transport registry
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		transports: make(map[TransportType]Transport),
		logger:     logger.With().Str("component", "transport_registry").Logger(),
	}
}

// Register adds a transport implementation to the registry
func (r *Registry) Register(transportType TransportType, transport Transport) {
	r.mu.Lock()
	r.transports[transportType] = transport
	r.mu.Unlock()

	r.logger.Debug().Str("type", string(transportType)).Msg("Transport registered")
}

// Types lists the registered transport types
func (r *Registry) Types() []TransportType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TransportType, 0, len(r.transports))
	for t := range r.transports {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Start serves mcpServer on the named transport until ctx is done
func (r *Registry) Start(ctx context.Context, transportType TransportType, mcpServer *server.MCPServer) error {
	r.mu.RLock()
	transport, exists := r.transports[transportType]
	r.mu.RUnlock()

	if !exists {
		r.logger.Error().Str("transport_type", string(transportType)).Msg("Unsupported transport type requested")
		return errors.NewError().
			Code(errors.CodeInvalidParameter).
			Type(errors.ErrTypeConfiguration).
			Messagef("unsupported transport type: %s", transportType).
			Context("transport", string(transportType)).
			Cause(ErrUnsupportedTransport).
			Build()
	}

	r.logger.Info().Str("type", string(transportType)).Msg("Starting transport")

	if err := transport.Serve(ctx, mcpServer); err != nil {
		// Context cancellation is a normal stop
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			r.logger.Debug().Str("transport_type", string(transportType)).Msg("Transport stopped due to context cancellation")
			return err
		}

		r.logger.Error().Err(err).Str("transport_type", string(transportType)).Msg("Transport failed")
		return errors.NewError().
			Code(errors.CodeNetworkError).
			Type(errors.ErrTypeNetwork).
			Messagef("%s transport failed", transportType).
			Cause(err).
			Build()
	}
	return nil
}
