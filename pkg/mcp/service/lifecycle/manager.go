// Package lifecycle provides server lifecycle management functionality
package lifecycle

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/Azure/toolguard/pkg/mcp/metrics/collectors"
	"github.com/Azure/toolguard/pkg/mcp/service/transport"
)

// Closer releases one resource on shutdown
type Closer struct {
	Name  string
	Close func(ctx context.Context) error
}

// LifecycleManager handles server startup and shutdown logic
type LifecycleManager struct {
	logger        zerolog.Logger
	transportType transport.TransportType
	transports    *transport.Registry
	mcpServer     *server.MCPServer
	system        *collectors.SystemMetricsCollector
	closers       []Closer

	shutdownMutex  sync.Mutex
	isShuttingDown bool
	startTime      time.Time
}

// NewLifecycleManager creates a new lifecycle manager. Closers run in
// reverse order on shutdown.
func NewLifecycleManager(
	logger zerolog.Logger,
	transportType transport.TransportType,
	transports *transport.Registry,
	mcpServer *server.MCPServer,
	system *collectors.SystemMetricsCollector,
	closers ...Closer,
) *LifecycleManager {
	return &LifecycleManager{
		logger:        logger.With().Str("component", "lifecycle").Logger(),
		transportType: transportType,
		transports:    transports,
		mcpServer:     mcpServer,
		system:        system,
		closers:       closers,
		startTime:     time.Now(),
	}
}

// Start samples runtime statistics and serves the configured transport
// until ctx is done. A cancelled context is a clean stop.
func (m *LifecycleManager) Start(ctx context.Context) error {
	m.startTime = time.Now()
	m.logger.Info().Str("transport", string(m.transportType)).Msg("Starting toolguard MCP server")

	if m.system != nil {
		m.system.Start(ctx)
	}

	err := m.transports.Start(ctx, m.transportType, m.mcpServer)
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Shutdown stops the sampler and runs every closer once
func (m *LifecycleManager) Shutdown(ctx context.Context) error {
	m.shutdownMutex.Lock()
	defer m.shutdownMutex.Unlock()

	if m.isShuttingDown {
		return nil
	}
	m.isShuttingDown = true

	m.logger.Info().Dur("uptime", m.Uptime()).Msg("Shutting down toolguard MCP server")

	if m.system != nil {
		m.system.Stop()
	}

	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		c := m.closers[i]
		if err := c.Close(ctx); err != nil {
			m.logger.Error().Err(err).Str("resource", c.Name).Msg("Failed to close resource")
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// IsShuttingDown reports whether Shutdown has been called
func (m *LifecycleManager) IsShuttingDown() bool {
	m.shutdownMutex.Lock()
	defer m.shutdownMutex.Unlock()
	return m.isShuttingDown
}

// Uptime is the time since Start
func (m *LifecycleManager) Uptime() time.Duration {
	return time.Since(m.startTime)
}
