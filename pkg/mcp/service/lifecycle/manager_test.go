package lifecycle

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azure/toolguard/pkg/mcp/metrics/collectors"
	"github.com/Azure/toolguard/pkg/mcp/service/transport"
)

type blockingTransport struct{}

func (blockingTransport) Serve(ctx context.Context, _ *server.MCPServer) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestLifecycleManager_StartStopsWithContext(t *testing.T) {
	registry := transport.NewRegistry(zerolog.Nop())
	registry.Register(transport.TransportTypeStdio, blockingTransport{})
	system := collectors.NewSystemMetricsCollector(collectors.Options{}, time.Hour, zerolog.Nop())

	m := NewLifecycleManager(zerolog.Nop(), transport.TransportTypeStdio, registry,
		server.NewMCPServer("test-server", "1.0.0"), system)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := system.Snapshot()
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not stop")
	}
}

func TestLifecycleManager_UnknownTransport(t *testing.T) {
	m := NewLifecycleManager(zerolog.Nop(), transport.TransportTypeHTTP, transport.NewRegistry(zerolog.Nop()),
		server.NewMCPServer("test-server", "1.0.0"), nil)

	assert.ErrorIs(t, m.Start(context.Background()), transport.ErrUnsupportedTransport)
}

func TestLifecycleManager_Shutdown(t *testing.T) {
	var order []string
	boom := stderrors.New("flush failed")

	m := NewLifecycleManager(zerolog.Nop(), transport.TransportTypeStdio, transport.NewRegistry(zerolog.Nop()),
		server.NewMCPServer("test-server", "1.0.0"), nil,
		Closer{Name: "store", Close: func(context.Context) error { order = append(order, "store"); return nil }},
		Closer{Name: "telemetry", Close: func(context.Context) error { order = append(order, "telemetry"); return boom }},
	)

	assert.False(t, m.IsShuttingDown())
	assert.ErrorIs(t, m.Shutdown(context.Background()), boom)
	assert.True(t, m.IsShuttingDown())
	assert.Equal(t, []string{"telemetry", "store"}, order)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Len(t, order, 2)
}
