package transport

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
	"github.com/Azure/toolguard/pkg/mcp/service/transport/http"
)

type fakeTransport struct {
	err    error
	served bool
}

func (f *fakeTransport) Serve(context.Context, *server.MCPServer) error {
	f.served = true
	return f.err
}

func TestRegistry_Start(t *testing.T) {
	boom := stderrors.New("listen failed")

	tests := []struct {
		name      string
		transport *fakeTransport
		start     TransportType
		check     func(t *testing.T, err error)
	}{
		{
			name:      "clean stop",
			transport: &fakeTransport{},
			start:     TransportTypeStdio,
			check:     func(t *testing.T, err error) { assert.NoError(t, err) },
		},
		{
			name:      "context cancelled",
			transport: &fakeTransport{err: context.Canceled},
			start:     TransportTypeStdio,
			check:     func(t *testing.T, err error) { assert.ErrorIs(t, err, context.Canceled) },
		},
		{
			name:      "failure is wrapped",
			transport: &fakeTransport{err: boom},
			start:     TransportTypeStdio,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, boom)
				assert.True(t, errors.IsCode(err, errors.CodeNetworkError))
			},
		},
		{
			name:      "unsupported",
			transport: &fakeTransport{},
			start:     "websocket",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUnsupportedTransport)
				assert.True(t, errors.IsCode(err, errors.CodeInvalidParameter))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry(zerolog.Nop())
			registry.Register(TransportTypeStdio, tt.transport)

			err := registry.Start(context.Background(), tt.start, server.NewMCPServer("test-server", "1.0.0"))
			tt.check(t, err)
			assert.Equal(t, tt.start == TransportTypeStdio, tt.transport.served)
		})
	}
}

func TestRegistry_Types(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())
	registry.Register(TransportTypeStdio, &fakeTransport{})
	registry.Register(TransportTypeHTTP, NewHTTPTransport(http.Options{}, zerolog.Nop()))

	assert.Equal(t, []TransportType{TransportTypeHTTP, TransportTypeStdio}, registry.Types())
}

func TestStdioTransport_Serve(t *testing.T) {
	mcpServer := server.NewMCPServer("test-server", "1.0.0", server.WithToolCapabilities(true))

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	transport := NewStdioTransportWithIO(inR, outW, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- transport.Serve(ctx, mcpServer) }()

	_, err := io.WriteString(inW, `{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n")
	require.NoError(t, err)

	line, err := bufio.NewReader(outR).ReadBytes('\n')
	require.NoError(t, err)

	var resp struct {
		ID     int             `json:"id"`
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal(line, &resp))
	assert.Equal(t, 1, resp.ID)
	assert.NotNil(t, resp.Result)

	cancel()
	_ = inW.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stdio transport did not stop")
	}
}
