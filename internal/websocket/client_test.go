package websocket

import (
	"context"
	"testing"

	"github.com/bhandras/delight/rtc/internal/push"
	"github.com/bhandras/delight/rtc/internal/transport"
	"github.com/stretchr/testify/require"
)

func TestToEvent(t *testing.T) {
	ev, err := toEvent(push.TypeLocus, []any{map[string]any{"url": "https://locus/calls/1"}})
	require.NoError(t, err)
	require.Equal(t, push.TypeLocus, ev.Type)
	require.JSONEq(t, `{"url":"https://locus/calls/1"}`, string(ev.Data))

	ev, err = toEvent(push.TypeKMS, []any{`{"kmsMessages":["x"]}`})
	require.NoError(t, err)
	require.JSONEq(t, `{"kmsMessages":["x"]}`, string(ev.Data))

	_, err = toEvent(push.TypeActivity, nil)
	require.Error(t, err)

	_, err = toEvent(push.TypeActivity, []any{"not json"})
	require.Error(t, err)
}

func TestDisconnectError(t *testing.T) {
	require.ErrorIs(t, disconnectError(reasonServerDisconnect), push.ErrClosed)
	require.ErrorIs(t, disconnectError(reasonClientDisconnect), push.ErrClosed)

	err := disconnectError("transport close")
	require.Error(t, err)
	require.NotErrorIs(t, err, push.ErrClosed)
}

func TestConnectError(t *testing.T) {
	require.ErrorIs(t, connectError([]any{"401 unauthorized"}), transport.ErrAuthRequired)

	err := connectError([]any{"dial tcp: connection refused"})
	require.Error(t, err)
	require.NotErrorIs(t, err, transport.ErrAuthRequired)
}

func TestRunRequiresToken(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", transport.NewStaticAuthenticator("", ""), TransportWebSocket)
	err := c.Run(context.Background(), nil)
	require.ErrorIs(t, err, transport.ErrAuthRequired)
	require.False(t, c.IsConnected())
}
