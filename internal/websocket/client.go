// Package websocket is a push source over Socket.IO. Each push event type is
// its own Socket.IO event whose first argument is the payload object.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/bhandras/delight/rtc/internal/push"
	"github.com/bhandras/delight/rtc/internal/transport"
	"github.com/bhandras/delight/rtc/pkg/logger"
	socket "github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
)

const (
	defaultPath = "/v1/push"

	// reasonServerDisconnect is reported when the server ends the session
	// on purpose.
	reasonServerDisconnect = "io server disconnect"
	// reasonClientDisconnect is reported after a local Disconnect.
	reasonClientDisconnect = "io client disconnect"
)

// Transport selects the Socket.IO transports to try.
type Transport string

const (
	TransportWebSocket Transport = "websocket"
	TransportPolling   Transport = "polling"
)

// Client is a Socket.IO push source.
type Client struct {
	serverURL string
	path      string
	transport Transport
	auth      transport.Authenticator

	mu        sync.RWMutex
	socket    *socket.Socket
	connected bool
}

var _ push.Source = (*Client)(nil)

// NewClient returns a source for the Socket.IO server at serverURL.
func NewClient(serverURL string, auth transport.Authenticator, tr Transport) *Client {
	return &Client{
		serverURL: serverURL,
		path:      defaultPath,
		transport: tr,
		auth:      auth,
	}
}

// Name implements push.Source.
func (c *Client) Name() string { return "socketio" }

// Run implements push.Source. The token is fetched on every run so a
// reconnect after an auth failure picks up a rotated token.
func (c *Client) Run(ctx context.Context, sink push.Sink) error {
	token, err := c.auth.AccessToken(ctx)
	if err != nil {
		return err
	}

	opts := socket.DefaultOptions()
	opts.SetPath(c.path)
	if c.transport == TransportPolling {
		opts.SetTransports(types.NewSet(socket.Polling, socket.WebSocket))
	} else {
		opts.SetTransports(types.NewSet(socket.WebSocket))
	}
	opts.SetAuth(map[string]any{"token": token})

	sock, err := socket.Connect(c.serverURL, opts)
	if err != nil {
		return fmt.Errorf("connect socket.io: %w", err)
	}
	c.mu.Lock()
	c.socket = sock
	c.mu.Unlock()

	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	sock.On(types.EventName("connect"), func(args ...any) {
		c.setConnected(true)
		logger.Debugf("[push] socket.io connected: %s", sock.Id())
		sink.Connected()
	})
	sock.On(types.EventName("disconnect"), func(args ...any) {
		c.setConnected(false)
		finish(disconnectError(firstString(args)))
	})
	sock.On(types.EventName("connect_error"), func(args ...any) {
		finish(connectError(args))
	})
	for _, t := range push.Types {
		sock.On(types.EventName(t), func(args ...any) {
			ev, err := toEvent(t, args)
			if err != nil {
				logger.Warnf("[push] socket.io %s: %v", t, err)
				return
			}
			sink.Deliver(ev)
		})
	}

	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-done:
	}
	c.close()
	return err
}

// IsConnected reports whether the socket is currently connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	sock := c.socket
	connected := c.connected
	c.mu.RUnlock()

	if connected {
		return true
	}
	return sock != nil && sock.Connected()
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = v
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.socket != nil {
		c.socket.Disconnect()
		c.socket = nil
	}
	c.connected = false
}

// toEvent converts the first event argument to a push event.
func toEvent(t push.Type, args []any) (push.Event, error) {
	if len(args) == 0 || args[0] == nil {
		return push.Event{}, fmt.Errorf("missing payload")
	}
	var data []byte
	switch v := args[0].(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return push.Event{}, fmt.Errorf("encode payload: %w", err)
		}
		data = raw
	}
	if !json.Valid(data) {
		return push.Event{}, fmt.Errorf("payload is not json")
	}
	return push.Event{Type: t, Data: data}, nil
}

// disconnectError classifies a disconnect reason. Server and client
// initiated disconnects are normal closes.
func disconnectError(reason string) error {
	switch reason {
	case reasonServerDisconnect, reasonClientDisconnect:
		return push.ErrClosed
	default:
		return fmt.Errorf("socket.io disconnected: %s", reason)
	}
}

// connectError maps a connect_error to an error, flagging auth failures so
// the next run re-reads the token.
func connectError(args []any) error {
	msg := "unknown error"
	if len(args) > 0 {
		msg = fmt.Sprint(args[0])
	}
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "auth") {

		return fmt.Errorf("socket.io: %w: %s", transport.ErrAuthRequired, msg)
	}
	return fmt.Errorf("socket.io connect: %s", msg)
}

func firstString(args []any) string {
	if len(args) == 0 {
		return ""
	}
	if s, ok := args[0].(string); ok {
		return s
	}
	return fmt.Sprint(args[0])
}
