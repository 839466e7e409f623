// Package mercury is a push source over a raw websocket carrying JSON
// envelopes. Normal closes (1000, 1001) end the source; anything else is
// reported as an error so the supervisor reconnects.
package mercury

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bhandras/delight/rtc/internal/push"
	"github.com/bhandras/delight/rtc/internal/transport"
	"github.com/bhandras/delight/rtc/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const closeTimeout = time.Second

// frame is one server envelope.
type frame struct {
	ID   string    `json:"id"`
	Data frameData `json:"data"`
}

type frameData struct {
	EventType  string          `json:"eventType"`
	Locus      json.RawMessage `json:"locus,omitempty"`
	Activity   json.RawMessage `json:"activity,omitempty"`
	Encryption json.RawMessage `json:"encryption,omitempty"`
}

type authFrame struct {
	ID   string   `json:"id"`
	Type string   `json:"type"`
	Data authData `json:"data"`
}

type authData struct {
	Token string `json:"token"`
}

type ackFrame struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
}

// Source connects to a mercury websocket.
type Source struct {
	url    string
	auth   transport.Authenticator
	dialer *websocket.Dialer
}

var _ push.Source = (*Source)(nil)

// New returns a source for the websocket at url.
func New(url string, auth transport.Authenticator) *Source {
	return &Source{
		url:    url,
		auth:   auth,
		dialer: websocket.DefaultDialer,
	}
}

// Name implements push.Source.
func (s *Source) Name() string { return "mercury" }

// Run implements push.Source.
func (s *Source) Run(ctx context.Context, sink push.Sink) error {
	token, err := s.auth.AccessToken(ctx)
	if err != nil {
		return err
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("dial mercury: %w", transport.ErrAuthRequired)
		}
		return fmt.Errorf("dial mercury: %w", err)
	}
	defer conn.Close()

	auth := authFrame{
		ID:   uuid.NewString(),
		Type: "authorization",
		Data: authData{Token: "Bearer " + token},
	}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("authorize mercury: %w", err)
	}
	sink.Connected()

	stop := context.AfterFunc(ctx, func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return push.ErrClosed
			}
			return fmt.Errorf("read mercury: %w", err)
		}

		id, ev, err := decodeFrame(data)
		if err != nil {
			logger.Warnf("[push] mercury: %v", err)
			continue
		}
		if id != "" {
			if err := conn.WriteJSON(ackFrame{Type: "ack", MessageID: id}); err != nil {
				return fmt.Errorf("ack mercury: %w", err)
			}
		}
		if ev != nil {
			sink.Deliver(*ev)
		}
	}
}

var errUnknownEvent = errors.New("unknown event type")

// decodeFrame maps an envelope to a push event. Unknown event types yield a
// nil event but are still acknowledged.
func decodeFrame(data []byte) (string, *push.Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return "", nil, fmt.Errorf("decode frame: %w", err)
	}

	var ev *push.Event
	switch t := f.Data.EventType; {
	case strings.HasPrefix(t, "locus.") && len(f.Data.Locus) > 0:
		ev = &push.Event{Type: push.TypeLocus, Data: f.Data.Locus}
	case t == string(push.TypeActivity) && len(f.Data.Activity) > 0:
		ev = &push.Event{Type: push.TypeActivity, Data: f.Data.Activity}
	case t == string(push.TypeKMS) && len(f.Data.Encryption) > 0:
		ev = &push.Event{Type: push.TypeKMS, Data: f.Data.Encryption}
	default:
		logger.Debugf("[push] mercury: %v %q", errUnknownEvent, t)
	}
	return f.ID, ev, nil
}
