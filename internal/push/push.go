// Package push carries server-initiated events (call state, activities and
// KMS responses) from a transport to the components that consume them.
//
// A Source owns one connection. Run supervises a Source and reconnects it
// with exponential backoff after abnormal disconnects. A Router fans events
// out to per-type handlers.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bhandras/delight/rtc/internal/metrics"
	"github.com/bhandras/delight/rtc/pkg/logger"
)

// Type names a push event.
type Type string

const (
	TypeLocus    Type = "locus"
	TypeActivity Type = "conversation.activity"
	TypeKMS      Type = "encryption.kms_message"
)

// Types lists the event types every source subscribes to.
var Types = []Type{TypeLocus, TypeActivity, TypeKMS}

// Event is a normalized push event. Data is the JSON payload: a locus
// snapshot, an activity, or a KMS message batch.
type Event struct {
	Type Type
	Data json.RawMessage
}

// ErrClosed is returned by a Source when the server closed the connection
// normally. Run stops instead of reconnecting.
var ErrClosed = errors.New("push connection closed")

// Sink receives what a Source observes on one connection.
type Sink interface {
	// Connected is called once the connection is established.
	Connected()
	// Deliver hands one event over. It must not block for long.
	Deliver(ev Event)
}

// Source is a push transport.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// Run connects and delivers events until the connection ends or ctx is
	// done. It returns nil or ErrClosed after a normal close.
	Run(ctx context.Context, sink Sink) error
}

type sink struct {
	connected func()
	deliver   func(Event)
}

func (s sink) Connected()       { s.connected() }
func (s sink) Deliver(ev Event) { s.deliver(ev) }

// Run keeps src connected until ctx is done or the server closes the
// connection normally.
func Run(ctx context.Context, src Source, deliver func(Event)) error {
	return run(ctx, src, deliver, NewBackoff())
}

func run(ctx context.Context, src Source, deliver func(Event), backoff *Backoff) error {
	s := sink{
		connected: func() {
			backoff.Reset()
			logger.Infof("[push] %s connected", src.Name())
		},
		deliver: deliver,
	}

	for {
		err := src.Run(ctx, s)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil || errors.Is(err, ErrClosed) {
			logger.Infof("[push] %s closed by server", src.Name())
			return nil
		}

		delay := backoff.Next()
		metrics.PushReconnect(src.Name())
		logger.Warnf("[push] %s dropped: %v; reconnecting in %s", src.Name(), err, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
