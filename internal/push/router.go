package push

import (
	"context"
	"sync"

	"github.com/bhandras/delight/rtc/internal/dispatch"
	"github.com/bhandras/delight/rtc/internal/metrics"
	"github.com/bhandras/delight/rtc/pkg/logger"
)

// Handler consumes events of one type.
type Handler func(ctx context.Context, ev Event) error

// Router delivers events to handlers. Each type has its own lane: events of
// one type are handled in arrival order, and a slow handler (an activity
// waiting for a KMS response) never holds up other types.
type Router struct {
	ctx context.Context

	mu       sync.Mutex
	handlers map[Type]Handler
	lanes    map[Type]*dispatch.Queue
	closed   bool
}

// NewRouter returns a router whose handlers run with ctx.
func NewRouter(ctx context.Context) *Router {
	return &Router{
		ctx:      ctx,
		handlers: make(map[Type]Handler),
		lanes:    make(map[Type]*dispatch.Queue),
	}
}

// Handle registers h for events of type t.
func (r *Router) Handle(t Type, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = h
	if _, ok := r.lanes[t]; !ok {
		r.lanes[t] = dispatch.New(0)
	}
}

// Deliver queues ev on its lane. Events without a handler are dropped.
func (r *Router) Deliver(ev Event) {
	metrics.PushEvent(string(ev.Type))

	r.mu.Lock()
	h, lane := r.handlers[ev.Type], r.lanes[ev.Type]
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}
	if h == nil {
		logger.Debugf("[push] no handler for %s", ev.Type)
		return
	}

	err := lane.Do(func() {
		if err := h(r.ctx, ev); err != nil {
			logger.Warnf("[push] %s handler: %v", ev.Type, err)
		}
	})
	if err != nil {
		logger.Debugf("[push] dropping %s: %v", ev.Type, err)
	}
}

// Close stops every lane after draining queued events.
func (r *Router) Close() {
	r.mu.Lock()
	r.closed = true
	lanes := r.lanes
	r.lanes = make(map[Type]*dispatch.Queue)
	r.mu.Unlock()

	for _, lane := range lanes {
		lane.Close()
	}
}
