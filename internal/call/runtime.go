package call

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bhandras/delight/rtc/internal/actor"
	"github.com/bhandras/delight/rtc/internal/dispatch"
	"github.com/bhandras/delight/rtc/internal/locus"
	"github.com/bhandras/delight/rtc/internal/media"
	"github.com/bhandras/delight/rtc/internal/transport"
	"github.com/bhandras/delight/rtc/pkg/logger"
)

const (
	defaultKeepAliveSecs = 20
	defaultCallTimeout   = 30 * time.Second
)

// Runtime interprets call effects: REST call control, media engine
// commands, keep-alives and observer delivery.
//
// Runtime never mutates call state. Results of asynchronous work are
// emitted back into the call mailbox.
type Runtime struct {
	doer      transport.Doer
	engine    media.Engine
	events    *dispatch.Queue
	deviceURL string
	callURL   string
	timeout   time.Duration

	// keepAliveUnit scales the server supplied keep-alive interval.
	keepAliveUnit time.Duration

	mu              sync.Mutex
	call            *Call
	observer        Observer
	onTerminated    func()
	keepAliveCancel context.CancelFunc
}

func newRuntime(doer transport.Doer, engine media.Engine, events *dispatch.Queue,
	callURL, deviceURL string, timeout time.Duration) *Runtime {

	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Runtime{
		doer:          doer,
		engine:        engine,
		events:        events,
		deviceURL:     deviceURL,
		callURL:       callURL,
		timeout:       timeout,
		keepAliveUnit: time.Second,
	}
}

func (r *Runtime) setObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// HandleEffects implements actor.Runtime.
func (r *Runtime) HandleEffects(ctx context.Context, effects []actor.Effect, emit func(actor.Input)) {
	for _, eff := range effects {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch e := eff.(type) {
		case effNotify:
			r.notify(e.Event)
		case effResync:
			r.resync(ctx, e, emit)
		case effExchangeSDP:
			r.exchangeSDP(ctx, e, emit)
		case effStartMedia:
			r.startMedia(ctx, e, emit)
		case effStopMedia:
			r.engine.Stop()
		case effStartKeepAlive:
			r.startKeepAlive(ctx, e)
		case effStopKeepAlive:
			r.stopKeepAlive()
		case effJoin:
			r.join(ctx, e, emit)
		case effDecline:
			r.decline(ctx, e, emit)
		case effLeave:
			r.leave(ctx, e, emit)
		case effSetSending:
			r.setSending(e)
		case effAdmit:
			r.admit(ctx, e, emit)
		case effTerminated:
			r.terminated()
		default:
			logger.Debugf("[call] unknown effect %T", eff)
		}
	}
}

// Stop implements actor.Runtime.
func (r *Runtime) Stop() {
	r.stopKeepAlive()
}

func (r *Runtime) notify(ev Event) {
	r.mu.Lock()
	o, c := r.observer, r.call
	r.mu.Unlock()
	if o == nil || c == nil {
		return
	}
	if err := r.events.Do(func() { deliver(o, c, ev) }); err != nil {
		logger.Warnf("[call] dropping %T for %s: %v", ev, r.callURL, err)
	}
}

func (r *Runtime) wireContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Runtime) resync(ctx context.Context, eff effResync, emit func(actor.Input)) {
	go func() {
		wctx, cancel := r.wireContext(ctx)
		defer cancel()

		var m locus.Model
		err := transport.Get(wctx, r.doer, eff.URL, &m)
		if err != nil {
			logger.Warnf("[call] resync %s failed: %v", eff.URL, err)
			emit(evResyncDone{Err: err})
			return
		}
		emit(evResyncDone{Model: &m})
	}()
}

func (r *Runtime) exchangeSDP(ctx context.Context, eff effExchangeSDP, emit func(actor.Input)) {
	go func() {
		wctx, cancel := r.wireContext(ctx)
		defer cancel()

		offer, err := r.engine.CreateOffer(wctx)
		if err != nil {
			emit(evSDPExchanged{Err: err})
			return
		}
		var resp locusResponse
		err = transport.Put(wctx, r.doer, eff.SelfURL+"/media", newJoinRequest(r.deviceURL, offer), &resp)
		if err != nil {
			logger.Warnf("[call] sdp exchange for %s failed: %v", r.callURL, err)
			emit(evSDPExchanged{Err: err})
			return
		}
		emit(evSDPExchanged{Model: resp.model()})
	}()
}

func (r *Runtime) startMedia(ctx context.Context, eff effStartMedia, emit func(actor.Input)) {
	go func() {
		if err := r.engine.SetRemoteSDP(ctx, eff.RemoteSDP); err != nil {
			emit(evMediaStarted{Err: err})
			return
		}
		emit(evMediaStarted{Err: r.engine.Start(ctx)})
	}()
}

func (r *Runtime) startKeepAlive(ctx context.Context, eff effStartKeepAlive) {
	secs := eff.Interval
	if secs <= 0 {
		secs = defaultKeepAliveSecs
	}
	interval := time.Duration(secs) * r.keepAliveUnit

	kctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	if r.keepAliveCancel != nil {
		r.keepAliveCancel()
	}
	r.keepAliveCancel = cancel
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-kctx.Done():
				return
			case <-ticker.C:
				wctx, wcancel := r.wireContext(kctx)
				err := transport.Put(wctx, r.doer, eff.URL, nil, nil)
				wcancel()
				if err != nil && kctx.Err() == nil {
					logger.Warnf("[call] keep-alive %s failed: %v", eff.URL, err)
				}
			}
		}
	}()
}

func (r *Runtime) stopKeepAlive() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.keepAliveCancel != nil {
		r.keepAliveCancel()
		r.keepAliveCancel = nil
	}
}

func (r *Runtime) join(ctx context.Context, eff effJoin, emit func(actor.Input)) {
	go func() {
		wctx, cancel := r.wireContext(ctx)
		defer cancel()

		offer, err := r.engine.CreateOffer(wctx)
		if err != nil {
			reply(eff.Reply, err)
			return
		}
		var resp locusResponse
		err = transport.Post(wctx, r.doer, r.callURL+"/participant", newJoinRequest(r.deviceURL, offer), &resp)
		reply(eff.Reply, err)
		if err == nil {
			r.emitModel(resp, "join", emit)
		}
	}()
}

func (r *Runtime) decline(ctx context.Context, eff effDecline, emit func(actor.Input)) {
	go func() {
		wctx, cancel := r.wireContext(ctx)
		defer cancel()

		var resp locusResponse
		err := transport.Put(wctx, r.doer, eff.SelfURL+"/decline", deviceRequest{DeviceURL: r.deviceURL}, &resp)
		reply(eff.Reply, err)
		if err == nil {
			r.emitModel(resp, "decline", emit)
		}
	}()
}

func (r *Runtime) leave(ctx context.Context, eff effLeave, emit func(actor.Input)) {
	go func() {
		wctx, cancel := r.wireContext(ctx)
		defer cancel()

		var resp locusResponse
		err := transport.Put(wctx, r.doer, eff.SelfURL+"/leave", deviceRequest{DeviceURL: r.deviceURL}, &resp)
		reply(eff.Reply, err)
		if err == nil {
			r.emitModel(resp, "leave", emit)
		}
	}()
}

func (r *Runtime) admit(ctx context.Context, eff effAdmit, emit func(actor.Input)) {
	go func() {
		wctx, cancel := r.wireContext(ctx)
		defer cancel()

		body := admitRequest{Admit: admitList{ParticipantIDs: eff.MembershipIDs}}
		var resp locusResponse
		err := r.doer.Do(wctx, http.MethodPatch, r.callURL+"/controls", body, &resp)
		reply(eff.Reply, err)
		if err == nil {
			r.emitModel(resp, "admit", emit)
		}
	}()
}

// emitModel feeds a call control response back into the reducer. Callers
// reply before emitting so a terminating model cannot race the reply.
func (r *Runtime) emitModel(resp locusResponse, source string, emit func(actor.Input)) {
	if m := resp.model(); m != nil {
		emit(evModel{Model: m, Source: source})
	}
}

func (r *Runtime) setSending(eff effSetSending) {
	kind := MediaLocalSendingAudio
	if eff.Video {
		kind = MediaLocalSendingVideo
		r.engine.SetSendingVideo(eff.On)
	} else {
		r.engine.SetSendingAudio(eff.On)
	}
	reply(eff.Reply, nil)
	r.notify(MediaChangedEvent{Event: MediaEvent{Kind: kind, On: eff.On}})
}

func (r *Runtime) terminated() {
	r.stopKeepAlive()
	r.mu.Lock()
	fn := r.onTerminated
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}
