package call

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bhandras/delight/rtc/internal/actor"
	"github.com/bhandras/delight/rtc/internal/dispatch"
	"github.com/bhandras/delight/rtc/internal/locus"
	"github.com/bhandras/delight/rtc/internal/media"
	"github.com/bhandras/delight/rtc/internal/metrics"
	"github.com/bhandras/delight/rtc/internal/transport"
	"github.com/bhandras/delight/rtc/pkg/logger"
)

const dialURL = "loci/call"

// DeviceSource resolves the URL of the registered device.
type DeviceSource interface {
	DeviceURL() (string, error)
}

// Config configures a Phone.
type Config struct {
	Doer    transport.Doer
	Devices DeviceSource
	// Media creates the engine of each call. Defaults to media.NewNullEngine.
	Media media.Factory
	// Events delivers observer callbacks. It is shared with the rest of the
	// client so all callbacks observe one order.
	Events *dispatch.Queue
	// Observer is attached to every call the phone creates.
	Observer Observer
	Timeout  time.Duration
}

// Phone owns the set of live calls, keyed by call URL.
type Phone struct {
	cfg Config

	// keepAliveUnit scales server keep-alive intervals.
	keepAliveUnit time.Duration

	mu         sync.Mutex
	calls      map[string]*Call
	onIncoming func(*Call)
	closed     bool
}

// NewPhone returns a phone with no calls.
func NewPhone(cfg Config) *Phone {
	if cfg.Media == nil {
		cfg.Media = media.NewNullEngine
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCallTimeout
	}
	return &Phone{
		cfg:           cfg,
		keepAliveUnit: time.Second,
		calls:         make(map[string]*Call),
	}
}

// OnIncoming registers the callback invoked for new incoming calls.
func (p *Phone) OnIncoming(fn func(*Call)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onIncoming = fn
}

// Calls returns the live calls.
func (p *Phone) Calls() []*Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Call, 0, len(p.calls))
	for _, c := range p.calls {
		out = append(out, c)
	}
	return out
}

// Call looks a live call up by URL.
func (p *Phone) Call(url string) (*Call, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.calls[url]
	return c, ok
}

// Dial places an outgoing call to address (an email, person id or SIP URI).
//
// The dial request runs to completion even if ctx is cancelled while it is
// in flight; a call created that way is left right away and Dial returns
// ErrDialCancelled.
func (p *Phone) Dial(ctx context.Context, address string) (*Call, error) {
	deviceURL, err := p.cfg.Devices.DeviceURL()
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ErrDialCancelled
	}

	engine := p.cfg.Media()
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.Timeout)
	defer cancel()

	offer, err := engine.CreateOffer(wctx)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	body := dialRequest{
		Invitee:     invitee{Address: address},
		Device:      deviceRef{URL: deviceURL, DeviceType: deviceTypeDesktop},
		LocalMedias: []localMedia{{Type: mediaTypeSDP, LocalSDP: offer}},
	}
	var resp locusResponse
	if err := transport.Post(wctx, p.cfg.Doer, dialURL, body, &resp); err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	m := resp.model()

	if ctx.Err() != nil {
		if selfURL := m.SelfURL(); selfURL != "" {
			err := transport.Put(wctx, p.cfg.Doer, selfURL+"/leave", deviceRequest{DeviceURL: deviceURL}, nil)
			if err != nil {
				logger.Warnf("[call] leaving cancelled dial %s: %v", m.URL, err)
			}
		}
		return nil, ErrDialCancelled
	}
	if !m.Valid() {
		return nil, ErrInvalidCallState
	}

	c, err := p.add(m.URL, Outgoing, deviceURL, engine)
	if err != nil {
		return nil, err
	}
	logger.Infof("[call] dialed %s (%s)", address, m.URL)
	if err := c.update(wctx, m, "dial"); err != nil {
		return nil, err
	}
	return c, nil
}

// HandleLocus routes a pushed call snapshot to its call. A full snapshot of
// an unknown call that alerts the local participant creates an incoming
// call.
func (p *Phone) HandleLocus(ctx context.Context, m *locus.Model) error {
	if m == nil || m.URL == "" {
		return ErrInvalidCallState
	}
	if c, ok := p.Call(m.URL); ok {
		return c.update(ctx, m, "push")
	}
	if !isIncoming(m) {
		logger.Debugf("[call] ignoring update for unknown call %s", m.URL)
		return nil
	}

	deviceURL, err := p.cfg.Devices.DeviceURL()
	if err != nil {
		return err
	}
	c, err := p.add(m.URL, Incoming, deviceURL, p.cfg.Media())
	if err != nil {
		return err
	}
	logger.Infof("[call] incoming call %s", m.URL)

	p.mu.Lock()
	fn := p.onIncoming
	p.mu.Unlock()
	if fn != nil {
		if err := p.cfg.Events.Do(func() { fn(c) }); err != nil {
			return err
		}
	}
	return c.update(ctx, m, "push")
}

func isIncoming(m *locus.Model) bool {
	if !m.IsFullDTO() || !m.Valid() || m.CallState() != locus.CallActive {
		return false
	}
	self := m.SelfState()
	if self != locus.StateIdle && self != locus.StateNotified {
		return false
	}
	return m.SelfAlert() == locus.AlertFull
}

func (p *Phone) add(url string, dir Direction, deviceURL string, engine media.Engine) (*Call, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("%w: phone closed", ErrIllegalStatus)
	}
	if c, ok := p.calls[url]; ok {
		return c, nil
	}

	rt := newRuntime(p.cfg.Doer, engine, p.cfg.Events, url, deviceURL, p.cfg.Timeout)
	rt.observer = p.cfg.Observer
	rt.keepAliveUnit = p.keepAliveUnit
	initial := State{
		URL:       url,
		DeviceURL: deviceURL,
		Direction: dir,
		Status:    StatusInitiated,
	}
	c := &Call{
		url:       url,
		direction: dir,
		actor:     actor.New(initial, Reduce, rt),
		runtime:   rt,
	}
	rt.call = c
	rt.onTerminated = func() {
		p.remove(url)
		c.stop()
	}
	p.calls[url] = c
	metrics.ActiveCalls(len(p.calls))
	c.actor.Start()
	return c, nil
}

func (p *Phone) remove(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.calls, url)
	metrics.ActiveCalls(len(p.calls))
}

// Close stops every call loop without leaving the calls.
func (p *Phone) Close() {
	p.mu.Lock()
	calls := p.calls
	p.calls = make(map[string]*Call)
	p.closed = true
	p.mu.Unlock()

	for _, c := range calls {
		c.stop()
		<-c.Done()
	}
	metrics.ActiveCalls(0)
}
