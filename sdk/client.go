// Package sdk assembles the client: REST transport, device registration,
// key negotiation, messaging, calling and the push event stream.
package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/bhandras/delight/rtc/internal/call"
	"github.com/bhandras/delight/rtc/internal/config"
	"github.com/bhandras/delight/rtc/internal/device"
	"github.com/bhandras/delight/rtc/internal/dispatch"
	"github.com/bhandras/delight/rtc/internal/kms"
	"github.com/bhandras/delight/rtc/internal/locus"
	"github.com/bhandras/delight/rtc/internal/media"
	"github.com/bhandras/delight/rtc/internal/mercury"
	"github.com/bhandras/delight/rtc/internal/message"
	"github.com/bhandras/delight/rtc/internal/natsbus"
	"github.com/bhandras/delight/rtc/internal/protocol/wire"
	"github.com/bhandras/delight/rtc/internal/push"
	"github.com/bhandras/delight/rtc/internal/transport"
	"github.com/bhandras/delight/rtc/internal/version"
	"github.com/bhandras/delight/rtc/internal/websocket"
	"github.com/bhandras/delight/rtc/pkg/logger"
)

// Option customizes a Client.
type Option func(*options)

type options struct {
	media    media.Factory
	observer call.Observer
	doer     transport.Doer
	tap      func(push.Event)
}

// WithMedia sets the media engine factory used for calls.
func WithMedia(f media.Factory) Option {
	return func(o *options) { o.media = f }
}

// WithCallObserver attaches an observer to every call.
func WithCallObserver(obs call.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithDoer replaces the REST executor.
func WithDoer(d transport.Doer) Option {
	return func(o *options) { o.doer = d }
}

// WithPushTap observes every push event before it is routed.
func WithPushTap(fn func(push.Event)) Option {
	return func(o *options) { o.tap = fn }
}

// Client is the assembled client.
type Client struct {
	cfg  *config.Config
	auth *transport.StaticAuthenticator
	http *transport.Client
	doer transport.Doer
	tap  func(push.Event)

	events   *dispatch.Queue
	devices  *device.Registry
	keys     *kms.Negotiator
	messages *message.Client
	phone    *call.Phone

	mu     sync.Mutex
	router *push.Router
	cancel context.CancelFunc
	done   chan struct{}
}

// New assembles a client from cfg. Nothing touches the network until
// Register or Start.
func New(cfg *config.Config, opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		cfg:    cfg,
		auth:   cfg.Authenticator(),
		events: dispatch.New(0),
		tap:    o.tap,
	}
	c.doer = o.doer
	if c.doer == nil {
		c.http = transport.New(cfg.ServerURL, c.auth,
			transport.WithTimeout(cfg.HTTPTimeout),
			transport.WithDebug(cfg.Debug),
			transport.WithUserAgent(version.UserAgent()),
		)
		c.doer = c.http
	}

	c.devices = device.NewRegistry(c.doer, cfg.DeviceName)
	c.keys = kms.New(kms.Config{
		Doer:     c.doer,
		Auth:     c.auth,
		Identity: c.devices,
		Timeout:  cfg.KMSTimeout,
	})
	c.messages = message.New(message.Config{
		Doer:   c.doer,
		Keys:   c.keys,
		Events: c.events,
	})
	c.phone = call.NewPhone(call.Config{
		Doer:     c.doer,
		Devices:  c.devices,
		Media:    o.media,
		Events:   c.events,
		Observer: o.observer,
		Timeout:  cfg.HTTPTimeout,
	})
	return c
}

// Devices returns the device registry.
func (c *Client) Devices() *device.Registry { return c.devices }

// Keys returns the key negotiator.
func (c *Client) Keys() *kms.Negotiator { return c.keys }

// Messages returns the messaging client.
func (c *Client) Messages() *message.Client { return c.messages }

// Phone returns the call registry.
func (c *Client) Phone() *call.Phone { return c.phone }

// Register registers the device unless it already is.
func (c *Client) Register(ctx context.Context) (*wire.Device, error) {
	if dev, ok := c.devices.Device(); ok {
		return dev, nil
	}
	return c.devices.Register(ctx)
}

// Start registers the device and connects the configured push source. Push
// runs until ctx is done, Close is called, or the server closes the stream.
func (c *Client) Start(ctx context.Context) error {
	dev, err := c.Register(ctx)
	if err != nil {
		return err
	}
	src, err := c.source(dev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return fmt.Errorf("client already started")
	}
	if c.router != nil {
		defer c.router.Close()
	}
	runCtx, cancel := context.WithCancel(ctx)
	router := c.newRouter(runCtx)
	c.router = router
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	deliver := router.Deliver
	if c.tap != nil {
		deliver = func(ev push.Event) {
			c.tap(ev)
			router.Deliver(ev)
		}
	}

	go func() {
		defer close(done)
		if err := push.Run(runCtx, src, deliver); err != nil && runCtx.Err() == nil {
			logger.Errorf("[push] %s stopped: %v", src.Name(), err)
		}
	}()
	return nil
}

// Deliver injects a push event, for events relayed from elsewhere.
func (c *Client) Deliver(ev push.Event) {
	c.mu.Lock()
	router := c.router
	if router == nil {
		router = c.newRouter(context.Background())
		c.router = router
	}
	c.mu.Unlock()
	router.Deliver(ev)
}

// Close stops push, calls and callback delivery.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done, router := c.cancel, c.done, c.router
	c.cancel, c.router = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if router != nil {
		router.Close()
	}
	c.phone.Close()
	c.events.Close()
	if c.http != nil {
		return c.http.Close()
	}
	return nil
}

func (c *Client) source(dev *wire.Device) (push.Source, error) {
	switch c.cfg.Push {
	case config.PushSocketIO:
		url := c.cfg.SocketIOURL
		if url == "" {
			url = c.cfg.ServerURL
		}
		return websocket.NewClient(url, c.auth, websocket.TransportWebSocket), nil
	case config.PushNATS:
		return natsbus.New(natsbus.Config{URL: c.cfg.NATSURL, Prefix: c.cfg.NATSSubjectPrefix}), nil
	default:
		url := c.cfg.MercuryURL
		if url == "" {
			url = dev.WebSocketURL
		}
		if url == "" {
			url = websocketURL(c.cfg.ServerURL) + "/mercury"
		}
		return mercury.New(url, c.auth), nil
	}
}

func websocketURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	default:
		return httpURL
	}
}

// newRouter binds push event types to their consumers.
func (c *Client) newRouter(ctx context.Context) *push.Router {
	r := push.NewRouter(ctx)
	r.Handle(push.TypeLocus, func(ctx context.Context, ev push.Event) error {
		var m locus.Model
		if err := json.Unmarshal(ev.Data, &m); err != nil {
			return fmt.Errorf("decode locus: %w", err)
		}
		return c.phone.HandleLocus(ctx, &m)
	})
	r.Handle(push.TypeActivity, func(ctx context.Context, ev push.Event) error {
		var a wire.Activity
		if err := json.Unmarshal(ev.Data, &a); err != nil {
			return fmt.Errorf("decode activity: %w", err)
		}
		return c.messages.HandleActivity(ctx, &a)
	})
	r.Handle(push.TypeKMS, func(_ context.Context, ev push.Event) error {
		var msgs wire.KMSMessages
		if err := json.Unmarshal(ev.Data, &msgs); err != nil {
			return fmt.Errorf("decode kms messages: %w", err)
		}
		c.keys.HandleMessages(msgs.KMSMessages)
		return nil
	})
	return r
}
