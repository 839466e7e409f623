// Package natsbus is a push source fed from NATS subjects. A relay publishes
// events to <prefix>.locus, <prefix>.activity and <prefix>.kms with the
// event payload as message data.
package natsbus

import (
	"context"
	"fmt"
	"strings"

	"github.com/bhandras/delight/rtc/internal/push"
	"github.com/bhandras/delight/rtc/pkg/logger"
	"github.com/nats-io/nats.go"
)

const defaultPrefix = "rtc"

var subjects = map[push.Type]string{
	push.TypeLocus:    "locus",
	push.TypeActivity: "activity",
	push.TypeKMS:      "kms",
}

// Config configures a Source.
type Config struct {
	URL    string
	Prefix string
	// Token authenticates to the NATS server when set.
	Token string
	// CredentialsFile is a NATS user credentials file.
	CredentialsFile string
}

// Source subscribes to push subjects on a NATS server. Reconnects are left to
// the push supervisor, so the NATS client never reconnects on its own.
type Source struct {
	cfg Config
}

var _ push.Source = (*Source)(nil)

// New returns a NATS push source.
func New(cfg Config) *Source {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	return &Source{cfg: cfg}
}

// Name implements push.Source.
func (s *Source) Name() string { return "nats" }

// Subject returns the subject carrying events of type t under prefix.
func Subject(prefix string, t push.Type) string {
	return prefix + "." + subjects[t]
}

// typeOf maps a subject back to its event type.
func typeOf(prefix, subject string) (push.Type, bool) {
	suffix, ok := strings.CutPrefix(subject, prefix+".")
	if !ok {
		return "", false
	}
	for t, name := range subjects {
		if name == suffix {
			return t, true
		}
	}
	return "", false
}

// Run implements push.Source.
func (s *Source) Run(ctx context.Context, sink push.Sink) error {
	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	opts := []nats.Option{
		nats.Name("rtc-push"),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err == nil {
				finish(push.ErrClosed)
				return
			}
			finish(fmt.Errorf("nats disconnected: %w", err))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			finish(push.ErrClosed)
		}),
	}
	if s.cfg.Token != "" {
		opts = append(opts, nats.Token(s.cfg.Token))
	}
	if s.cfg.CredentialsFile != "" {
		opts = append(opts, nats.UserCredentials(s.cfg.CredentialsFile))
	}

	nc, err := nats.Connect(s.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer nc.Close()

	handler := func(msg *nats.Msg) {
		t, ok := typeOf(s.cfg.Prefix, msg.Subject)
		if !ok {
			logger.Debugf("[push] nats: unexpected subject %s", msg.Subject)
			return
		}
		data := append([]byte(nil), msg.Data...)
		sink.Deliver(push.Event{Type: t, Data: data})
	}
	for _, t := range push.Types {
		if _, err := nc.Subscribe(Subject(s.cfg.Prefix, t), handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", Subject(s.cfg.Prefix, t), err)
		}
	}
	if err := nc.Flush(); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	sink.Connected()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Publisher relays push events onto NATS subjects.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

// NewPublisher wraps an existing connection.
func NewPublisher(nc *nats.Conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Publisher{nc: nc, prefix: prefix}
}

// Publish sends ev to its subject.
func (p *Publisher) Publish(ev push.Event) error {
	if _, ok := subjects[ev.Type]; !ok {
		return fmt.Errorf("no subject for %s", ev.Type)
	}
	return p.nc.Publish(Subject(p.prefix, ev.Type), ev.Data)
}
