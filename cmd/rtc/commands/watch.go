package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bhandras/delight/rtc/internal/call"
	"github.com/bhandras/delight/rtc/internal/config"
	"github.com/bhandras/delight/rtc/internal/message"
	"github.com/bhandras/delight/rtc/internal/metrics"
	"github.com/bhandras/delight/rtc/internal/natsbus"
	"github.com/bhandras/delight/rtc/internal/notify"
	"github.com/bhandras/delight/rtc/internal/push"
	"github.com/bhandras/delight/rtc/pkg/logger"
	"github.com/bhandras/delight/rtc/sdk"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

// watch: stay connected and print calls and messages as they arrive.
func watchCmd() *cobra.Command {
	var (
		metricsAddr string
		relayURL    string
		relayPrefix string
		autoAnswer  bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print incoming calls and messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if metricsAddr == "" {
				metricsAddr = cfg.MetricsAddr
			}
			if metricsAddr != "" {
				go func() {
					if err := metrics.Serve(ctx, metricsAddr); err != nil {
						logger.Errorf("[metrics] serve %s: %v", metricsAddr, err)
					}
				}()
			}

			out := &printer{w: cmd.OutOrStdout()}
			opts := []sdk.Option{sdk.WithCallObserver(out.callObserver())}

			if relayURL != "" {
				if cfg.Push == config.PushNATS {
					return fmt.Errorf("--relay-nats cannot be used with the nats push transport")
				}
				nc, err := nats.Connect(relayURL, nats.Name("rtc-relay"))
				if err != nil {
					return fmt.Errorf("connect relay: %w", err)
				}
				defer nc.Drain()
				if relayPrefix == "" {
					relayPrefix = cfg.NATSSubjectPrefix
				}
				pub := natsbus.NewPublisher(nc, relayPrefix)
				opts = append(opts, sdk.WithPushTap(func(ev push.Event) {
					if err := pub.Publish(ev); err != nil {
						logger.Warnf("[relay] publish %s: %v", ev.Type, err)
					}
				}))
			}

			alerts, err := newAlerter()
			if err != nil {
				return err
			}
			if alerts != nil {
				defer alerts.Close()
			}

			client := sdk.New(cfg, opts...)
			defer closeClient(client)

			client.Messages().OnEvent(func(ev message.Event) {
				out.messageEvent(ev)
				if alerts != nil && ev.Kind == message.EventReceived {
					go alert(ctx, alerts, notify.Alert{
						Title: "New message",
						Body:  ev.Message.Text,
						Key:   ev.Message.SpaceID,
					})
				}
			})
			client.Phone().OnIncoming(func(c *call.Call) {
				out.printf("incoming call %s", c.URL())
				if alerts != nil {
					go alert(ctx, alerts, notify.Alert{
						Title: "Incoming call",
						Body:  "Call from " + caller(c),
						Key:   c.URL(),
					})
				}
				if !autoAnswer {
					return
				}
				go func() {
					actx, acancel := context.WithTimeout(ctx, cfg.HTTPTimeout)
					defer acancel()
					if err := c.Answer(actx); err != nil {
						logger.Warnf("[watch] answer %s: %v", c.URL(), err)
					}
				}()
			})

			if err := client.Start(ctx); err != nil {
				return err
			}
			out.printf("watching (push=%s)", cfg.Push)
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	cmd.Flags().StringVar(&relayURL, "relay-nats", "", "republish push events to this NATS server")
	cmd.Flags().StringVar(&relayPrefix, "relay-prefix", "", "subject prefix for relayed events")
	cmd.Flags().BoolVar(&autoAnswer, "answer", false, "answer incoming calls automatically")
	return cmd
}

// newAlerter returns nil when Pushover is not configured.
func newAlerter() (*notify.Alerter, error) {
	if cfg.PushoverToken == "" && cfg.PushoverUser == "" {
		return nil, nil
	}
	return notify.New(notify.Config{
		Token:    cfg.PushoverToken,
		User:     cfg.PushoverUser,
		Cooldown: time.Minute,
	})
}

func alert(ctx context.Context, a *notify.Alerter, al notify.Alert) {
	actx, cancel := context.WithTimeout(ctx, cfg.HTTPTimeout)
	defer cancel()
	if _, err := a.Send(actx, al); err != nil {
		logger.Warnf("[notify] %v", err)
	}
}

// caller names whoever hosts the call, falling back to the call URL.
func caller(c *call.Call) string {
	m := c.Model()
	if m != nil && m.Host != nil {
		if m.Host.Name != "" {
			return m.Host.Name
		}
		if m.Host.Email != "" {
			return m.Host.Email
		}
	}
	return c.URL()
}
