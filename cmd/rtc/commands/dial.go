package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bhandras/delight/rtc/sdk"
	"github.com/spf13/cobra"
)

// dial: place a call and stay in it until it ends or the user interrupts.
func dialCmd() *cobra.Command {
	var hangupAfter time.Duration
	cmd := &cobra.Command{
		Use:   "dial <address>",
		Short: "Call a person or join a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			out := &printer{w: cmd.OutOrStdout()}
			client, err := startClient(ctx, sdk.WithCallObserver(out.callObserver()))
			if err != nil {
				return err
			}
			defer closeClient(client)

			c, err := client.Phone().Dial(ctx, args[0])
			if err != nil {
				return err
			}
			out.printf("dialing %s (%s)", args[0], c.URL())

			var deadline <-chan time.Time
			if hangupAfter > 0 {
				timer := time.NewTimer(hangupAfter)
				defer timer.Stop()
				deadline = timer.C
			}

			select {
			case <-c.Done():
				return nil
			case <-ctx.Done():
			case <-deadline:
			}

			hctx, hcancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
			defer hcancel()
			if err := c.Hangup(hctx); err != nil {
				return fmt.Errorf("hangup: %w", err)
			}
			select {
			case <-c.Done():
			case <-hctx.Done():
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&hangupAfter, "hangup-after", 0, "leave the call after this long")
	return cmd
}
