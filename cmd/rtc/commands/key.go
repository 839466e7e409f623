package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// key: resolve the encryption key of a space, creating one if it has none.
func keyCmd() *cobra.Command {
	var showJWK bool
	cmd := &cobra.Command{
		Use:   "key <space-id>",
		Short: "Fetch or create the encryption key of a space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			client, err := startClient(ctx)
			if err != nil {
				return err
			}
			defer closeClient(client)

			kctx, kcancel := context.WithTimeout(ctx, cfg.KMSTimeout)
			defer kcancel()
			key, err := client.Keys().Material(kctx, args[0])
			if err != nil {
				return fmt.Errorf("key for %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.URI)
			if showJWK {
				fmt.Fprintln(cmd.OutOrStdout(), key.JWK)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showJWK, "show-jwk", false, "also print the key material")
	return cmd
}
