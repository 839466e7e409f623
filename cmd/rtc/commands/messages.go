package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/bhandras/delight/rtc/internal/message"
	"github.com/spf13/cobra"
)

// messages: list and decrypt recent messages of a space.
func messagesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "messages <space-id>",
		Short: "List recent messages of a space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			client, err := startClient(ctx)
			if err != nil {
				return err
			}
			defer closeClient(client)

			msgs, err := client.Messages().List(ctx, args[0], limit)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				printMessage(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of messages")
	return cmd
}

func printMessage(w io.Writer, m message.Message) {
	author := "?"
	if m.Author != nil {
		author = m.Author.DisplayName
		if author == "" {
			author = m.Author.ID
		}
	}
	fmt.Fprintf(w, "%s [%s] %s\n", m.Published.Local().Format(time.DateTime), author, m.Text)
	for _, f := range m.Files {
		fmt.Fprintf(w, "    + %s (%d bytes) %s\n", f.DisplayName, f.FileSize, f.URL)
	}
}
