package commands

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/bhandras/delight/rtc/internal/message"
	"github.com/spf13/cobra"
)

// send: encrypt and post a message, optionally with attachments.
func sendCmd() *cobra.Command {
	var files []string
	var editOf string
	cmd := &cobra.Command{
		Use:   "send <space-id> <text...>",
		Short: "Send an encrypted message to a space",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			uploads := make([]message.Upload, 0, len(files))
			for _, path := range files {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				uploads = append(uploads, message.Upload{
					Name:     filepath.Base(path),
					MimeType: mime.TypeByExtension(filepath.Ext(path)),
					Data:     data,
				})
			}

			client, err := startClient(ctx)
			if err != nil {
				return err
			}
			defer closeClient(client)

			spaceID, text := args[0], strings.Join(args[1:], " ")
			var msg *message.Message
			if editOf != "" {
				if len(uploads) > 0 {
					return fmt.Errorf("--file cannot be combined with --edit")
				}
				msg, err = client.Messages().Update(ctx, spaceID, editOf, text)
			} else {
				msg, err = client.Messages().Post(ctx, spaceID, text, uploads...)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", msg.ID)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "attach a file (repeatable)")
	cmd.Flags().StringVar(&editOf, "edit", "", "replace the message with this id")
	return cmd
}
