package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"elicate/internal/logger"
	"elicate/pkg/chattypes"
)

func newSendCmd() *cobra.Command {
	var raw, dryRun bool
	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Run the plugin pipeline and send one message to the model",
		Long: `Send one user message. The message is read from the arguments or, when
none are given, from standard input. Without --chat a new chat id is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read message: %w", err)
				}
				text = strings.TrimSpace(string(data))
			}
			if text == "" {
				return fmt.Errorf("nothing to send")
			}

			a, done, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			chat := chatID
			if chat == "" {
				chat = a.NewChat()
				logger.Info("Using new chat", "chat", chat)
			}
			messages := []chattypes.Message{{Role: chattypes.RoleUser, Content: text}}
			out := cmd.OutOrStdout()

			if dryRun {
				prepared, params, err := a.Prepare(cmd.Context(), chat, messages)
				if err != nil {
					return err
				}
				for _, m := range prepared {
					fmt.Fprintf(out, "[%s] %s\n", m.Role, m.Content)
				}
				fmt.Fprintf(out, "parameters: %v\n", params)
				return nil
			}

			reply, err := a.Send(cmd.Context(), chat, messages)
			if err != nil {
				return err
			}
			if raw {
				fmt.Fprintln(out, reply)
				return nil
			}
			renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
			if err != nil {
				return fmt.Errorf("failed to create markdown renderer: %w", err)
			}
			rendered, err := renderer.Render(reply)
			if err != nil {
				return fmt.Errorf("failed to render markdown: %w", err)
			}
			fmt.Fprint(out, rendered)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the reply without markdown rendering")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the prepared request instead of sending it")
	return cmd
}
