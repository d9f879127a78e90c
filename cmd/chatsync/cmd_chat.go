package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant",
	}
	cmd.AddCommand(newChatSendCmd())
	return cmd
}

func newChatSendCmd() *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "send MESSAGE...",
		Short: "Send a message, starting a new conversation unless --conversation is given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *Application) error {
				if conversationID != "" {
					if _, err := app.engine.Coordinator.FetchConversationDetail(ctx, conversationID); err != nil {
						return err
					}
				}
				res, err := app.engine.Orchestrator.SendMessage(ctx, strings.Join(args, " "), conversationID)
				if err != nil {
					return err
				}
				if res.Created {
					app.notifier.Info("started conversation " + res.ConversationID)
				}
				fmt.Fprintln(app.streams.Out, res.Response)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Existing conversation id")
	return cmd
}
