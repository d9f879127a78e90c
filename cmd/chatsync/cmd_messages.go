package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/janhq/jan-chat-sync/internal/domain/chatsync"
	"github.com/janhq/jan-chat-sync/internal/interfaces/tui"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

func newMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "messages",
		Aliases: []string{"msg"},
		Short:   "Edit, regenerate, switch versions of, or delete messages",
	}
	cmd.AddCommand(newMessagesEditCmd())
	cmd.AddCommand(newMessagesRegenerateCmd())
	cmd.AddCommand(newMessagesSwitchCmd())
	cmd.AddCommand(newMessagesDeleteCmd())
	return cmd
}

// openConversation makes the conversation active so edits apply optimistically to it.
func openConversation(ctx context.Context, app *Application, conversationID string) error {
	_, err := app.engine.Coordinator.FetchConversationDetail(ctx, conversationID)
	return err
}

func printActive(app *Application) {
	if active := app.store.ActiveConversation(); active != nil {
		fmt.Fprint(app.streams.Out, tui.RenderConversation(active))
	}
}

func newMessagesEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit CONVERSATION_ID MESSAGE_ID CONTENT...",
		Short: "Edit a message, keeping the previous text as an older version",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *Application) error {
				if err := openConversation(ctx, app, args[0]); err != nil {
					return err
				}
				if err := app.engine.Editor.EditMessage(ctx, args[1], args[0], strings.Join(args[2:], " ")); err != nil {
					return err
				}
				printActive(app)
				return nil
			})
		},
	}
}

func newMessagesRegenerateCmd() *cobra.Command {
	var age int
	cmd := &cobra.Command{
		Use:   "regenerate CONVERSATION_ID MESSAGE_ID",
		Short: "Ask for a new version of a bot answer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *Application) error {
				if err := openConversation(ctx, app, args[0]); err != nil {
					return err
				}
				if err := app.engine.Orchestrator.RegenerateResponse(ctx, args[1], args[0], age); err != nil {
					return err
				}
				printActive(app)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&age, "age", 0, "Age context override; defaults to the conversation's")
	return cmd
}

func newMessagesSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch CONVERSATION_ID MESSAGE_ID VERSION",
		Short: "Show another version of a message (versions start at 1)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *Application) error {
				version, err := strconv.Atoi(args[2])
				if err != nil {
					return platformerrors.NewError(ctx, platformerrors.LayerInterface, platformerrors.ErrorTypeValidation,
						"version must be a whole number", err, "4f5a6b7c-8d9e-4f0a-9b2c-3d4e5f6a7b8c")
				}
				if err := openConversation(ctx, app, args[0]); err != nil {
					return err
				}
				if err := app.engine.Editor.SwitchMessageVersion(ctx, args[1], args[0], version); err != nil {
					return err
				}
				printActive(app)
				return nil
			})
		},
	}
}

func newMessagesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete CONVERSATION_ID MESSAGE_ID",
		Short: "Delete a message and every message after it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *Application) error {
				conv, err := app.engine.Coordinator.FetchConversationDetail(ctx, args[0])
				if err != nil {
					return err
				}
				plan, err := chatsync.PlanCascadeDelete(ctx, conv, args[1])
				if err != nil {
					return err
				}
				ok, err := app.prompts.Confirm(ctx, plan.Question())
				if err != nil || !ok {
					return err
				}
				if err := app.engine.Editor.DeleteMessageAndFollowing(ctx, plan.MessageID, plan.ConversationID); err != nil {
					return err
				}
				app.notifier.Info(fmt.Sprintf("deleted %d message(s)", len(plan.Removed)))
				printActive(app)
				return nil
			})
		},
	}
}
