package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/janhq/jan-chat-sync/internal/domain/chatsync"
	"github.com/janhq/jan-chat-sync/internal/interfaces/tui"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

func newConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "List and manage conversations",
	}
	cmd.AddCommand(newConversationsListCmd())
	cmd.AddCommand(newConversationsShowCmd())
	cmd.AddCommand(newConversationsCreateCmd())
	cmd.AddCommand(newConversationsRenameCmd())
	cmd.AddCommand(newConversationsAgeCmd())
	cmd.AddCommand(newConversationsArchiveCmd(true))
	cmd.AddCommand(newConversationsArchiveCmd(false))
	cmd.AddCommand(newConversationsDeleteCmd())
	return cmd
}

func newConversationsListCmd() *cobra.Command {
	var (
		scope string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations of a view",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *Application) error {
				list, err := app.engine.Coordinator.FetchConversations(ctx, chatsync.Scope(scope), force)
				if err != nil {
					return err
				}
				fmt.Fprintln(app.streams.Out, tui.RenderConversations(list))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", string(chatsync.ScopeChat), "View scope: chat, history or sidebar (history includes archived)")
	cmd.Flags().BoolVar(&force, "force", false, "Bypass the list cache")
	return cmd
}

func newConversationsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show CONVERSATION_ID",
		Short: "Show a conversation with its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *Application) error {
				conv, err := app.engine.Coordinator.FetchConversationDetail(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(app.streams.Out, tui.RenderConversation(conv))
				return nil
			})
		},
	}
}

func newConversationsCreateCmd() *cobra.Command {
	var (
		title string
		age   int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *Application) error {
				var agePtr *int
				if cmd.Flags().Changed("age") {
					agePtr = &age
				}
				conv, err := app.engine.Conversations.Create(ctx, title, agePtr)
				if err != nil {
					return err
				}
				app.notifier.Info(fmt.Sprintf("created %s (age %d)", conv.ID, conv.Age()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Conversation title")
	cmd.Flags().IntVar(&age, "age", 0, "Age context (1-19); prompted when omitted")
	return cmd
}

func newConversationsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename CONVERSATION_ID TITLE",
		Short: "Rename a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *Application) error {
				conv, err := app.engine.Conversations.Rename(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				app.notifier.Info(fmt.Sprintf("renamed %s to %q", conv.ID, conv.Title))
				return nil
			})
		},
	}
}

func newConversationsAgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "age CONVERSATION_ID AGE",
		Short: "Set the age context of a conversation that has no messages yet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *Application) error {
				age, err := strconv.Atoi(args[1])
				if err != nil {
					return platformerrors.NewError(ctx, platformerrors.LayerInterface, platformerrors.ErrorTypeValidation,
						"age must be a whole number", err, "3e4f5a6b-7c8d-4e9f-8a1b-2c3d4e5f6a7b")
				}
				conv, err := app.engine.Conversations.UpdateAgeContext(ctx, args[0], age)
				if err != nil {
					return err
				}
				app.notifier.Info(fmt.Sprintf("age context of %s set to %d", conv.ID, conv.Age()))
				return nil
			})
		},
	}
}

func newConversationsArchiveCmd(archive bool) *cobra.Command {
	use, short := "archive", "Archive a conversation"
	if !archive {
		use, short = "unarchive", "Restore an archived conversation"
	}
	return &cobra.Command{
		Use:   use + " CONVERSATION_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *Application) error {
				var err error
				if archive {
					err = app.engine.Conversations.Archive(ctx, args[0])
				} else {
					err = app.engine.Conversations.Unarchive(ctx, args[0])
				}
				if err != nil {
					return err
				}
				app.notifier.Info(fmt.Sprintf("%sd %s", use, args[0]))
				return nil
			})
		},
	}
}

func newConversationsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete CONVERSATION_ID...",
		Short: "Delete one or more conversations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *Application) error {
				// Titles for the prompt come from the history list; a failed load only costs the titles.
				if _, err := app.engine.Coordinator.FetchConversations(ctx, chatsync.ScopeHistory, false); err != nil {
					app.log.Debug().Err(err).Msg("history prefetch before delete failed")
				}
				plan, err := app.engine.Conversations.PlanBulkDelete(ctx, args)
				if err != nil {
					return err
				}
				ok, err := app.prompts.Confirm(ctx, plan.Question())
				if err != nil || !ok {
					return err
				}
				if len(plan.IDs) == 1 {
					err = app.engine.Conversations.Delete(ctx, plan.IDs[0])
				} else {
					err = app.engine.Conversations.BulkDelete(ctx, plan)
				}
				if err != nil {
					return err
				}
				app.notifier.Info(fmt.Sprintf("deleted %d conversation(s)", len(plan.IDs)))
				return nil
			})
		},
	}
}
