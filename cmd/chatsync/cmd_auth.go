package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

func newLoginCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a backend access token",
		Long:  `Stores the token in the local state file and caches your profile. Without --token the token is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *Application) error {
				if strings.TrimSpace(token) == "" {
					line, err := bufio.NewReader(app.streams.In).ReadString('\n')
					if err != nil && line == "" {
						return platformerrors.NewError(ctx, platformerrors.LayerInterface, platformerrors.ErrorTypeValidation,
							"no token given", err, "2d3e4f5a-6b7c-4d8e-9f0a-1b2c3d4e5f6a")
					}
					token = line
				}
				u, err := app.session.SignIn(ctx, token, nil, app.client)
				if err != nil {
					return err
				}
				app.notifier.Info(fmt.Sprintf("signed in as %s <%s>", u.Name, u.Email))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Access token")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session token and cached data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *Application) error {
				app.session.SignOut(ctx)
				app.notifier.Info("signed out")
				return nil
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *Application) error {
				if err := app.session.RequireSession(ctx); err != nil {
					return err
				}
				u, err := app.session.CurrentUser(ctx)
				if err != nil {
					return err
				}
				if u == nil {
					if u, err = app.client.CurrentUser(ctx); err != nil {
						return err
					}
				}
				fmt.Fprintf(app.streams.Out, "%s <%s> (%s)\n", u.Name, u.Email, u.Role)
				return nil
			})
		},
	}
}
