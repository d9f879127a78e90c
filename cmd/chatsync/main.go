package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/spf13/cobra"

	"github.com/janhq/jan-chat-sync/internal/config"
	"github.com/janhq/jan-chat-sync/internal/infrastructure/logger"
)

var version = "0.1.0"

// rootOptions are flags that override file and environment configuration.
type rootOptions struct {
	configFile string
	apiURL     string
	stateFile  string
	logLevel   string
	yes        bool
}

var opts rootOptions

// handledError has already been reported to the user through the notifier.
type handledError struct{ err error }

func (e handledError) Error() string { return e.err.Error() }
func (e handledError) Unwrap() error { return e.err }

func main() {
	config.LoadEnvFiles(".env")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		var handled handledError
		if !errors.As(err, &handled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chatsync",
		Short: "Chat client with an offline-friendly conversation cache",
		Long: `chatsync talks to the chat backend and keeps a local mirror of your
conversations consistent with it.

Examples:
  chatsync login --token "$TOKEN"
  chatsync chat send "what is a noun?"
  chatsync conversations list --scope history
  chatsync messages edit conv_1 msg_3 "what is a pronoun?"
  chatsync watch`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML config file (overrides "+config.FileEnvVar+")")
	flags.StringVar(&opts.apiURL, "api-url", "", "Chat backend base URL")
	flags.StringVar(&opts.stateFile, "state-file", "", "Local state file")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.BoolVarP(&opts.yes, "yes", "y", false, "Answer yes to every confirmation")

	root.AddCommand(newLoginCmd())
	root.AddCommand(newLogoutCmd())
	root.AddCommand(newWhoamiCmd())
	root.AddCommand(newConversationsCmd())
	root.AddCommand(newChatCmd())
	root.AddCommand(newMessagesCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newConfigCmd())
	return root
}

// loadConfig applies flags on top of the YAML file and environment.
func loadConfig() (*config.Config, error) {
	path := opts.configFile
	if path == "" {
		path = os.Getenv(config.FileEnvVar)
	}
	cfg, err := config.LoadFrom(path, env.ToMap(os.Environ()))
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(opts.apiURL); v != "" {
		cfg.APIBaseURL = v
	}
	if v := strings.TrimSpace(opts.stateFile); v != "" {
		cfg.StateFile = v
	}
	if v := strings.TrimSpace(opts.logLevel); v != "" {
		cfg.LogLevel = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runWithApp builds the application for one command and funnels its error
// through the session manager, which signs out on AuthRequired.
func runWithApp(cmd *cobra.Command, fn func(ctx context.Context, app *Application) error) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	streams := Streams{In: cmd.InOrStdin(), Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()}
	app, err := newApplication(ctx, cfg, log, streams, AssumeYes(opts.yes))
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	if err := fn(ctx, app); err != nil {
		return handledError{err: app.session.HandleError(ctx, err)}
	}
	return nil
}
