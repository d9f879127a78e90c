package main

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-chat-sync/internal/config"
	"github.com/janhq/jan-chat-sync/internal/domain/agecontext"
	"github.com/janhq/jan-chat-sync/internal/domain/chatsync"
	"github.com/janhq/jan-chat-sync/internal/domain/session"
	"github.com/janhq/jan-chat-sync/internal/infrastructure/apiclient"
	"github.com/janhq/jan-chat-sync/internal/infrastructure/metrics"
	"github.com/janhq/jan-chat-sync/internal/infrastructure/observability"
	"github.com/janhq/jan-chat-sync/internal/infrastructure/persistence"
	"github.com/janhq/jan-chat-sync/internal/infrastructure/store"
	"github.com/janhq/jan-chat-sync/internal/infrastructure/telemetry"
	"github.com/janhq/jan-chat-sync/internal/interfaces/tui"
)

// Streams are the terminal handles commands read from and write to.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// Application holds the wired client components.
type Application struct {
	cfg       *config.Config
	log       zerolog.Logger
	streams   Streams
	state     *persistence.BoltStore
	store     *store.MemoryStore
	client    *apiclient.Client
	session   *session.Manager
	engine    *chatsync.Engine
	navigator *tui.Navigator
	notifier  *tui.Notifier
	prompts   *tui.Prompts
	telemetry observability.Shutdown
}

// NewApplication ties the session lifecycle to the view caches.
func NewApplication(
	cfg *config.Config,
	log zerolog.Logger,
	streams Streams,
	state *persistence.BoltStore,
	entityStore *store.MemoryStore,
	client *apiclient.Client,
	sessions *session.Manager,
	engine *chatsync.Engine,
	navigator *tui.Navigator,
	notifier *tui.Notifier,
	prompts *tui.Prompts,
	shutdown observability.Shutdown,
) *Application {
	sessions.OnSignOut(engine.Coordinator.Reset)
	return &Application{
		cfg:       cfg,
		log:       log,
		streams:   streams,
		state:     state,
		store:     entityStore,
		client:    client,
		session:   sessions,
		engine:    engine,
		navigator: navigator,
		notifier:  notifier,
		prompts:   prompts,
		telemetry: shutdown,
	}
}

// Close releases the state file, idle connections and telemetry exporters.
func (a *Application) Close(ctx context.Context) {
	if err := a.client.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close api client")
	}
	if err := a.state.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close state file")
	}
	if a.telemetry != nil {
		if err := a.telemetry(ctx); err != nil {
			a.log.Warn().Err(err).Msg("failed to shutdown telemetry")
		}
	}
}

// ===============================================
// Providers
// ===============================================

// AssumeYes answers every confirmation prompt with yes.
type AssumeYes bool

func ProvideTelemetry(ctx context.Context, cfg *config.Config, log zerolog.Logger) (observability.Shutdown, error) {
	return observability.Setup(ctx, cfg, log)
}

func ProvideState(cfg *config.Config, log zerolog.Logger) (*persistence.BoltStore, error) {
	return persistence.OpenBolt(cfg.StateFile, log)
}

func ProvideStore(log zerolog.Logger) *store.MemoryStore {
	return store.NewMemoryStore(log)
}

func ProvideNavigator(streams Streams) *tui.Navigator {
	return tui.NewNavigator(streams.Err)
}

func ProvideNotifier(streams Streams) *tui.Notifier {
	return tui.NewNotifier(streams.Err)
}

func ProvidePrompts(streams Streams, yes AssumeYes) *tui.Prompts {
	return tui.NewPrompts(streams.In, streams.Err, bool(yes))
}

func ProvideSessionManager(state *persistence.BoltStore, entityStore *store.MemoryStore, navigator *tui.Navigator, notifier *tui.Notifier, log zerolog.Logger) *session.Manager {
	return session.NewManager(state, entityStore, navigator, notifier, log)
}

func ProvideSanitizer(cfg *config.Config) *telemetry.Sanitizer {
	return telemetry.NewSanitizer(telemetry.ParsePIILevel(cfg.PIILevel), cfg.ServiceName)
}

func ProvideAPIClient(cfg *config.Config, sessions *session.Manager, sanitizer *telemetry.Sanitizer, log zerolog.Logger) *apiclient.Client {
	return apiclient.NewClient(apiclient.Options{
		BaseURL:            cfg.APIBaseURL,
		Timeout:            cfg.HTTPTimeout,
		BreakerMaxFailures: cfg.BreakerMaxFailures,
		BreakerTimeout:     cfg.BreakerTimeout,
	}, sessions, sanitizer, log)
}

func ProvideAgeResolver(state *persistence.BoltStore, prompts *tui.Prompts, entityStore *store.MemoryStore, client *apiclient.Client, log zerolog.Logger) *agecontext.Resolver {
	return agecontext.NewResolver(state, prompts, entityStore, client, log)
}

func ProvideEngine(
	cfg *config.Config,
	client *apiclient.Client,
	entityStore *store.MemoryStore,
	sessions *session.Manager,
	resolver *agecontext.Resolver,
	navigator *tui.Navigator,
	log zerolog.Logger,
) *chatsync.Engine {
	return chatsync.NewEngine(chatsync.EngineDeps{
		Gateway:   client,
		Store:     entityStore,
		Guard:     sessions,
		Resolver:  resolver,
		Navigator: navigator,
		Observer:  metrics.NewObserver(),
		Options: chatsync.CoordinatorOptions{
			TTL:      cfg.CacheTTL,
			PageSize: cfg.ListPageSize,
		},
	}, log)
}

// newApplication wires the application by hand in the same order as the wire provider set.
func newApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger, streams Streams, yes AssumeYes) (*Application, error) {
	shutdown, err := ProvideTelemetry(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	state, err := ProvideState(cfg, log)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	entityStore := ProvideStore(log)
	navigator := ProvideNavigator(streams)
	notifier := ProvideNotifier(streams)
	prompts := ProvidePrompts(streams, yes)
	sessions := ProvideSessionManager(state, entityStore, navigator, notifier, log)
	client := ProvideAPIClient(cfg, sessions, ProvideSanitizer(cfg), log)
	resolver := ProvideAgeResolver(state, prompts, entityStore, client, log)
	engine := ProvideEngine(cfg, client, entityStore, sessions, resolver, navigator, log)
	return NewApplication(cfg, log, streams, state, entityStore, client, sessions, engine, navigator, notifier, prompts, shutdown), nil
}
