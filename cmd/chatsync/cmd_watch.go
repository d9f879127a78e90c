package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/janhq/jan-chat-sync/internal/domain/chatsync"
	"github.com/janhq/jan-chat-sync/internal/domain/conversation"
	"github.com/janhq/jan-chat-sync/internal/infrastructure/observability"
)

func newWatchCmd() *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the caches fresh in the background and report changes",
		Long:  `Loads every view, then refetches expired lists and the open conversation on REFRESH_INTERVAL until interrupted. Serves Prometheus metrics on METRICS_ADDR when set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *Application) error {
				return watch(ctx, app, conversationID)
			})
		},
	}
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Conversation to keep open")
	return cmd
}

func watch(ctx context.Context, app *Application, conversationID string) error {
	if err := app.session.RequireSession(ctx); err != nil {
		return err
	}
	for _, scope := range chatsync.AllScopes() {
		if _, err := app.engine.Coordinator.FetchConversations(ctx, scope, false); err != nil {
			return err
		}
	}
	if conversationID != "" {
		if err := openConversation(ctx, app, conversationID); err != nil {
			return err
		}
	}

	unsubscribe := app.store.Subscribe(func(evt conversation.Event) {
		switch evt.Type {
		case conversation.EventConversationsChanged:
			fmt.Fprintf(app.streams.Out, "%s conversations changed\n", time.Now().Format(time.TimeOnly))
		case conversation.EventActiveConversationChanged:
			fmt.Fprintf(app.streams.Out, "%s conversation %s changed\n", time.Now().Format(time.TimeOnly), evt.ConversationID)
		}
	})
	defer unsubscribe()

	if addr := app.cfg.MetricsAddr; addr != "" {
		stopMetrics := serveMetrics(addr, app)
		defer stopMetrics()
	}

	refresher := app.engine.NewRefresher(app.store, app.cfg.RefreshInterval, app.log)
	if jobs, err := observability.NewJobInstrumenter(app.cfg.ServiceName); err != nil {
		app.log.Warn().Err(err).Msg("refresh cycles will not be traced")
	} else {
		refresher.WithInstrumentation(jobs.Instrument)
	}
	refresher.Start(ctx)
	app.notifier.Info(fmt.Sprintf("watching, refresh every %s (ctrl+c to stop)", app.cfg.RefreshInterval))

	<-ctx.Done()
	refresher.Stop()
	return nil
}

func serveMetrics(addr string, app *Application) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	handler := observability.HTTPMiddleware(app.cfg.ServiceName)(mux)
	server := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		app.log.Info().Str("addr", addr).Msg("serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
