//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-chat-sync/internal/config"
)

// ProviderSet is the wire provider set for the application.
var ProviderSet = wire.NewSet(
	// Infrastructure providers
	ProvideTelemetry,
	ProvideState,
	ProvideStore,
	ProvideSanitizer,
	ProvideAPIClient,

	// Interface providers
	ProvideNavigator,
	ProvideNotifier,
	ProvidePrompts,

	// Domain providers
	ProvideSessionManager,
	ProvideAgeResolver,
	ProvideEngine,

	// Application
	NewApplication,
)

// InitializeApplication creates the application with all dependencies wired.
func InitializeApplication(
	ctx context.Context,
	cfg *config.Config,
	log zerolog.Logger,
	streams Streams,
	yes AssumeYes,
) (*Application, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
