// Package di provides dependency injection configuration for the NovelDeck server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/noveldeck/noveldeck-server/internal/actions"
	"github.com/noveldeck/noveldeck-server/internal/ai"
	"github.com/noveldeck/noveldeck-server/internal/books"
	"github.com/noveldeck/noveldeck-server/internal/config"
	"github.com/noveldeck/noveldeck-server/internal/content"
	"github.com/noveldeck/noveldeck-server/internal/di/providers"
	"github.com/noveldeck/noveldeck-server/internal/logger"
	"github.com/noveldeck/noveldeck-server/internal/ratelimit"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Persistence and events
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)

	// Content pipeline
	do.Provide(injector, providers.ProvideLibrary)
	do.Provide(injector, providers.ProvideActionRegistry)
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideResolver)
	do.Provide(injector, providers.ProvideProcessor)

	// Workers
	do.Provide(injector, providers.ProvideActionsWatcher)
	do.Provide(injector, providers.ProvideScheduler)
	do.Provide(injector, providers.ProvideGenerator)
	do.Provide(injector, providers.ProvideConverter)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)

	// Content pipeline
	_ = do.MustInvoke[*books.Library](injector)
	_ = do.MustInvoke[*actions.Registry](injector)
	_ = do.MustInvoke[*ratelimit.KeyedLimiter](injector)
	_ = do.MustInvoke[*ai.Resolver](injector)
	_ = do.MustInvoke[*content.Processor](injector)

	// Workers
	_ = do.MustInvoke[*providers.ActionsWatcherHandle](injector)
	_ = do.MustInvoke[*providers.SchedulerHandle](injector)
	_ = do.MustInvoke[*providers.GeneratorHandle](injector)
	_ = do.MustInvoke[*providers.ConverterHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
