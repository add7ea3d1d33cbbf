package providers

import (
	"github.com/samber/do/v2"

	"github.com/noveldeck/noveldeck-server/internal/actions"
	"github.com/noveldeck/noveldeck-server/internal/ai"
	"github.com/noveldeck/noveldeck-server/internal/books"
	"github.com/noveldeck/noveldeck-server/internal/config"
	"github.com/noveldeck/noveldeck-server/internal/content"
	"github.com/noveldeck/noveldeck-server/internal/logger"
	"github.com/noveldeck/noveldeck-server/internal/ratelimit"
)

// ProvideLibrary provides the on-disk book library.
func ProvideLibrary(i do.Injector) (*books.Library, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return books.New(cfg.Library.BooksPath, log), nil
}

// ProvideActionRegistry provides the action registry, loaded from the
// configured actions file.
func ProvideActionRegistry(i do.Injector) (*actions.Registry, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	registry, err := actions.NewRegistry(cfg.Actions.Path, log)
	if err != nil {
		return nil, err
	}

	log.Info("Action registry loaded", "path", cfg.Actions.Path, "actions", len(registry.List()))

	return registry, nil
}

// ProvideRateLimiter provides the per-credential limiter for outbound
// AI provider calls.
func ProvideRateLimiter(i do.Injector) (*ratelimit.KeyedLimiter, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return ratelimit.New(cfg.AI.RequestsPerSecond, 1), nil
}

// ProvideResolver provides the AI provider resolver.
func ProvideResolver(i do.Injector) (*ai.Resolver, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	limiter := do.MustInvoke[*ratelimit.KeyedLimiter](i)

	return ai.NewResolver(cfg, limiter, log), nil
}

// ProvideProcessor provides the content pipeline.
func ProvideProcessor(i do.Injector) (*content.Processor, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	library := do.MustInvoke[*books.Library](i)
	registry := do.MustInvoke[*actions.Registry](i)
	resolver := do.MustInvoke[*ai.Resolver](i)

	return content.NewProcessor(storeHandle.Store, library, registry, resolver, sseHandle.Manager, log), nil
}
