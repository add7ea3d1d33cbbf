// Package providers contains dependency injection providers for the NovelDeck server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/noveldeck/noveldeck-server/internal/config"
	"github.com/noveldeck/noveldeck-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})

	log.Info("Starting NovelDeck Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"books_path", cfg.Library.BooksPath,
		"db_path", cfg.Store.DBPath,
	)

	return log, nil
}
