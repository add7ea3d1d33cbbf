package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/noveldeck/noveldeck-server/internal/actions"
	"github.com/noveldeck/noveldeck-server/internal/api"
	"github.com/noveldeck/noveldeck-server/internal/books"
	"github.com/noveldeck/noveldeck-server/internal/config"
	"github.com/noveldeck/noveldeck-server/internal/content"
	"github.com/noveldeck/noveldeck-server/internal/logger"
	"github.com/noveldeck/noveldeck-server/internal/sse"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	library := do.MustInvoke[*books.Library](i)
	registry := do.MustInvoke[*actions.Registry](i)
	processor := do.MustInvoke[*content.Processor](i)
	schedulerHandle := do.MustInvoke[*SchedulerHandle](i)
	generatorHandle := do.MustInvoke[*GeneratorHandle](i)
	converterHandle := do.MustInvoke[*ConverterHandle](i)

	sseHandler := sse.NewHandler(sseHandle.Manager, log.Logger)

	handler := api.NewServer(
		storeHandle.Store,
		library,
		registry,
		processor,
		schedulerHandle.Scheduler,
		generatorHandle.Generator,
		converterHandle.Converter,
		sseHandler,
		log.Logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
