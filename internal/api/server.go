// Package api provides the HTTP API server for the NovelDeck pipelines.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/noveldeck/noveldeck-server/internal/actions"
	"github.com/noveldeck/noveldeck-server/internal/books"
	"github.com/noveldeck/noveldeck-server/internal/content"
	"github.com/noveldeck/noveldeck-server/internal/prefetch"
	"github.com/noveldeck/noveldeck-server/internal/sse"
	"github.com/noveldeck/noveldeck-server/internal/store"
	"github.com/noveldeck/noveldeck-server/internal/tts"
)

// Server holds dependencies for the HTTP handlers.
type Server struct {
	store      store.Store
	library    *books.Library
	actions    *actions.Registry
	processor  *content.Processor
	scheduler  *prefetch.Scheduler
	generator  *prefetch.Generator
	converter  *tts.Converter
	sseHandler *sse.Handler
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes configured.
func NewServer(
	st store.Store,
	library *books.Library,
	registry *actions.Registry,
	processor *content.Processor,
	scheduler *prefetch.Scheduler,
	generator *prefetch.Generator,
	converter *tts.Converter,
	sseHandler *sse.Handler,
	logger *slog.Logger,
) *Server {
	router := chi.NewRouter()
	// chi requires every middleware before the first route, and
	// humachi.New registers huma's docs routes immediately.
	setupMiddleware(router)

	humaConfig := huma.DefaultConfig("NovelDeck API", "1.0.0")
	api := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		store:      st,
		library:    library,
		actions:    registry,
		processor:  processor,
		scheduler:  scheduler,
		generator:  generator,
		converter:  converter,
		sseHandler: sseHandler,
		router:     router,
		api:        api,
		logger:     logger,
	}

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func setupMiddleware(router *chi.Mux) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerChapterRoutes()
	s.registerPrefetchRoutes()
	s.registerAudioRoutes()

	// SSE sits outside huma; it streams instead of returning a body.
	s.router.Get("/api/v1/events", s.sseHandler.ServeHTTP)
}
