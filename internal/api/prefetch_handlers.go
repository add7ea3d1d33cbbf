package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/noveldeck/noveldeck-server/internal/domain"
)

// StartPrefetchInput starts warming the window after the reader's
// current chapter.
type StartPrefetchInput struct {
	BookID string `path:"bookID"`
	Body   struct {
		FromChapter int    `json:"from_chapter" minimum:"0" doc:"Reader's current chapter"`
		Mode        string `json:"mode" doc:"Processing mode to prefetch"`
	}
}

// StartGenerationInput starts (or resumes) whole-book generation.
type StartGenerationInput struct {
	BookID string `path:"bookID"`
	Body   struct {
		Mode string `json:"mode" doc:"Processing mode to generate"`
	}
}

// GenerateProgressInput identifies a book's generation run.
type GenerateProgressInput struct {
	BookID string `path:"bookID"`
}

// GenerateProgressOutput reports a persisted generation run.
type GenerateProgressOutput struct {
	Body struct {
		BookID            string    `json:"book_id"`
		Mode              string    `json:"mode"`
		CurrentChapter    int       `json:"current_chapter"`
		TotalChapters     int       `json:"total_chapters"`
		IsRunning         bool      `json:"is_running"`
		CompletedChapters []int     `json:"completed_chapters"`
		LastError         string    `json:"last_error,omitempty"`
		UpdatedAt         time.Time `json:"updated_at"`
	}
}

func (s *Server) registerPrefetchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "startPrefetch",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{bookID}/prefetch",
		Summary:     "Prefetch upcoming chapters",
		Description: "Warms the cache for the chapters after the reader's position; replaces any in-flight run",
		Tags:        []string{"Prefetch"},
	}, s.handleStartPrefetch)

	huma.Register(s.api, huma.Operation{
		OperationID: "abortPrefetch",
		Method:      http.MethodPost,
		Path:        "/api/v1/prefetch/abort",
		Summary:     "Abort the active prefetch run",
		Tags:        []string{"Prefetch"},
	}, s.handleAbortPrefetch)

	huma.Register(s.api, huma.Operation{
		OperationID: "startGeneration",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{bookID}/generate",
		Summary:     "Generate a whole book",
		Description: "Starts or resumes background generation of every chapter of the book",
		Tags:        []string{"Prefetch"},
	}, s.handleStartGeneration)

	huma.Register(s.api, huma.Operation{
		OperationID: "abortGeneration",
		Method:      http.MethodPost,
		Path:        "/api/v1/generate/abort",
		Summary:     "Abort the active generation run",
		Tags:        []string{"Prefetch"},
	}, s.handleAbortGeneration)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAutoGenerateProgress",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{bookID}/generate/progress",
		Summary:     "Whole-book generation progress",
		Tags:        []string{"Prefetch"},
	}, s.handleGetGenerateProgress)
}

func (s *Server) handleStartPrefetch(ctx context.Context, input *StartPrefetchInput) (*StatusOutput, error) {
	mode := domain.Mode(input.Body.Mode)
	if _, err := s.actions.Get(string(mode)); err != nil {
		return nil, err
	}
	total, err := s.library.TotalChapters(input.BookID)
	if err != nil {
		return nil, err
	}

	s.scheduler.Prefetch(input.BookID, input.Body.FromChapter, mode, total)
	return okStatus(), nil
}

func (s *Server) handleAbortPrefetch(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
	s.scheduler.Abort()
	return okStatus(), nil
}

func (s *Server) handleStartGeneration(ctx context.Context, input *StartGenerationInput) (*StatusOutput, error) {
	mode := domain.Mode(input.Body.Mode)
	if _, err := s.actions.Get(string(mode)); err != nil {
		return nil, err
	}
	total, err := s.library.TotalChapters(input.BookID)
	if err != nil {
		return nil, err
	}

	if err := s.generator.Start(input.BookID, mode, total); err != nil {
		return nil, err
	}
	return okStatus(), nil
}

func (s *Server) handleAbortGeneration(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
	s.generator.Abort()
	return okStatus(), nil
}

func (s *Server) handleGetGenerateProgress(ctx context.Context, input *GenerateProgressInput) (*GenerateProgressOutput, error) {
	progress, err := s.generator.Progress(ctx, input.BookID)
	if err != nil {
		return nil, err
	}

	out := &GenerateProgressOutput{}
	out.Body.BookID = progress.BookID
	out.Body.Mode = string(progress.Mode)
	out.Body.CurrentChapter = progress.CurrentChapter
	out.Body.TotalChapters = progress.TotalChapters
	out.Body.IsRunning = progress.IsRunning
	out.Body.CompletedChapters = progress.CompletedChapters
	out.Body.LastError = progress.LastError
	out.Body.UpdatedAt = progress.UpdatedAt
	return out, nil
}
