package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/noveldeck/noveldeck-server/internal/domain"
)

// GetChapterContentInput identifies one chapter in one processing mode.
type GetChapterContentInput struct {
	BookID  string `path:"bookID" doc:"Book identifier"`
	Chapter int    `path:"chapter" minimum:"1" doc:"Chapter number"`
	Mode    string `query:"mode" default:"raw" doc:"Processing mode (raw, translate, summary, or a custom action key)"`
}

// ChapterContentOutput carries resolved chapter content.
type ChapterContentOutput struct {
	Body struct {
		BookID  string `json:"book_id"`
		Chapter int    `json:"chapter"`
		Mode    string `json:"mode"`
		Content string `json:"content" doc:"HTML-lite fragment, or raw text for mode raw"`
	}
}

// DeleteChapterCacheInput identifies cached content to drop.
type DeleteChapterCacheInput struct {
	BookID  string `path:"bookID"`
	Chapter int    `path:"chapter" minimum:"1"`
	Mode    string `query:"mode" doc:"Restrict to one mode; empty clears every mode"`
}

// ClearBookCacheInput identifies a book's cache to drop.
type ClearBookCacheInput struct {
	BookID string `path:"bookID"`
	Mode   string `query:"mode" doc:"Restrict to one mode; empty clears every mode"`
}

// CacheStatsOutput summarizes the chapter cache.
type CacheStatsOutput struct {
	Body struct {
		TotalChapters int `json:"total_chapters"`
	}
}

// ListActionsOutput carries the registered action definitions.
type ListActionsOutput struct {
	Body struct {
		Actions []domain.Action `json:"actions"`
	}
}

// StatusOutput is a minimal acknowledgement body.
type StatusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func okStatus() *StatusOutput {
	out := &StatusOutput{}
	out.Body.Status = "ok"
	return out
}

func (s *Server) registerChapterRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getChapterContent",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{bookID}/chapters/{chapter}/content",
		Summary:     "Get chapter content",
		Description: "Returns the chapter in the requested mode, generating and caching it on a miss",
		Tags:        []string{"Chapters"},
	}, s.handleGetChapterContent)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteChapterCache",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/{bookID}/chapters/{chapter}/cache",
		Summary:     "Delete cached chapter content",
		Tags:        []string{"Cache"},
	}, s.handleDeleteChapterCache)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearBookCache",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/{bookID}/cache",
		Summary:     "Clear a book's cached chapters",
		Tags:        []string{"Cache"},
	}, s.handleClearBookCache)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearAllChapters",
		Method:      http.MethodDelete,
		Path:        "/api/v1/cache/chapters",
		Summary:     "Clear the whole chapter cache",
		Tags:        []string{"Cache"},
	}, s.handleClearAllChapters)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCacheStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/cache/stats",
		Summary:     "Chapter cache statistics",
		Tags:        []string{"Cache"},
	}, s.handleGetCacheStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "listActions",
		Method:      http.MethodGet,
		Path:        "/api/v1/actions",
		Summary:     "List AI actions",
		Description: "Returns builtin and user-defined processing actions",
		Tags:        []string{"Actions"},
	}, s.handleListActions)
}

func (s *Server) handleGetChapterContent(ctx context.Context, input *GetChapterContentInput) (*ChapterContentOutput, error) {
	text, err := s.processor.GetContent(ctx, input.BookID, input.Chapter, domain.Mode(input.Mode))
	if err != nil {
		return nil, err
	}

	out := &ChapterContentOutput{}
	out.Body.BookID = input.BookID
	out.Body.Chapter = input.Chapter
	out.Body.Mode = input.Mode
	out.Body.Content = text
	return out, nil
}

func (s *Server) handleDeleteChapterCache(ctx context.Context, input *DeleteChapterCacheInput) (*StatusOutput, error) {
	if err := s.store.DeleteChapter(ctx, input.BookID, input.Chapter, domain.Mode(input.Mode)); err != nil {
		return nil, err
	}
	return okStatus(), nil
}

func (s *Server) handleClearBookCache(ctx context.Context, input *ClearBookCacheInput) (*StatusOutput, error) {
	if err := s.store.ClearBook(ctx, input.BookID, domain.Mode(input.Mode)); err != nil {
		return nil, err
	}
	return okStatus(), nil
}

func (s *Server) handleClearAllChapters(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
	if err := s.store.ClearAllChapters(ctx); err != nil {
		return nil, err
	}
	return okStatus(), nil
}

func (s *Server) handleGetCacheStats(ctx context.Context, _ *struct{}) (*CacheStatsOutput, error) {
	stats, err := s.store.ChapterStats(ctx)
	if err != nil {
		return nil, err
	}
	out := &CacheStatsOutput{}
	out.Body.TotalChapters = stats.TotalChapters
	return out, nil
}

func (s *Server) handleListActions(ctx context.Context, _ *struct{}) (*ListActionsOutput, error) {
	out := &ListActionsOutput{}
	out.Body.Actions = s.actions.List()
	return out, nil
}
