package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartPrefetch(t *testing.T) {
	server, root := setupTestServer(t)
	for _, name := range []string{"1.txt", "2.txt", "3.txt"} {
		writeChapter(t, root, "book-1", name, "text")
	}

	body := map[string]any{"from_chapter": 1, "mode": "translate"}
	rec := doRequest(t, server, http.MethodPost, "/api/v1/books/book-1/prefetch", body)
	require.Equal(t, http.StatusOK, rec.Code)

	// The run is asynchronous; wait for the window behind chapter 1 to land.
	deadline := time.After(2 * time.Second)
	for {
		rec = doRequest(t, server, http.MethodGet, "/api/v1/cache/stats", nil)
		stats := decodeBody[struct {
			TotalChapters int `json:"total_chapters"`
		}](t, rec)
		if stats.TotalChapters == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("prefetch did not warm the cache, have %d chapters", stats.TotalChapters)
		case <-time.After(10 * time.Millisecond):
		}
	}

	rec = doRequest(t, server, http.MethodPost, "/api/v1/prefetch/abort", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartPrefetch_UnknownMode(t *testing.T) {
	server, root := setupTestServer(t)
	writeChapter(t, root, "book-1", "1.txt", "text")

	body := map[string]any{"from_chapter": 1, "mode": "paraphrase"}
	rec := doRequest(t, server, http.MethodPost, "/api/v1/books/book-1/prefetch", body)
	require.Equal(t, http.StatusNotFound, rec.Code)

	errBody := decodeBody[errorBody](t, rec)
	assert.Equal(t, "NOT_FOUND", errBody.Code)
}

func TestStartPrefetch_UnknownBook(t *testing.T) {
	server, _ := setupTestServer(t)

	body := map[string]any{"from_chapter": 1, "mode": "translate"}
	rec := doRequest(t, server, http.MethodPost, "/api/v1/books/missing/prefetch", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGeneration_ProgressLifecycle(t *testing.T) {
	server, root := setupTestServer(t)
	writeChapter(t, root, "book-1", "1.txt", "one")
	writeChapter(t, root, "book-1", "2.txt", "two")

	body := map[string]any{"mode": "summary"}
	rec := doRequest(t, server, http.MethodPost, "/api/v1/books/book-1/generate", body)
	require.Equal(t, http.StatusOK, rec.Code)

	// A finished run deletes its progress row, so the endpoint returns
	// 404 once every chapter is cached.
	deadline := time.After(2 * time.Second)
	for {
		rec = doRequest(t, server, http.MethodGet, "/api/v1/cache/stats", nil)
		stats := decodeBody[struct {
			TotalChapters int `json:"total_chapters"`
		}](t, rec)
		if stats.TotalChapters == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("generation did not finish, have %d chapters", stats.TotalChapters)
		case <-time.After(10 * time.Millisecond):
		}
	}

	rec = doRequest(t, server, http.MethodPost, "/api/v1/generate/abort", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/api/v1/books/book-1/generate/progress", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetGenerateProgress_NoRun(t *testing.T) {
	server, _ := setupTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/books/book-1/generate/progress", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	errBody := decodeBody[errorBody](t, rec)
	assert.Equal(t, "NOT_FOUND", errBody.Code)
}
