package api

import (
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type convertAudioBody struct {
	TaskID    string   `json:"task_id"`
	Paths     []string `json:"paths"`
	Sentences int      `json:"sentences"`
}

func TestConvertChapterAudio(t *testing.T) {
	server, root := setupTestServer(t)
	writeChapter(t, root, "book-1", "1.txt", "First sentence here. Second sentence here.")

	body := map[string]any{"mode": "raw"}
	rec := doRequest(t, server, http.MethodPost, "/api/v1/books/book-1/chapters/1/audio", body)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody[convertAudioBody](t, rec)
	assert.Equal(t, "book-1-1-raw", out.TaskID)
	assert.Equal(t, 2, out.Sentences)
	require.Len(t, out.Paths, 2)
	for _, path := range out.Paths {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "audio", string(data))
	}
}

func TestConvertChapterAudio_CustomTaskID(t *testing.T) {
	server, root := setupTestServer(t)
	writeChapter(t, root, "book-1", "1.txt", "Only one sentence here.")

	body := map[string]any{"mode": "raw", "task_id": "my-task"}
	rec := doRequest(t, server, http.MethodPost, "/api/v1/books/book-1/chapters/1/audio", body)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody[convertAudioBody](t, rec)
	assert.Equal(t, "my-task", out.TaskID)
}

func TestConvertChapterAudio_MissingChapter(t *testing.T) {
	server, _ := setupTestServer(t)

	body := map[string]any{"mode": "raw"}
	rec := doRequest(t, server, http.MethodPost, "/api/v1/books/book-1/chapters/9/audio", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAudioSegments(t *testing.T) {
	server, root := setupTestServer(t)
	writeChapter(t, root, "book-1", "1.txt", "First sentence here. Second sentence here.")

	body := map[string]any{"mode": "raw"}
	rec := doRequest(t, server, http.MethodPost, "/api/v1/books/book-1/chapters/1/audio", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, server, http.MethodGet, "/api/v1/audio/book-1-1-raw/segments", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody[struct {
		TaskID   string `json:"task_id"`
		Segments []struct {
			Index    int    `json:"index"`
			Sentence string `json:"sentence"`
			Path     string `json:"path"`
		} `json:"segments"`
	}](t, rec)

	require.Len(t, out.Segments, 2)
	assert.Equal(t, 0, out.Segments[0].Index)
	assert.Equal(t, 1, out.Segments[1].Index)
	assert.Contains(t, out.Segments[0].Sentence, "First sentence")
}

func TestClearAudioTask(t *testing.T) {
	server, root := setupTestServer(t)
	writeChapter(t, root, "book-1", "1.txt", "First sentence here. Second sentence here.")

	body := map[string]any{"mode": "raw"}
	rec := doRequest(t, server, http.MethodPost, "/api/v1/books/book-1/chapters/1/audio", body)
	require.Equal(t, http.StatusOK, rec.Code)
	converted := decodeBody[convertAudioBody](t, rec)

	rec = doRequest(t, server, http.MethodDelete, "/api/v1/audio/book-1-1-raw", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, path := range converted.Paths {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), "expected %s to be removed", path)
	}

	rec = doRequest(t, server, http.MethodGet, "/api/v1/audio/book-1-1-raw/segments", nil)
	out := decodeBody[struct {
		Segments []any `json:"segments"`
	}](t, rec)
	assert.Empty(t, out.Segments)
}

func TestClearAudioCache(t *testing.T) {
	server, root := setupTestServer(t)
	writeChapter(t, root, "book-1", "1.txt", "First sentence here.")
	writeChapter(t, root, "book-2", "1.txt", "Second book sentence.")

	for _, book := range []string{"book-1", "book-2"} {
		rec := doRequest(t, server, http.MethodPost, "/api/v1/books/"+book+"/chapters/1/audio", map[string]any{"mode": "raw"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(t, server, http.MethodDelete, "/api/v1/cache/audio", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, task := range []string{"book-1-1-raw", "book-2-1-raw"} {
		rec = doRequest(t, server, http.MethodGet, "/api/v1/audio/"+task+"/segments", nil)
		out := decodeBody[struct {
			Segments []any `json:"segments"`
		}](t, rec)
		assert.Empty(t, out.Segments)
	}
}
