package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/noveldeck/noveldeck-server/internal/domain"
	"github.com/noveldeck/noveldeck-server/internal/errors"
	"github.com/noveldeck/noveldeck-server/internal/tts"
)

// ConvertChapterAudioInput requests synthesis of one chapter.
type ConvertChapterAudioInput struct {
	BookID  string `path:"bookID"`
	Chapter int    `path:"chapter" minimum:"1"`
	Body    struct {
		Mode   string `json:"mode" doc:"Processing mode whose content is spoken"`
		TaskID string `json:"task_id,omitempty" doc:"Caller-supplied task identity; derived from the chapter when empty"`
	}
}

// ConvertChapterAudioOutput returns the synthesized file paths in
// playback order. Partial on cancellation, empty on a critical abort.
type ConvertChapterAudioOutput struct {
	Body struct {
		TaskID    string   `json:"task_id"`
		Paths     []string `json:"paths"`
		Sentences int      `json:"sentences" doc:"Sentences submitted for synthesis"`
	}
}

// AudioSegmentsInput identifies a conversion task.
type AudioSegmentsInput struct {
	TaskID string `path:"taskID"`
}

// AudioSegmentsOutput lists a task's indexed segments.
type AudioSegmentsOutput struct {
	Body struct {
		TaskID   string                 `json:"task_id"`
		Segments []*domain.AudioSegment `json:"segments"`
	}
}

// ClearAudioTaskInput identifies a task's cached audio.
type ClearAudioTaskInput struct {
	TaskID string `path:"taskID"`
}

func (s *Server) registerAudioRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "convertChapterAudio",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{bookID}/chapters/{chapter}/audio",
		Summary:     "Synthesize chapter audio",
		Description: "Segments the chapter's content and synthesizes it sentence by sentence, emitting audio.ready events as segments land",
		Tags:        []string{"Audio"},
	}, s.handleConvertChapterAudio)

	huma.Register(s.api, huma.Operation{
		OperationID: "cancelConversion",
		Method:      http.MethodPost,
		Path:        "/api/v1/audio/cancel",
		Summary:     "Cancel the active conversion run",
		Tags:        []string{"Audio"},
	}, s.handleCancelConversion)

	huma.Register(s.api, huma.Operation{
		OperationID: "listAudioSegments",
		Method:      http.MethodGet,
		Path:        "/api/v1/audio/{taskID}/segments",
		Summary:     "List a task's audio segments",
		Tags:        []string{"Audio"},
	}, s.handleListAudioSegments)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearAudioTask",
		Method:      http.MethodDelete,
		Path:        "/api/v1/audio/{taskID}",
		Summary:     "Remove one task's cached audio",
		Tags:        []string{"Audio"},
	}, s.handleClearAudioTask)

	huma.Register(s.api, huma.Operation{
		OperationID: "clearAudioCache",
		Method:      http.MethodDelete,
		Path:        "/api/v1/cache/audio",
		Summary:     "Clear the whole audio cache",
		Tags:        []string{"Audio"},
	}, s.handleClearAudioCache)
}

func (s *Server) handleConvertChapterAudio(ctx context.Context, input *ConvertChapterAudioInput) (*ConvertChapterAudioOutput, error) {
	mode := input.Body.Mode
	if mode == "" {
		mode = string(domain.ModeRaw)
	}
	text, err := s.processor.GetContent(ctx, input.BookID, input.Chapter, domain.Mode(mode))
	if err != nil {
		return nil, err
	}

	sentences := tts.Segment(text)
	if len(sentences) == 0 {
		return nil, errors.Validation("chapter has no speakable text")
	}

	taskID := input.Body.TaskID
	if taskID == "" {
		taskID = fmt.Sprintf("%s-%d-%s", input.BookID, input.Chapter, mode)
	}

	paths, err := s.converter.Convert(ctx, taskID, sentences)
	if err != nil {
		return nil, err
	}

	out := &ConvertChapterAudioOutput{}
	out.Body.TaskID = taskID
	out.Body.Paths = paths
	out.Body.Sentences = len(sentences)
	return out, nil
}

func (s *Server) handleCancelConversion(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
	s.converter.Cancel()
	return okStatus(), nil
}

func (s *Server) handleListAudioSegments(ctx context.Context, input *AudioSegmentsInput) (*AudioSegmentsOutput, error) {
	segments, err := s.converter.Segments(ctx, input.TaskID)
	if err != nil {
		return nil, err
	}
	out := &AudioSegmentsOutput{}
	out.Body.TaskID = input.TaskID
	out.Body.Segments = segments
	return out, nil
}

func (s *Server) handleClearAudioTask(ctx context.Context, input *ClearAudioTaskInput) (*StatusOutput, error) {
	if err := s.converter.ClearTask(ctx, input.TaskID); err != nil {
		return nil, err
	}
	return okStatus(), nil
}

func (s *Server) handleClearAudioCache(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
	if err := s.converter.ClearCache(ctx); err != nil {
		return nil, err
	}
	return okStatus(), nil
}
