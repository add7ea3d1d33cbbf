// Package sse implements Server-Sent Events for pipeline progress
// broadcasting. The reading client subscribes once and hears about
// chapter processing, prefetch progress, and audio segments as they
// complete.
package sse

import (
	"time"
)

// EventType represents the type of SSE event.
type EventType string

const (
	// EventChapterProcessing fires when a chapter enters AI processing.
	EventChapterProcessing EventType = "chapter.processing"
	// EventChapterReady fires when processed content is cached and servable.
	EventChapterReady EventType = "chapter.ready"
	// EventChapterFailed fires when processing a chapter failed.
	EventChapterFailed EventType = "chapter.failed"

	// EventPrefetchProgress reports chapters completed within a prefetch run.
	EventPrefetchProgress EventType = "prefetch.progress"
	// EventPrefetchCompleted fires when a prefetch run drains its window.
	EventPrefetchCompleted EventType = "prefetch.completed"
	// EventPrefetchFailed fires when a prefetch run aborts on a critical error.
	EventPrefetchFailed EventType = "prefetch.failed"

	// EventAudioReady fires per synthesized sentence, in playback order.
	EventAudioReady EventType = "audio.ready"
	// EventAudioFailed fires when a conversion run gives up on a sentence.
	EventAudioFailed EventType = "audio.failed"

	// EventHeartbeat keeps idle connections alive.
	EventHeartbeat EventType = "heartbeat"
)

// Event is one SSE event queued for broadcast.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// ChapterEventData is the payload of chapter.* events.
type ChapterEventData struct {
	BookID  string `json:"book_id"`
	Chapter int    `json:"chapter"`
	Mode    string `json:"mode"`
	Error   string `json:"error,omitempty"`
}

// PrefetchEventData is the payload of prefetch.* events.
type PrefetchEventData struct {
	BookID    string `json:"book_id"`
	Mode      string `json:"mode"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Chapter   int    `json:"chapter,omitempty"`
	Error     string `json:"error,omitempty"`
}

// AudioEventData is the payload of audio.* events.
type AudioEventData struct {
	TaskID   string `json:"task_id"`
	Index    int    `json:"index"`
	Sentence string `json:"sentence,omitempty"`
	Path     string `json:"path,omitempty"`
	Error    string `json:"error,omitempty"`
}

// HeartbeatEventData is the payload of heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewChapterEvent creates a chapter.* event.
func NewChapterEvent(eventType EventType, bookID string, chapter int, mode string, errMsg string) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data: ChapterEventData{
			BookID:  bookID,
			Chapter: chapter,
			Mode:    mode,
			Error:   errMsg,
		},
	}
}

// NewPrefetchEvent creates a prefetch.* event.
func NewPrefetchEvent(eventType EventType, data PrefetchEventData) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewAudioEvent creates an audio.* event.
func NewAudioEvent(eventType EventType, data AudioEventData) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now(),
		Data:      HeartbeatEventData{ServerTime: time.Now()},
	}
}
