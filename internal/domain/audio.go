package domain

import "time"

// AudioSegment records one synthesized sentence in the DB-backed audio index.
// The audio file on disk is the source of truth for cache hits; the index
// exists so the client can list a task's segments without walking the
// cache directory.
type AudioSegment struct {
	TaskID    string    `json:"task_id"`
	Index     int       `json:"index"`
	Sentence  string    `json:"sentence"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}
