package domain

import "time"

// PrefetchStatus represents the state of a prefetch task.
type PrefetchStatus string

const (
	PrefetchStatusPending    PrefetchStatus = "pending"
	PrefetchStatusProcessing PrefetchStatus = "processing"
	PrefetchStatusCompleted  PrefetchStatus = "completed"
	PrefetchStatusFailed     PrefetchStatus = "failed"
)

// PrefetchTask represents one chapter scheduled for background generation.
// Tasks live only for the duration of a prefetch run; they are not persisted
// and failed tasks are not retried within the same run.
type PrefetchTask struct {
	BookID  string `json:"book_id"`
	Chapter int    `json:"chapter"`
	Mode    Mode   `json:"mode"`

	// Priority orders dequeue; lower is more urgent. Set to the distance
	// from the reader's current chapter so closer chapters win.
	Priority int `json:"priority"`

	Status    PrefetchStatus `json:"status"`
	LastError string         `json:"last_error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewPrefetchTask creates a pending task for one chapter. Priority is
// the distance from the reader's current chapter.
func NewPrefetchTask(bookID string, chapter int, mode Mode, priority int) *PrefetchTask {
	return &PrefetchTask{
		BookID:    bookID,
		Chapter:   chapter,
		Mode:      mode,
		Priority:  priority,
		Status:    PrefetchStatusPending,
		CreatedAt: time.Now(),
	}
}

// Key returns the chapter identity of the task.
func (t *PrefetchTask) Key() ChapterKey {
	return ChapterKey{BookID: t.BookID, Chapter: t.Chapter, Mode: t.Mode}
}

// MarkProcessing transitions the task to processing state.
func (t *PrefetchTask) MarkProcessing() {
	t.Status = PrefetchStatusProcessing
}

// MarkCompleted transitions the task to completed state.
func (t *PrefetchTask) MarkCompleted() {
	t.Status = PrefetchStatusCompleted
	now := time.Now()
	t.CompletedAt = &now
}

// MarkFailed transitions the task to failed state and records the error.
func (t *PrefetchTask) MarkFailed(errMsg string) {
	t.Status = PrefetchStatusFailed
	t.LastError = errMsg
	now := time.Now()
	t.CompletedAt = &now
}
