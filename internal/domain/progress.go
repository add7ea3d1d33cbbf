package domain

import (
	"slices"
	"time"
)

// AutoGenerateProgress tracks a long-running "generate the whole book"
// operation so a stopped run can resume where it left off. Persisted per
// book; deleted on full completion or explicit clear.
type AutoGenerateProgress struct {
	BookID            string    `json:"book_id"`
	Mode              Mode      `json:"mode"`
	CurrentChapter    int       `json:"current_chapter"`
	TotalChapters     int       `json:"total_chapters"`
	IsRunning         bool      `json:"is_running"`
	CompletedChapters []int     `json:"completed_chapters"`
	LastError         string    `json:"last_error,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// MarkCompleted records a chapter as done. The completed set only grows
// during a run; duplicates are ignored.
func (p *AutoGenerateProgress) MarkCompleted(chapter int) {
	if slices.Contains(p.CompletedChapters, chapter) {
		return
	}
	p.CompletedChapters = append(p.CompletedChapters, chapter)
	slices.Sort(p.CompletedChapters)
}

// IsCompleted reports whether a chapter has already been generated.
func (p *AutoGenerateProgress) IsCompleted(chapter int) bool {
	return slices.Contains(p.CompletedChapters, chapter)
}

// Done reports whether every chapter of the book has been generated.
func (p *AutoGenerateProgress) Done() bool {
	return p.TotalChapters > 0 && len(p.CompletedChapters) >= p.TotalChapters
}

// NextChapter returns the first chapter that still needs generation,
// or 0 when the run is complete.
func (p *AutoGenerateProgress) NextChapter() int {
	for ch := 1; ch <= p.TotalChapters; ch++ {
		if !p.IsCompleted(ch) {
			return ch
		}
	}
	return 0
}
