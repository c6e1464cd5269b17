// Package grading registers answer keys from base sheets and scores
// submitted sheets against them.
package grading

import (
	"fmt"
	"time"

	"omr-grader/internal/mark"
	"omr-grader/pkg/geometry"
)

// KeyKind tells how an answer key was captured, which decides the matcher.
type KeyKind string

const (
	// KindPoints keys hold one correct-answer coordinate per question and
	// are scored by proximity.
	KindPoints KeyKind = "points"
	// KindGrid keys hold one letter per question plus the slot layout and
	// are scored by grid position.
	KindGrid KeyKind = "grid"
)

// Entry is the expected answer of one question.
type Entry struct {
	Question int              `json:"question"`
	Mark     *mark.Candidate  `json:"mark,omitempty"`  // KindPoints
	Label    string           `json:"label,omitempty"` // KindGrid
	Slots    []mark.Candidate `json:"slots,omitempty"` // KindGrid, one per alternative when detected
}

// AnswerKey is the registered reference for one grading session. It is
// never modified after registration; registering a new base sheet builds a
// new key.
type AnswerKey struct {
	Kind          KeyKind   `json:"kind"`
	QuestionCount int       `json:"question_count"`
	Alternatives  string    `json:"alternatives,omitempty"`
	Entries       []Entry   `json:"entries"`
	Width         int       `json:"width"`    // normalized reference width
	Height        int       `json:"height"`   // normalized reference height
	Rotation      int       `json:"rotation"` // degrees clockwise applied to the uploaded base sheet
	Orientation   string    `json:"orientation,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Points returns the expected coordinates of a KindPoints key.
func (k *AnswerKey) Points() []geometry.PointInt {
	pts := make([]geometry.PointInt, 0, len(k.Entries))
	for _, e := range k.Entries {
		if e.Mark != nil {
			pts = append(pts, e.Mark.Center)
		}
	}
	return pts
}

// HasSlots reports whether every question of a grid key carries its
// registered slot positions.
func (k *AnswerKey) HasSlots() bool {
	if k.Kind != KindGrid || len(k.Entries) == 0 {
		return false
	}
	for _, e := range k.Entries {
		if len(e.Slots) == 0 {
			return false
		}
	}
	return true
}

// SourceSize returns the size of the base sheet as uploaded, before the
// orientation turn.
func (k *AnswerKey) SourceSize() (width, height int) {
	if k.Rotation == 90 || k.Rotation == 270 {
		return k.Height, k.Width
	}
	return k.Width, k.Height
}

// Labels returns the expected letters of a KindGrid key.
func (k *AnswerKey) Labels() []string {
	labels := make([]string, len(k.Entries))
	for i, e := range k.Entries {
		labels[i] = e.Label
	}
	return labels
}

// Validate checks the key invariants: entries numbered 1..QuestionCount
// without gaps, each carrying the answer its kind requires.
func (k *AnswerKey) Validate() error {
	if k.QuestionCount < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidQuestionCount, k.QuestionCount)
	}
	if len(k.Entries) != k.QuestionCount {
		return fmt.Errorf("%w: %d entries for %d questions", ErrIncompleteKey, len(k.Entries), k.QuestionCount)
	}
	for i, e := range k.Entries {
		if e.Question != i+1 {
			return fmt.Errorf("%w: entry %d numbered %d", ErrIncompleteKey, i+1, e.Question)
		}
		switch k.Kind {
		case KindPoints:
			if e.Mark == nil {
				return fmt.Errorf("%w: question %d has no mark", ErrIncompleteKey, e.Question)
			}
		case KindGrid:
			if len(e.Label) != 1 || !containsLetter(k.Alternatives, e.Label) {
				return fmt.Errorf("%w: question %d label %q", ErrInvalidAnswer, e.Question, e.Label)
			}
		default:
			return fmt.Errorf("unknown key kind %q", k.Kind)
		}
	}
	return nil
}

func containsLetter(alternatives, label string) bool {
	for _, r := range alternatives {
		if string(r) == label {
			return true
		}
	}
	return false
}
