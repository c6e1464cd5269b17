// Package score matches detected marks against an answer key.
package score

import (
	"omr-grader/pkg/geometry"
)

// UndeterminedLabel is shown for a question whose answer could not be read.
const UndeterminedLabel = "-"

// Verdict is the binary outcome for one question.
type Verdict string

const (
	Correct   Verdict = "correct"
	Incorrect Verdict = "incorrect"
)

// Answer is either a letter label, a pixel coordinate, or explicitly
// undetermined. Exactly one of the three is set.
type Answer struct {
	Label        string             `json:"label,omitempty"`
	Point        *geometry.PointInt `json:"point,omitempty"`
	Undetermined bool               `json:"undetermined,omitempty"`
}

// LabelAnswer returns an answer holding a letter. The undetermined label
// maps to an undetermined answer.
func LabelAnswer(label string) Answer {
	if label == "" || label == UndeterminedLabel {
		return UndeterminedAnswer()
	}
	return Answer{Label: label}
}

// PointAnswer returns an answer holding a coordinate.
func PointAnswer(p geometry.PointInt) Answer {
	return Answer{Point: &p}
}

// UndeterminedAnswer returns the explicit "could not read" answer.
func UndeterminedAnswer() Answer {
	return Answer{Undetermined: true}
}

func (a Answer) String() string {
	switch {
	case a.Undetermined:
		return UndeterminedLabel
	case a.Point != nil:
		return a.Point.String()
	default:
		return a.Label
	}
}

// QuestionResult is the per-question breakdown of a scoring run.
type QuestionResult struct {
	Question int     `json:"question"`
	Expected Answer  `json:"expected"`
	Detected Answer  `json:"detected"`
	Verdict  Verdict `json:"verdict"`
}

// Mark is a candidate found on the scored sheet, for overlays.
type Mark struct {
	Center geometry.PointInt `json:"center"`
	Radius int               `json:"radius,omitempty"`
	Filled bool              `json:"filled"`
}

// Result is the outcome of scoring one sheet. It is built fresh for every
// run and never updated afterwards.
type Result struct {
	Total              int              `json:"total"`
	Correct            int              `json:"correct"`
	Incorrect          int              `json:"incorrect"`
	Questions          []QuestionResult `json:"questions"`
	CorrectQuestions   []int            `json:"correct_questions"`
	IncorrectQuestions []int            `json:"incorrect_questions"`

	// SizeMismatch is set when the sheet yielded a different number of
	// answers than the key declares; scoring still covers the key's range.
	SizeMismatch bool   `json:"size_mismatch,omitempty"`
	Marks        []Mark `json:"marks,omitempty"`
	SheetLabel   string `json:"sheet_label,omitempty"`
	Orientation  string `json:"orientation,omitempty"`
}

// Percent returns the share of correct answers in [0, 100].
func (r *Result) Percent() float64 {
	if r.Total == 0 {
		return 0
	}
	return 100 * float64(r.Correct) / float64(r.Total)
}

// tally builds a Result from per-question outcomes numbered 1..N.
func tally(questions []QuestionResult) *Result {
	r := &Result{
		Total:              len(questions),
		Questions:          questions,
		CorrectQuestions:   []int{},
		IncorrectQuestions: []int{},
	}
	for _, q := range questions {
		if q.Verdict == Correct {
			r.Correct++
			r.CorrectQuestions = append(r.CorrectQuestions, q.Question)
		} else {
			r.IncorrectQuestions = append(r.IncorrectQuestions, q.Question)
		}
	}
	r.Incorrect = r.Total - r.Correct
	return r
}
