package grading

import (
	"sync/atomic"

	"omr-grader/internal/config"
	"omr-grader/internal/score"
	"omr-grader/pkg/geometry"
)

// Current holds the Grader in use and lets it be swapped when thresholds
// are reloaded. A request runs entirely on the Grader it started with.
type Current struct {
	g atomic.Pointer[Grader]
}

// NewCurrent wraps g.
func NewCurrent(g *Grader) *Current {
	c := &Current{}
	c.g.Store(g)
	return c
}

// Get returns the Grader in use.
func (c *Current) Get() *Grader {
	return c.g.Load()
}

// Reload builds a Grader from params, carrying over the question limit and
// label reader, and swaps it in. On error the old Grader stays.
func (c *Current) Reload(params config.Params) error {
	old := c.Get()
	g, err := NewGrader(params)
	if err != nil {
		return err
	}
	g.questionLimit = old.questionLimit
	g.labels = old.labels
	c.g.Store(g)
	return nil
}

// RegisterBase delegates to the current Grader.
func (c *Current) RegisterBase(data []byte, questionCount int, marks []geometry.PointInt, answers []string) (*AnswerKey, error) {
	return c.Get().RegisterBase(data, questionCount, marks, answers)
}

// ScoreSubmission delegates to the current Grader.
func (c *Current) ScoreSubmission(data []byte, key *AnswerKey) (*score.Result, error) {
	return c.Get().ScoreSubmission(data, key)
}
