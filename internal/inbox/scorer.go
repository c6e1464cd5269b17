package inbox

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"omr-grader/internal/grading"
	"omr-grader/internal/score"
	"omr-grader/internal/sheet"
	"omr-grader/internal/store"
)

// Grader scores sheet bytes against a key.
type Grader interface {
	ScoreSubmission(data []byte, key *grading.AnswerKey) (*score.Result, error)
}

// ResultSaver persists a scoring result. It may be nil.
type ResultSaver interface {
	Save(source, keyKind string, res *score.Result) (*store.Submission, error)
}

// Scorer grades inbox files against the session key and writes
// <name>.result.json next to each sheet.
type Scorer struct {
	Grader  Grader
	Session *grading.Session
	Results ResultSaver
}

// ResultPath returns where the result of the sheet at path is written.
func ResultPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".result.json"
}

// Scored reports whether a result file already exists for path.
func Scored(path string) bool {
	_, err := os.Stat(ResultPath(path))
	return err == nil
}

// Score grades one file. No result file is written on failure.
func (s *Scorer) Score(path string) (*score.Result, error) {
	key := s.Session.Key()
	if key == nil {
		return nil, grading.ErrNoAnswerKey
	}
	data, err := sheet.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res, err := s.Grader.ScoreSubmission(data, key)
	if err != nil {
		return nil, err
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(ResultPath(path), out, 0644); err != nil {
		return nil, err
	}
	if s.Results != nil {
		if _, err := s.Results.Save(path, string(key.Kind), res); err != nil {
			log.Printf("inbox: persisting %s: %v", filepath.Base(path), err)
		}
	}
	return res, nil
}

// Handle is a Handler that logs the outcome of Score.
func (s *Scorer) Handle(path string) {
	res, err := s.Score(path)
	if err != nil {
		log.Printf("inbox: %s: %v", filepath.Base(path), err)
		return
	}
	log.Printf("inbox: %s scored %d/%d", filepath.Base(path), res.Correct, res.Total)
}
