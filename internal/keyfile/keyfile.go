// Package keyfile persists answer keys so a grading session can be resumed
// or shared between the CLI and the server.
package keyfile

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"omr-grader/internal/config"
	"omr-grader/internal/grading"
)

// CurrentVersion is the file format version written by Save.
const CurrentVersion = 1

// File is an answer key file (.omrkey.json).
type File struct {
	Version  int       `json:"version"`
	Name     string    `json:"name,omitempty"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	Key *grading.AnswerKey `json:"key"`

	// Thresholds the key was registered with; scoring should use the same
	// alternative set and tolerance.
	Settings Settings `json:"settings"`
}

// Settings holds the registration parameters that affect scoring.
type Settings struct {
	Alternatives   string `json:"alternatives"`
	MatchTolerance int    `json:"match_tolerance"`
	MatchMetric    string `json:"match_metric"`
	Orientation    string `json:"orientation"`
}

// New wraps a registered key.
func New(name string, key *grading.AnswerKey, params config.Params) *File {
	now := time.Now()
	return &File{
		Version:  CurrentVersion,
		Name:     name,
		Created:  now,
		Modified: now,
		Key:      key,
		Settings: Settings{
			Alternatives:   params.Alternatives,
			MatchTolerance: params.MatchTolerance,
			MatchMetric:    params.MatchMetric,
			Orientation:    params.Orientation,
		},
	}
}

// Load reads and validates a key file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse key file %s: %w", path, err)
	}
	if f.Version < 1 || f.Version > CurrentVersion {
		return nil, fmt.Errorf("key file %s: unsupported version %d", path, f.Version)
	}
	if f.Key == nil {
		return nil, fmt.Errorf("key file %s: no key", path)
	}
	if err := f.Key.Validate(); err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return &f, nil
}

// Save writes the file as indented JSON.
func (f *File) Save(path string) error {
	f.Modified = time.Now()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Apply overlays the stored settings on params so scoring matches
// registration.
func (f *File) Apply(params config.Params) config.Params {
	s := f.Settings
	if s.Alternatives != "" {
		params = params.WithAlternatives(s.Alternatives)
	}
	if s.MatchMetric != "" {
		params = params.WithTolerance(s.MatchTolerance, s.MatchMetric)
	}
	if s.Orientation != "" {
		params = params.WithOrientation(s.Orientation)
	}
	return params
}
