// Package store persists scoring results in Postgres.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"omr-grader/internal/score"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Submission is one scored sheet.
type Submission struct {
	ID         uint `gorm:"primaryKey"`
	CreatedAt  time.Time
	Source     string         `gorm:"size:512"` // upload file name or inbox path
	SheetLabel string         `gorm:"size:255;index"`
	KeyKind    string         `gorm:"size:16"`
	Total      int            `gorm:"not null"`
	Correct    int            `gorm:"not null"`
	Incorrect  int            `gorm:"not null"`
	Percent    float64        `gorm:"not null"`
	Details    datatypes.JSON `gorm:"type:jsonb"` // score.Result
}

// Store wraps the database handle.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres. With autoMigrate set, the submissions table is
// created or updated; migration failures are logged, not fatal, so a
// read-only role can still list results.
func Open(dsn string, autoMigrate bool) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty DSN")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(db, autoMigrate), nil
}

// New wraps an existing connection.
func New(db *gorm.DB, autoMigrate bool) *Store {
	if autoMigrate {
		if err := db.AutoMigrate(&Submission{}); err != nil {
			log.Printf("migration warning (submissions): %v", err)
		}
	}
	return &Store{db: db}
}

// NewSubmission builds a record from a scoring result.
func NewSubmission(source, keyKind string, res *score.Result) (*Submission, error) {
	details, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &Submission{
		Source:     source,
		SheetLabel: res.SheetLabel,
		KeyKind:    keyKind,
		Total:      res.Total,
		Correct:    res.Correct,
		Incorrect:  res.Incorrect,
		Percent:    res.Percent(),
		Details:    datatypes.JSON(details),
	}, nil
}

// Save stores a scoring result and returns the new record.
func (s *Store) Save(source, keyKind string, res *score.Result) (*Submission, error) {
	sub, err := NewSubmission(source, keyKind, res)
	if err != nil {
		return nil, err
	}
	if err := s.db.Create(sub).Error; err != nil {
		return nil, fmt.Errorf("save submission: %w", err)
	}
	return sub, nil
}

// List returns the most recent submissions, newest first.
func (s *Store) List(limit int) ([]Submission, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var subs []Submission
	if err := s.db.Order("id desc").Limit(limit).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// Result decodes the stored details.
func (sub *Submission) Result() (*score.Result, error) {
	var res score.Result
	if err := json.Unmarshal(sub.Details, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
