package grading

import "errors"

var (
	// ErrNoMarksDetected is returned when automatic detection finds no
	// bubbles at all; the sheet cannot be registered or scored.
	ErrNoMarksDetected = errors.New("no marks detected")

	// ErrNoAnswerKey is returned when scoring is requested before a base
	// sheet was registered (or after a reset).
	ErrNoAnswerKey = errors.New("no answer key registered")

	// ErrInvalidQuestionCount is returned for a question count outside 1..limit.
	ErrInvalidQuestionCount = errors.New("invalid question count")

	// ErrIncompleteKey is returned when registration cannot produce an
	// expected answer for every declared question.
	ErrIncompleteKey = errors.New("answer key incomplete")

	// ErrInvalidAnswer is returned for a supplied letter outside the
	// alternative set or a supplied point outside the image.
	ErrInvalidAnswer = errors.New("invalid answer")
)
