package grading

import "sync/atomic"

// Session holds the answer key of one grading session. Scoring reads a
// snapshot of the key; Replace swaps in a new key wholesale, so in-flight
// scoring keeps using the key it started with and needs no lock.
type Session struct {
	key atomic.Pointer[AnswerKey]
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{}
}

// Key returns the current key, or nil when none is registered.
func (s *Session) Key() *AnswerKey {
	return s.key.Load()
}

// Replace installs a new key.
func (s *Session) Replace(k *AnswerKey) {
	s.key.Store(k)
}

// Reset discards the current key.
func (s *Session) Reset() {
	s.key.Store(nil)
}
