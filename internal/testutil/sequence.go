// Package testutil holds deterministic collaborators shared by tests and
// the conformance harness.
package testutil

import "sync"

// Sequence is a resettable monotonic counter.
//
// Thread-safety: all methods are safe for concurrent use.
type Sequence struct {
	mu sync.Mutex
	n  int64
}

// Next increments and returns the counter. The first call returns 1.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n
}

// Current returns the last value handed out, or 0.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Reset restarts the counter. The next call to Next returns 1.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}
