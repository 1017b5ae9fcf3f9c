// Package signal provides a resettable binary event that many goroutines can
// wait on.
package signal

import "sync"

// Signal is a binary flag. Set wakes every current waiter; Clear re-arms it.
// The zero value is ready to use and unset.
type Signal struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{}
}

// New returns an unset Signal.
func New() *Signal {
	return &Signal{}
}

// Set raises the signal. Setting an already-set signal is a no-op.
func (s *Signal) Set() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		return
	}
	s.set = true
	if s.ch == nil {
		s.ch = make(chan struct{})
	}
	close(s.ch)
}

// Clear lowers the signal so later waiters block again.
func (s *Signal) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return
	}
	s.set = false
	s.ch = make(chan struct{})
}

// IsSet reports whether the signal is raised.
func (s *Signal) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Wait returns a channel that is closed once the signal is set. A channel
// obtained before Clear stays closed; call Wait again after Clear.
func (s *Signal) Wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		s.ch = make(chan struct{})
	}
	return s.ch
}
