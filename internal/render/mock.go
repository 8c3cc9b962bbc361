package render

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockSink records shown frames for testing. It reports itself closed after
// a fixed number of frames.
type MockSink struct {
	closeAfter int
	keepLast   bool
	shown      int
	closed     bool
	closes     int
	last       gocv.Mat
	hasLast    bool
	mu         sync.Mutex
}

// NewMockSink creates a MockSink that turns invisible after closeAfter
// frames. closeAfter <= 0 keeps it visible until Close.
func NewMockSink(closeAfter int) *MockSink {
	return &MockSink{closeAfter: closeAfter}
}

// KeepLast makes the sink keep a copy of the last shown frame.
func (s *MockSink) KeepLast() *MockSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keepLast = true
	return s
}

func (s *MockSink) Show(frame gocv.Mat) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.shown++
	if s.keepLast {
		if s.hasLast {
			s.last.Close()
		}
		s.last = frame.Clone()
		s.hasLast = true
	}
	if s.closeAfter > 0 && s.shown >= s.closeAfter {
		s.closed = true
	}
}

func (s *MockSink) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *MockSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.closes++
	if s.hasLast {
		s.last.Close()
		s.hasLast = false
	}
	return nil
}

// Shown returns how many frames were displayed.
func (s *MockSink) Shown() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shown
}

// Closes returns how many times Close was called.
func (s *MockSink) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Last returns a copy of the last shown frame, if KeepLast was set.
// The caller owns the returned Mat.
func (s *MockSink) Last() (gocv.Mat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasLast {
		return gocv.NewMat(), false
	}
	return s.last.Clone(), true
}
