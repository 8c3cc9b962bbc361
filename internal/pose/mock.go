package pose

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockEngine is a test implementation of the Engine interface.
// It returns a pre-configured stack regardless of the frame.
type MockEngine struct {
	stack  Stack
	err    error
	calls  int
	closed bool
	mu     sync.Mutex
}

// NewMockEngine creates a MockEngine that returns stack.
func NewMockEngine(stack Stack) *MockEngine {
	return &MockEngine{stack: stack}
}

// SetStack sets the stack returned by Infer.
func (m *MockEngine) SetStack(stack Stack) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stack = stack
}

// SetError sets the error returned by Infer.
func (m *MockEngine) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Infer returns the configured stack or error.
func (m *MockEngine) Infer(frame gocv.Mat) (Stack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return Stack{}, m.err
	}
	return m.stack, nil
}

// Calls returns how many times Infer ran.
func (m *MockEngine) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the engine closed.
func (m *MockEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockEngine) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// PeakStack builds a stack of zeros with one value per channel set by peaks.
// Keys are channel indices; values give the heatmap coordinate and score.
func PeakStack(channels, height, width int, peaks map[int]Peak) Stack {
	data := make([]float32, channels*height*width)
	plane := height * width
	for n, p := range peaks {
		data[n*plane+p.Y*width+p.X] = p.Value
	}
	return Stack{Channels: channels, Width: width, Height: height, Data: data}
}

// Peak places a score at a heatmap coordinate for PeakStack.
type Peak struct {
	X, Y  int
	Value float32
}
