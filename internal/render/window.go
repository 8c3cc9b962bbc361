package render

import (
	"sync"

	"gocv.io/x/gocv"
)

// Keys that close the window like the close button does.
const (
	KeyQuit   = 'q'
	KeyEscape = 27
)

// Window is a Sink backed by a native OpenCV window. It must be created and
// used from the main OS thread.
type Window struct {
	title  string
	window *gocv.Window
	shown  bool
	closed bool
	mu     sync.Mutex
}

// NewWindow opens a window with the given title.
func NewWindow(title string) *Window {
	return &Window{
		title:  title,
		window: gocv.NewWindow(title),
	}
}

// Title returns the window title.
func (w *Window) Title() string {
	return w.title
}

// Show displays frame and pumps the window event loop for 1ms. Pressing q
// or Esc marks the window closed.
func (w *Window) Show(frame gocv.Mat) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	w.window.IMShow(frame)
	w.shown = true

	switch key := w.window.WaitKey(1); key {
	case KeyQuit, KeyEscape:
		w.closed = true
	}
}

// Visible reports whether the window is still on screen. Before the first
// frame is shown the window is not mapped yet and counts as visible.
func (w *Window) Visible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}
	if !w.shown {
		return true
	}
	if w.window.GetWindowProperty(gocv.WindowPropertyVisible) < 1 {
		w.closed = true
	}
	return !w.closed
}

// Close destroys the window. Calling it twice is a no-op.
func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	if w.window == nil {
		return nil
	}
	err := w.window.Close()
	w.window = nil
	return err
}
