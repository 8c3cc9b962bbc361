// Package render draws pose overlays onto frames and shows them.
package render

import "gocv.io/x/gocv"

// Sink displays annotated frames.
type Sink interface {
	// Show displays frame. The sink must not retain it.
	Show(frame gocv.Mat)

	// Visible reports whether the display is still open. The run loop
	// stops as soon as it returns false.
	Visible() bool

	// Close disposes of the display.
	Close() error
}
