package pose

import (
	"errors"
	"fmt"
	"image"
)

// ErrStackShape is returned when heatmap data does not match its declared dimensions.
var ErrStackShape = errors.New("heatmap stack shape mismatch")

// Heatmap is one channel of confidence scores, stored row-major.
type Heatmap struct {
	Width  int
	Height int
	Data   []float32
}

// At returns the confidence at heatmap coordinate (x, y).
func (h Heatmap) At(x, y int) float32 {
	return h.Data[y*h.Width+x]
}

// Peak returns the location and value of the maximum confidence.
// Rows are scanned top to bottom and each row left to right; on ties the
// first maximum encountered wins. An empty heatmap returns (0,0) and 0.
func (h Heatmap) Peak() (image.Point, float32) {
	if len(h.Data) == 0 || h.Width <= 0 {
		return image.Point{}, 0
	}

	best := 0
	for i := 1; i < len(h.Data); i++ {
		if h.Data[i] > h.Data[best] {
			best = i
		}
	}

	return image.Pt(best%h.Width, best/h.Width), h.Data[best]
}

// Stack is the model output: Channels heatmaps of Width x Height, stored
// channel-major in one contiguous slice.
type Stack struct {
	Channels int
	Width    int
	Height   int
	Data     []float32
}

// NewStack validates the dimensions against data and returns a Stack.
// The data slice is used as is, not copied.
func NewStack(channels, height, width int, data []float32) (Stack, error) {
	if channels <= 0 || height <= 0 || width <= 0 {
		return Stack{}, fmt.Errorf("%w: %dx%dx%d", ErrStackShape, channels, height, width)
	}
	if want := channels * height * width; len(data) != want {
		return Stack{}, fmt.Errorf("%w: have %d values, want %d", ErrStackShape, len(data), want)
	}
	return Stack{Channels: channels, Width: width, Height: height, Data: data}, nil
}

// Size returns the heatmap resolution as a point (width, height).
func (s Stack) Size() image.Point {
	return image.Pt(s.Width, s.Height)
}

// Channel returns a view of heatmap n. It panics if n is out of range.
func (s Stack) Channel(n int) Heatmap {
	if n < 0 || n >= s.Channels {
		panic(fmt.Sprintf("pose: channel %d out of range [0,%d)", n, s.Channels))
	}
	plane := s.Width * s.Height
	return Heatmap{
		Width:  s.Width,
		Height: s.Height,
		Data:   s.Data[n*plane : (n+1)*plane],
	}
}
