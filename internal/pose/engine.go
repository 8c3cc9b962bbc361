package pose

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

// Model loading errors. Both are fatal at startup.
var (
	ErrModelNotFound = errors.New("model file not found")
	ErrModelLoad     = errors.New("failed to load model")
)

// Engine runs a pose-estimation network on a frame.
type Engine interface {
	// Infer runs one synchronous forward pass and returns the heatmap stack.
	Infer(frame gocv.Mat) (Stack, error)

	// Close releases the network.
	Close() error
}

// Config describes how to load the network and build its input blob.
type Config struct {
	// Topology is the network description, e.g. a Caffe .prototxt.
	Topology string
	// Weights holds the learned parameters, e.g. a .caffemodel.
	Weights string

	// InputWidth and InputHeight are the blob resolution.
	InputWidth  int
	InputHeight int

	// Scale multiplies every pixel value.
	Scale float64
	// Mean is subtracted per channel before scaling.
	Mean [3]float64
	// SwapRB swaps the red and blue channels.
	SwapRB bool
	// Crop center-crops instead of stretching to the input size.
	Crop bool
}

// DefaultConfig returns the OpenPose MPI input settings.
func DefaultConfig() Config {
	return Config{
		Topology:    "models/pose_deploy_linevec_faster_4_stages.prototxt",
		Weights:     "models/pose_iter_160000.caffemodel",
		InputWidth:  368,
		InputHeight: 368,
		Scale:       1.0 / 255.0,
	}
}

// FrameSize returns the frame dimensions as a point (cols, rows).
func FrameSize(frame gocv.Mat) image.Point {
	return image.Pt(frame.Cols(), frame.Rows())
}
