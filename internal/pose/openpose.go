package pose

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// OpenPose runs a Caffe (or any gocv-readable) pose network on the CPU.
type OpenPose struct {
	net    gocv.Net
	config Config
	mu     sync.Mutex
}

// NewOpenPose loads the network from config.Topology and config.Weights.
// Missing files return ErrModelNotFound; unreadable ones ErrModelLoad.
func NewOpenPose(config Config) (*OpenPose, error) {
	for _, path := range []string{config.Topology, config.Weights} {
		if path == "" {
			return nil, fmt.Errorf("%w: empty path", ErrModelNotFound)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
	}
	if config.InputWidth <= 0 || config.InputHeight <= 0 {
		return nil, fmt.Errorf("invalid input size %dx%d", config.InputWidth, config.InputHeight)
	}

	net := gocv.ReadNet(config.Weights, config.Topology)
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("%w: %s, %s", ErrModelLoad, config.Topology, config.Weights)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}

	return &OpenPose{
		net:    net,
		config: config,
	}, nil
}

// Infer builds the input blob from frame, runs a forward pass and copies the
// output into a Stack. The blob and output Mats are released before returning.
func (o *OpenPose) Infer(frame gocv.Mat) (Stack, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if frame.Empty() {
		return Stack{}, fmt.Errorf("infer: empty frame")
	}

	mean := gocv.NewScalar(o.config.Mean[0], o.config.Mean[1], o.config.Mean[2], 0)
	size := image.Pt(o.config.InputWidth, o.config.InputHeight)

	blob := gocv.BlobFromImage(frame, o.config.Scale, size, mean, o.config.SwapRB, o.config.Crop)
	defer blob.Close()

	o.net.SetInput(blob, "")

	output := o.net.Forward("")
	defer output.Close()

	return stackFromMat(output)
}

// Close releases the network.
func (o *OpenPose) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.net.Close()
}

// stackFromMat copies a [1, C, H, W] float32 output blob into a Stack.
func stackFromMat(output gocv.Mat) (Stack, error) {
	dims := output.Size()
	if len(dims) != 4 || dims[0] != 1 {
		return Stack{}, fmt.Errorf("%w: output dims %v, want [1 C H W]", ErrStackShape, dims)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return Stack{}, fmt.Errorf("read output: %w", err)
	}

	values := make([]float32, len(data))
	copy(values, data)

	return NewStack(dims[1], dims[2], dims[3], values)
}
