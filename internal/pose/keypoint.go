package pose

import (
	"fmt"
	"image"

	"github.com/samber/lo"
)

// Keypoint is the most confident location of one body part, in frame pixels.
type Keypoint struct {
	Part       BodyPart `json:"part"`
	X          int      `json:"x"`
	Y          int      `json:"y"`
	Confidence float32  `json:"confidence"`
}

// Point returns the keypoint location.
func (k Keypoint) Point() image.Point {
	return image.Pt(k.X, k.Y)
}

// Above reports whether the confidence is strictly greater than threshold.
// The float32 model value is widened before comparing, so a stored 0.1
// exceeds a threshold of 0.1.
func (k Keypoint) Above(threshold float64) bool {
	return float64(k.Confidence) > threshold
}

// Rescale maps a heatmap coordinate to frame coordinates using
// p * frame / heat on each axis with integer truncation.
func Rescale(p, heat, frame image.Point) image.Point {
	return image.Pt(p.X*frame.X/heat.X, p.Y*frame.Y/heat.Y)
}

// Extract finds the peak of each of the first parts channels of stack and
// rescales it to a frame of the given size. Every channel yields a keypoint,
// including ones below any threshold.
func Extract(stack Stack, parts int, frame image.Point) ([]Keypoint, error) {
	if parts <= 0 {
		return nil, fmt.Errorf("extract keypoints: invalid part count %d", parts)
	}
	if stack.Channels < parts {
		return nil, fmt.Errorf("%w: model has %d channels, need %d", ErrStackShape, stack.Channels, parts)
	}
	if frame.X <= 0 || frame.Y <= 0 {
		return nil, fmt.Errorf("extract keypoints: invalid frame size %v", frame)
	}

	heat := stack.Size()
	keypoints := make([]Keypoint, parts)
	for n := 0; n < parts; n++ {
		peak, conf := stack.Channel(n).Peak()
		p := Rescale(peak, heat, frame)
		keypoints[n] = Keypoint{
			Part:       BodyPart(n),
			X:          p.X,
			Y:          p.Y,
			Confidence: conf,
		}
	}

	return keypoints, nil
}

// Visible returns the keypoints whose confidence exceeds threshold.
func Visible(keypoints []Keypoint, threshold float64) []Keypoint {
	return lo.Filter(keypoints, func(k Keypoint, _ int) bool {
		return k.Above(threshold)
	})
}

// ByPart indexes visible keypoints by body part.
func ByPart(keypoints []Keypoint, threshold float64) map[BodyPart]Keypoint {
	return lo.SliceToMap(Visible(keypoints, threshold), func(k Keypoint) (BodyPart, Keypoint) {
		return k.Part, k
	})
}
