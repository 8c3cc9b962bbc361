package pose

import (
	"github.com/montanaflynn/stats"
)

// Posture is a coarse body orientation derived from keypoints.
type Posture int

const (
	PostureUnknown Posture = iota
	PostureUpright
	PostureLying
)

// Posture classification constants.
const (
	// LyingSpread is the largest vertical spread, as a fraction of frame
	// height, of the torso and leg joints for a body to count as lying down.
	LyingSpread = 0.2
	// MinPostureJoints is the number of visible torso and leg joints needed.
	MinPostureJoints = 4
)

var postureJoints = []BodyPart{
	RightShoulder, LeftShoulder,
	RightHip, LeftHip,
	RightKnee, LeftKnee,
	RightAnkle, LeftAnkle,
}

func (p Posture) String() string {
	switch p {
	case PostureUpright:
		return "upright"
	case PostureLying:
		return "lying"
	default:
		return "unknown"
	}
}

// MarshalText makes postures serialize by name.
func (p Posture) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Label is the overlay text for the posture, empty when unknown.
func (p Posture) Label() string {
	switch p {
	case PostureUpright:
		return "Not Lying Down"
	case PostureLying:
		return "Lying Down"
	default:
		return ""
	}
}

// ClassifyPosture decides whether the body is lying down from the vertical
// spread of shoulders, hips, knees and ankles above threshold.
func ClassifyPosture(keypoints []Keypoint, frameHeight int, threshold float64) Posture {
	if frameHeight <= 0 {
		return PostureUnknown
	}

	visible := ByPart(keypoints, threshold)
	ys := make(stats.Float64Data, 0, len(postureJoints))
	for _, part := range postureJoints {
		if k, ok := visible[part]; ok {
			ys = append(ys, float64(k.Y)/float64(frameHeight))
		}
	}
	if len(ys) < MinPostureJoints {
		return PostureUnknown
	}

	top, err := ys.Min()
	if err != nil {
		return PostureUnknown
	}
	bottom, err := ys.Max()
	if err != nil {
		return PostureUnknown
	}

	if bottom-top < LyingSpread {
		return PostureLying
	}
	return PostureUpright
}
