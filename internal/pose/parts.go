// Package pose turns pose-estimation network output into body keypoints.
package pose

import "strconv"

// BodyPart indexes a heatmap channel of the MPI pose model.
type BodyPart int

// Body part channels in MPI order.
const (
	Head BodyPart = iota
	Neck
	RightShoulder
	RightElbow
	RightWrist
	LeftShoulder
	LeftElbow
	LeftWrist
	RightHip
	RightKnee
	RightAnkle
	LeftHip
	LeftKnee
	LeftAnkle
	Chest
)

// NumParts is the number of body part channels read from the model output.
const NumParts = 15

var partNames = [NumParts]string{
	"head", "neck",
	"right_shoulder", "right_elbow", "right_wrist",
	"left_shoulder", "left_elbow", "left_wrist",
	"right_hip", "right_knee", "right_ankle",
	"left_hip", "left_knee", "left_ankle",
	"chest",
}

// String returns the snake_case name of the part, or "part_N" outside the MPI set.
func (p BodyPart) String() string {
	if p >= 0 && int(p) < NumParts {
		return partNames[p]
	}
	return "part_" + strconv.Itoa(int(p))
}

// MarshalText makes parts serialize by name.
func (p BodyPart) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Limb is a pair of parts joined when drawing a skeleton.
type Limb struct {
	From, To BodyPart
}

// Limbs are the MPI skeleton connections.
var Limbs = []Limb{
	{Head, Neck},
	{Neck, RightShoulder},
	{RightShoulder, RightElbow},
	{RightElbow, RightWrist},
	{Neck, LeftShoulder},
	{LeftShoulder, LeftElbow},
	{LeftElbow, LeftWrist},
	{Neck, Chest},
	{Chest, RightHip},
	{RightHip, RightKnee},
	{RightKnee, RightAnkle},
	{Chest, LeftHip},
	{LeftHip, LeftKnee},
	{LeftKnee, LeftAnkle},
}
