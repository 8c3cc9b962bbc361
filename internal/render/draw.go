package render

import (
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"

	"github.com/ayusman/posecam/internal/pose"
)

// Overlay defaults.
var (
	// MarkerColor is yellow, BGR (0,255,255).
	MarkerColor = color.RGBA{R: 255, G: 255, B: 0, A: 0}
	// LyingColor labels a body lying down.
	LyingColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	// UprightColor labels any other posture.
	UprightColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
)

const (
	// DefaultRadius is the marker circle radius in pixels.
	DefaultRadius = 5
	// filled makes gocv.Circle fill the shape.
	filled = -1
)

// LabelOrigin is where the posture label is drawn.
var LabelOrigin = image.Pt(50, 50)

// Style controls how keypoints are drawn.
type Style struct {
	Threshold   float64
	Radius      int
	MarkerColor color.RGBA
	// Skeleton draws limbs between visible joints under the markers.
	Skeleton      bool
	LineThickness int
}

// DefaultStyle returns yellow radius-5 markers above 0.1 confidence.
func DefaultStyle() Style {
	return Style{
		Threshold:     0.1,
		Radius:        DefaultRadius,
		MarkerColor:   MarkerColor,
		LineThickness: 2,
	}
}

// Overlay draws keypoints, the skeleton and the posture label onto frames.
type Overlay struct {
	style      Style
	limbColors []color.RGBA
}

// NewOverlay creates an Overlay with the given style.
func NewOverlay(style Style) *Overlay {
	if style.Radius <= 0 {
		style.Radius = DefaultRadius
	}
	if style.LineThickness <= 0 {
		style.LineThickness = 2
	}
	return &Overlay{
		style:      style,
		limbColors: Palette(len(pose.Limbs)),
	}
}

// Style returns the overlay style.
func (o *Overlay) Style() Style {
	return o.style
}

// Draw renders the skeleton (if enabled) and the markers, and returns the
// number of markers drawn.
func (o *Overlay) Draw(img *gocv.Mat, keypoints []pose.Keypoint) int {
	if o.style.Skeleton {
		o.DrawSkeleton(img, keypoints)
	}
	return o.DrawMarkers(img, keypoints)
}

// DrawMarkers draws a filled circle on every keypoint whose confidence is
// strictly above the threshold and returns how many were drawn.
func (o *Overlay) DrawMarkers(img *gocv.Mat, keypoints []pose.Keypoint) int {
	drawn := 0
	for _, k := range keypoints {
		if !k.Above(o.style.Threshold) {
			continue
		}
		gocv.Circle(img, k.Point(), o.style.Radius, o.style.MarkerColor, filled)
		drawn++
	}
	return drawn
}

// DrawSkeleton joins each limb whose two ends are both visible and returns
// how many limbs were drawn.
func (o *Overlay) DrawSkeleton(img *gocv.Mat, keypoints []pose.Keypoint) int {
	visible := pose.ByPart(keypoints, o.style.Threshold)
	drawn := 0
	for i, limb := range pose.Limbs {
		from, ok := visible[limb.From]
		if !ok {
			continue
		}
		to, ok := visible[limb.To]
		if !ok {
			continue
		}
		gocv.Line(img, from.Point(), to.Point(), o.limbColors[i], o.style.LineThickness)
		drawn++
	}
	return drawn
}

// DrawPosture writes the posture label at LabelOrigin. Unknown postures
// draw nothing.
func (o *Overlay) DrawPosture(img *gocv.Mat, posture pose.Posture) bool {
	label := posture.Label()
	if label == "" {
		return false
	}
	c := UprightColor
	if posture == pose.PostureLying {
		c = LyingColor
	}
	gocv.PutText(img, label, LabelOrigin, gocv.FontHersheySimplex, 1, c, 2)
	return true
}

// Palette returns n fully saturated colors evenly spaced around the hue
// circle.
func Palette(n int) []color.RGBA {
	colors := make([]color.RGBA, n)
	for i := range colors {
		hue := float64(i) * 360 / float64(n)
		r, g, b := colorful.Hsv(hue, 1, 1).RGB255()
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 0}
	}
	return colors
}
