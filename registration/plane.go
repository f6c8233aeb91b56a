package registration

import (
	"github.com/pkg/errors"
)

// OutputPlane is the fixed top-down rectangle [0, Width] x [0, Height] representing the playing surface
type OutputPlane struct {
	Width  float64
	Height float64
	// Real-world size of the surface in metres (e.g. 105 x 68 for a football pitch)
	PitchLength float64
	PitchWidth  float64
}

// NewOutputPlane creates output plane
func NewOutputPlane(width, height, pitchLength, pitchWidth float64) (OutputPlane, error) {
	if !(width > 0) || !(height > 0) {
		return OutputPlane{}, errors.Errorf("output plane must have positive size, got %vx%v", width, height)
	}
	if pitchLength < 0 || pitchWidth < 0 {
		return OutputPlane{}, errors.Errorf("pitch size can't be negative, got %vx%v", pitchLength, pitchWidth)
	}
	return OutputPlane{
		Width:       width,
		Height:      height,
		PitchLength: pitchLength,
		PitchWidth:  pitchWidth,
	}, nil
}

// Corners returns plane corners in the order top-left, top-right, bottom-left, bottom-right
func (plane OutputPlane) Corners() [4]Point {
	return [4]Point{
		{X: 0, Y: 0},
		{X: plane.Width, Y: 0},
		{X: 0, Y: plane.Height},
		{X: plane.Width, Y: plane.Height},
	}
}

// Contains reports whether point lies inside the plane, borders included
func (plane OutputPlane) Contains(p Point) bool {
	return p.X >= 0 && p.X <= plane.Width && p.Y >= 0 && p.Y <= plane.Height
}

// ToPitch converts plane units to metres. The second value is false when pitch size is unknown.
func (plane OutputPlane) ToPitch(p Point) (Point, bool) {
	if plane.PitchLength <= 0 || plane.PitchWidth <= 0 {
		return Point{}, false
	}
	return Point{
		X: p.X * plane.PitchLength / plane.Width,
		Y: p.Y * plane.PitchWidth / plane.Height,
	}, true
}
