package mot

import (
	"math"
)

// Point is a 2D position. For tracks it is always expressed in OutputPlane units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

// DistanceTo returns euclidean distance to other point
func (p Point) DistanceTo(other Point) float64 {
	return euclideanDistance(p, other)
}

// IsFinite reports whether both coordinates are neither NaN nor infinite
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(float64(p1.X-p2.X), 2) + math.Pow(float64(p1.Y-p2.Y), 2))
}

// Color is an RGB triple assigned to a track for display purposes
type Color [3]uint8
