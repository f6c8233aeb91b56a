package registration

import (
	"math"

	"github.com/LdDl/pitch-tracker/mot"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Point is a 2D position in pixel or OutputPlane space
type Point = mot.Point

const (
	// Points with homogeneous coordinate closer to zero map to infinity
	homogeneousEps = 1e-12
	// Twice the triangle area below which three points are treated as collinear
	collinearEps = 1e-6
)

// Homography is a 3x3 projective transform in row-major order applied to homogeneous 2D points
type Homography struct {
	m [9]float64
}

// NewHomography creates homography from row-major values
func NewHomography(values [9]float64) Homography {
	return Homography{m: values}
}

// Values returns row-major values
func (h Homography) Values() [9]float64 {
	return h.m
}

// dense returns gonum copy of the matrix
func (h Homography) dense() *mat.Dense {
	values := h.m
	return mat.NewDense(3, 3, values[:])
}

func homographyFromDense(d mat.Matrix) Homography {
	var h Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h.m[r*3+c] = d.At(r, c)
		}
	}
	return h
}

// Apply transforms single point. The second value is false when the point maps to infinity.
func (h Homography) Apply(p Point) (Point, bool) {
	w := h.m[6]*p.X + h.m[7]*p.Y + h.m[8]
	if math.Abs(w) < homogeneousEps {
		return Point{}, false
	}
	result := Point{
		X: (h.m[0]*p.X + h.m[1]*p.Y + h.m[2]) / w,
		Y: (h.m[3]*p.X + h.m[4]*p.Y + h.m[5]) / w,
	}
	return result, result.IsFinite()
}

// ApplyAll transforms every point. It fails with ErrDegenerateGeometry if any point maps to infinity.
func (h Homography) ApplyAll(points []Point) ([]Point, error) {
	result := make([]Point, len(points))
	for i, p := range points {
		transformed, ok := h.Apply(p)
		if !ok {
			return nil, errors.Wrapf(ErrDegenerateGeometry, "point %d (%v) maps to infinity", i, p)
		}
		result[i] = transformed
	}
	return result, nil
}

// Inverse returns inverse transform
func (h Homography) Inverse() (Homography, error) {
	var inv mat.Dense
	err := inv.Inverse(h.dense())
	if err != nil {
		return Homography{}, errors.Wrapf(ErrDegenerateGeometry, "can't invert homography: %v", err)
	}
	return homographyFromDense(&inv).Normalized(), nil
}

// Normalized returns the same transform scaled so the bottom-right element equals 1.
// When that element is (close to) zero, the matrix is scaled to unit Frobenius norm instead.
func (h Homography) Normalized() Homography {
	scale := h.m[8]
	if math.Abs(scale) < homogeneousEps {
		scale = mat.Norm(h.dense(), 2)
		if scale == 0 {
			return h
		}
	}
	var result Homography
	for i := range h.m {
		result.m[i] = h.m[i] / scale
	}
	return result
}

// Equal reports whether both transforms are the same up to scale within tolerance
func (h Homography) Equal(other Homography, tolerance float64) bool {
	a := h.Normalized()
	b := other.Normalized()
	for i := range a.m {
		if math.Abs(a.m[i]-b.m[i]) > tolerance {
			return false
		}
	}
	return true
}

// FromFourPoints computes exact homography mapping src[i] -> dst[i].
// No three points of either quadrilateral may be collinear.
func FromFourPoints(src, dst [4]Point) (Homography, error) {
	if err := checkQuad(src); err != nil {
		return Homography{}, errors.Wrap(err, "source points")
	}
	if err := checkQuad(dst); err != nil {
		return Homography{}, errors.Wrap(err, "destination points")
	}
	// Build 8x8 system A*h = b for the 8 unknowns (h00..h21), h22=1
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		X, Y := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		r := 2 * i
		// x' = (h00 X + h01 Y + h02)/(h20 X + h21 Y + 1)
		a.SetRow(r, []float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x})
		b.SetVec(r, x)
		// y' = (h10 X + h11 Y + h12)/(h20 X + h21 Y + 1)
		a.SetRow(r+1, []float64{0, 0, 0, X, Y, 1, -X * y, -Y * y})
		b.SetVec(r+1, y)
	}
	var h mat.VecDense
	err := h.SolveVec(a, b)
	if err != nil {
		return Homography{}, errors.Wrapf(ErrDegenerateGeometry, "can't solve 4-point system: %v", err)
	}
	return Homography{m: [9]float64{
		h.AtVec(0), h.AtVec(1), h.AtVec(2),
		h.AtVec(3), h.AtVec(4), h.AtVec(5),
		h.AtVec(6), h.AtVec(7), 1,
	}}, nil
}

func checkQuad(points [4]Point) error {
	for i, p := range points {
		if !p.IsFinite() {
			return errors.Wrapf(ErrDegenerateGeometry, "point %d is not finite", i)
		}
	}
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			for k := j + 1; k < 4; k++ {
				if collinear(points[i], points[j], points[k]) {
					return errors.Wrapf(ErrDegenerateGeometry, "points %d, %d, %d are collinear", i, j, k)
				}
			}
		}
	}
	return nil
}

func collinear(a, b, c Point) bool {
	area := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	return math.Abs(area) < collinearEps
}
