package pipeline

import (
	"image"
	"math"

	"github.com/LdDl/pitch-tracker/mot"
	"github.com/LdDl/pitch-tracker/registration"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

// Heatmap accumulates track positions into grid of cellSize x cellSize plane units and blurs
// it with Gaussian kernel reflected at the plane borders. Sigma is in plane units, zero disables blur.
// Rows of the grid go along plane Y, columns along plane X.
func Heatmap(track *mot.Track, plane registration.OutputPlane, cellSize, sigma float64) (*mat.Dense, error) {
	if !(cellSize > 0) {
		return nil, errors.Errorf("cell size must be positive, got %v", cellSize)
	}
	if sigma < 0 {
		return nil, errors.Errorf("sigma can't be negative, got %v", sigma)
	}
	rows := int(math.Ceil(plane.Height / cellSize))
	cols := int(math.Ceil(plane.Width / cellSize))
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	grid := mat.NewDense(rows, cols, nil)
	for _, pt := range track.Points() {
		if !plane.Contains(pt) {
			continue
		}
		r := clampInt(int(pt.Y/cellSize), 0, rows-1)
		c := clampInt(int(pt.X/cellSize), 0, cols-1)
		grid.Set(r, c, grid.At(r, c)+1)
	}
	if sigma == 0 {
		return grid, nil
	}
	return gaussianBlur(grid, sigma/cellSize), nil
}

// gaussianBlur runs gocv.GaussianBlur over the grid, kernel size is derived from sigma
func gaussianBlur(grid *mat.Dense, sigma float64) *mat.Dense {
	rows, cols := grid.Dims()
	src := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV64F)
	defer src.Close()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			src.SetDoubleAt(r, c, grid.At(r, c))
		}
	}
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.GaussianBlur(src, &dst, image.Pt(0, 0), sigma, sigma, gocv.BorderReflect)

	blurred := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			blurred.Set(r, c, dst.GetDoubleAt(r, c))
		}
	}
	return blurred
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
