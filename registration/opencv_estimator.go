package registration

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Estimator robustly fits homography mapping src[i] -> dst[i].
// Inliers mask has one element per correspondence.
type Estimator interface {
	Estimate(src, dst []Point) (Homography, []bool, error)
}

// EstimatorConfig holds parameters of robust homography estimation
type EstimatorConfig struct {
	// Maximum reprojection error (in dst units) to treat a point pair as an inlier. Default 5.0
	Threshold float64
	// The maximum number of RANSAC iterations. Default 2000
	MaxIterations int
	// Confidence level, between 0 and 1. Default 0.995
	Confidence float64
}

// DefaultEstimatorConfig returns default estimation parameters
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		Threshold:     5.0,
		MaxIterations: 2000,
		Confidence:    0.995,
	}
}

// OpenCVEstimator delegates robust fitting to OpenCV's findHomography with RANSAC
type OpenCVEstimator struct {
	// Maximum allowed reprojection error to treat a point pair as an inlier
	threshold float64
	// The maximum number of RANSAC iterations
	maxIters int
	// Confidence level, between 0 and 1
	confidence float64
}

// NewOpenCVEstimator creates estimator backed by gocv.FindHomography
func NewOpenCVEstimator(threshold float64, maxIters int, confidence float64) *OpenCVEstimator {
	return &OpenCVEstimator{
		threshold:  threshold,
		maxIters:   maxIters,
		confidence: confidence,
	}
}

func (e *OpenCVEstimator) Estimate(src, dst []Point) (Homography, []bool, error) {
	if len(src) != len(dst) {
		return Homography{}, nil, errors.Errorf("got %d source and %d destination points", len(src), len(dst))
	}
	if len(src) < 4 {
		return Homography{}, nil, errors.Wrapf(ErrDegenerateGeometry, "need at least 4 correspondences, got %d", len(src))
	}
	srcMat := pointsToMat(src)
	defer srcMat.Close()
	dstMat := pointsToMat(dst)
	defer dstMat.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	h := gocv.FindHomography(srcMat, &dstMat, gocv.HomograpyMethodRANSAC, e.threshold, &mask, e.maxIters, e.confidence)
	defer h.Close()
	if h.Empty() || h.Rows() != 3 || h.Cols() != 3 {
		return Homography{}, nil, errors.Wrap(ErrDegenerateGeometry, "findHomography returned no model")
	}
	var values [9]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			values[r*3+c] = h.GetDoubleAt(r, c)
		}
	}
	inliers := make([]bool, len(src))
	count := 0
	if !mask.Empty() {
		for i := range inliers {
			inliers[i] = mask.GetUCharAt(i, 0) != 0
			if inliers[i] {
				count++
			}
		}
	}
	if count < 4 {
		return Homography{}, nil, errors.Wrapf(ErrDegenerateGeometry, "findHomography kept %d inliers", count)
	}
	return NewHomography(values).Normalized(), inliers, nil
}

func pointsToMat(points []Point) gocv.Mat {
	pts := make([]gocv.Point2f, len(points))
	for i, p := range points {
		pts[i] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
	}
	pv := gocv.NewPoint2fVectorFromPoints(pts)
	defer pv.Close()
	return gocv.NewMatFromPoint2fVector(pv, true)
}
