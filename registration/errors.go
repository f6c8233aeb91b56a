package registration

import (
	"github.com/pkg/errors"
)

var (
	// ErrInsufficientCorrespondence means frame has no descriptors or too few good keypoint matches
	ErrInsufficientCorrespondence = errors.New("insufficient keypoint correspondence")
	// ErrDegenerateGeometry means homography could not be fitted (collinear points, too few inliers, singular matrix)
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	// ErrOutOfBounds means transformed point lies outside of the OutputPlane
	ErrOutOfBounds = errors.New("point is out of output plane bounds")
	// ErrUninitializedSession means operation was called before Initialize
	ErrUninitializedSession = errors.New("registration session is not initialized")
)

// IsRecoverable reports whether err only affects the current frame.
// Every error of this package except ErrUninitializedSession is recoverable.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, ErrUninitializedSession) {
		return false
	}
	return errors.Is(err, ErrInsufficientCorrespondence) ||
		errors.Is(err, ErrDegenerateGeometry) ||
		errors.Is(err, ErrOutOfBounds)
}
