package registration

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// State is the registration session state
type State int

const (
	StateUninitialized State = iota
	StateActive
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateActive:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// ReferenceFrame is immutable snapshot taken at initialization
type ReferenceFrame struct {
	Image    gocv.Mat
	Features *Features
	// Corners of visible playing surface: top-left, top-right, bottom-left, bottom-right
	Corners [4]Point
}

// Session maps pixels of a moving camera onto the OutputPlane.
//
// Every frame transform is derived from the stable reference rather than from the previous
// frame: current->reference homography H is estimated from keypoint matches, reference corners
// are projected through inv(H) into the current frame and the exact 4-point transform from those
// corners to the plane corners is computed. Chaining per-frame homographies would accumulate drift.
type Session struct {
	matcher   FeatureMatcher
	estimator Estimator
	plane     OutputPlane

	state            State
	reference        *ReferenceFrame
	referenceToPlane Homography

	// Last known good current->plane transform
	transform    Homography
	hasTransform bool
	lastInliers  int
}

// NewSession creates uninitialized session
func NewSession(matcher FeatureMatcher, estimator Estimator, plane OutputPlane) *Session {
	return &Session{
		matcher:   matcher,
		estimator: estimator,
		plane:     plane,
		state:     StateUninitialized,
	}
}

// State returns current state
func (s *Session) State() State {
	return s.state
}

// Plane returns output plane
func (s *Session) Plane() OutputPlane {
	return s.plane
}

// ReferenceToPlane returns fixed reference->plane homography
func (s *Session) ReferenceToPlane() (Homography, error) {
	if s.state != StateActive {
		return Homography{}, ErrUninitializedSession
	}
	return s.referenceToPlane, nil
}

// Transform returns current frame->plane homography. The second value is false if none is available.
func (s *Session) Transform() (Homography, bool) {
	return s.transform, s.hasTransform
}

// LastInliers returns number of inliers of the last successful update
func (s *Session) LastInliers() int {
	return s.lastInliers
}

// Initialize takes frame as the reference and corners (top-left, top-right, bottom-left, bottom-right)
// of the visible playing surface in its pixel space. Current transform becomes reference->plane.
func (s *Session) Initialize(frame gocv.Mat, corners [4]Point) error {
	referenceToPlane, err := FromFourPoints(corners, s.plane.Corners())
	if err != nil {
		return errors.Wrap(err, "Can't map reference corners onto output plane")
	}
	features, err := s.matcher.Extract(frame)
	if err != nil {
		return errors.Wrap(err, "Can't extract reference features")
	}
	if features.Len() == 0 {
		features.Close()
		return errors.Wrap(ErrInsufficientCorrespondence, "reference frame has no keypoints")
	}
	if s.reference != nil {
		s.reference.close()
	}
	s.reference = &ReferenceFrame{
		Image:    frame.Clone(),
		Features: features,
		Corners:  corners,
	}
	s.referenceToPlane = referenceToPlane
	s.transform = referenceToPlane
	s.hasTransform = true
	s.lastInliers = features.Len()
	s.state = StateActive
	logger.WithField("keypoints", features.Len()).Debug("registration session initialized")
	return nil
}

// UpdateTransform recomputes frame->plane transform. On failure previous transform is kept.
func (s *Session) UpdateTransform(frame gocv.Mat) error {
	if s.state != StateActive {
		return ErrUninitializedSession
	}
	current, err := s.matcher.Extract(frame)
	if err != nil {
		return errors.Wrap(err, "Can't extract frame features")
	}
	defer current.Close()

	correspondences, err := s.matcher.Match(s.reference.Features, current)
	if err != nil {
		return errors.Wrap(err, "Can't match frame against reference")
	}
	currentPts := make([]Point, len(correspondences))
	referencePts := make([]Point, len(correspondences))
	for i, c := range correspondences {
		currentPts[i] = c.Current
		referencePts[i] = c.Reference
	}
	currentToReference, inliers, err := s.estimator.Estimate(currentPts, referencePts)
	if err != nil {
		return errors.Wrap(err, "Can't estimate current->reference homography")
	}
	referenceToCurrent, err := currentToReference.Inverse()
	if err != nil {
		return err
	}
	projected, err := referenceToCurrent.ApplyAll(s.reference.Corners[:])
	if err != nil {
		return errors.Wrap(err, "Can't project reference corners into frame")
	}
	var cornersInFrame [4]Point
	copy(cornersInFrame[:], projected)
	transform, err := FromFourPoints(cornersInFrame, s.plane.Corners())
	if err != nil {
		return errors.Wrap(err, "Can't map projected corners onto output plane")
	}
	s.transform = transform
	s.hasTransform = true
	s.lastInliers = countTrue(inliers)
	return nil
}

// TransformPoint maps pixel of the current frame onto the plane using the last known good transform
func (s *Session) TransformPoint(p Point) (Point, error) {
	if s.state != StateActive {
		return Point{}, ErrUninitializedSession
	}
	if !s.hasTransform {
		return Point{}, errors.Wrap(ErrDegenerateGeometry, "no transform available")
	}
	transformed, ok := s.transform.Apply(p)
	if !ok {
		return Point{}, errors.Wrapf(ErrDegenerateGeometry, "point %v maps to infinity", p)
	}
	return transformed, nil
}

// ProjectToPlane is TransformPoint which also rejects points outside of the plane with ErrOutOfBounds
func (s *Session) ProjectToPlane(p Point) (Point, error) {
	transformed, err := s.TransformPoint(p)
	if err != nil {
		return Point{}, err
	}
	if !s.plane.Contains(transformed) {
		return transformed, errors.Wrapf(ErrOutOfBounds, "%v maps to %v", p, transformed)
	}
	return transformed, nil
}

// Close releases reference frame resources and returns session to UNINITIALIZED state
func (s *Session) Close() error {
	var err error
	if s.reference != nil {
		err = s.reference.close()
		s.reference = nil
	}
	s.state = StateUninitialized
	s.hasTransform = false
	return err
}

func (ref *ReferenceFrame) close() error {
	if err := ref.Image.Close(); err != nil {
		return errors.Wrap(err, "Can't close reference image")
	}
	if ref.Features != nil {
		return ref.Features.Close()
	}
	return nil
}

func countTrue(mask []bool) int {
	count := 0
	for _, ok := range mask {
		if ok {
			count++
		}
	}
	return count
}
