package registration

import (
	"sort"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// FeatureMatcher extracts local features from frames and matches them against reference features
type FeatureMatcher interface {
	Extract(frame gocv.Mat) (*Features, error)
	// Match returns correspondences ranked by ascending descriptor distance
	Match(reference, current *Features) ([]Correspondence, error)
}

// Features is keypoint set of single frame with descriptor matrix (one row per keypoint)
type Features struct {
	Keypoints   []gocv.KeyPoint
	Descriptors gocv.Mat
}

// Len returns number of keypoints
func (f *Features) Len() int {
	return len(f.Keypoints)
}

// Empty reports whether there is nothing to match against
func (f *Features) Empty() bool {
	return len(f.Keypoints) == 0 || f.Descriptors.Empty()
}

// Close releases descriptor matrix
func (f *Features) Close() error {
	return f.Descriptors.Close()
}

// Correspondence is a matched pair of keypoints
type Correspondence struct {
	Reference Point
	Current   Point
	// Hamming distance between descriptors
	Distance float64
}

// ORBConfig holds parameters of ORBMatcher
type ORBConfig struct {
	// Maximum number of keypoints per frame. Default 2000
	MaxFeatures int
	// Number of best matches kept. Default 30
	TopK int
	// Minimum number of kept matches for registration to proceed. Default 10
	MinMatches int
	// Keep only mutual nearest neighbours. Default false
	CrossCheck bool
}

// DefaultORBConfig returns default ORB matcher parameters
func DefaultORBConfig() ORBConfig {
	return ORBConfig{
		MaxFeatures: 2000,
		TopK:        30,
		MinMatches:  10,
	}
}

// ORBMatcher uses ORB binary descriptors and brute-force Hamming matching.
// Each current-frame descriptor is paired with its single nearest reference descriptor
// (mutual nearest neighbours only when CrossCheck is set).
type ORBMatcher struct {
	cfg     ORBConfig
	orb     gocv.ORB
	matcher gocv.BFMatcher
}

// NewORBMatcher creates ORB extractor and Hamming brute-force matcher. Call Close when done.
func NewORBMatcher(cfg ORBConfig) *ORBMatcher {
	return &ORBMatcher{
		cfg:     cfg,
		orb:     gocv.NewORBWithParams(cfg.MaxFeatures, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, 20),
		matcher: gocv.NewBFMatcherWithParams(gocv.NormHamming, cfg.CrossCheck),
	}
}

// Extract detects keypoints and computes descriptors on grayscale version of frame
func (m *ORBMatcher) Extract(frame gocv.Mat) (*Features, error) {
	if frame.Empty() {
		return nil, errors.Wrap(ErrInsufficientCorrespondence, "empty frame")
	}
	gray := gocv.NewMat()
	defer gray.Close()
	switch frame.Channels() {
	case 3:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRAToGray)
	default:
		frame.CopyTo(&gray)
	}
	mask := gocv.NewMat()
	defer mask.Close()
	keypoints, descriptors := m.orb.DetectAndCompute(gray, mask)
	return &Features{
		Keypoints:   keypoints,
		Descriptors: descriptors,
	}, nil
}

// Match pairs current descriptors with reference ones, sorts by distance and keeps TopK best
func (m *ORBMatcher) Match(reference, current *Features) ([]Correspondence, error) {
	if current == nil || current.Empty() {
		return nil, errors.Wrap(ErrInsufficientCorrespondence, "frame yields no descriptors")
	}
	if reference == nil || reference.Empty() {
		return nil, errors.Wrap(ErrInsufficientCorrespondence, "reference has no descriptors")
	}
	matches := m.matcher.Match(current.Descriptors, reference.Descriptors)
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > m.cfg.TopK {
		matches = matches[:m.cfg.TopK]
	}
	if len(matches) < m.cfg.MinMatches {
		return nil, errors.Wrapf(ErrInsufficientCorrespondence, "got %d good matches, need %d", len(matches), m.cfg.MinMatches)
	}
	correspondences := make([]Correspondence, 0, len(matches))
	for _, match := range matches {
		if match.QueryIdx < 0 || match.QueryIdx >= len(current.Keypoints) || match.TrainIdx < 0 || match.TrainIdx >= len(reference.Keypoints) {
			continue
		}
		cur := current.Keypoints[match.QueryIdx]
		ref := reference.Keypoints[match.TrainIdx]
		correspondences = append(correspondences, Correspondence{
			Reference: Point{X: ref.X, Y: ref.Y},
			Current:   Point{X: cur.X, Y: cur.Y},
			Distance:  match.Distance,
		})
	}
	return correspondences, nil
}

// Close releases OpenCV resources
func (m *ORBMatcher) Close() error {
	if err := m.orb.Close(); err != nil {
		return errors.Wrap(err, "Can't close ORB")
	}
	return m.matcher.Close()
}
