// Package pipeline glues registration, detector output and identity tracking into per-frame processing.
package pipeline

import (
	"math/rand"
	"sync"
	"time"

	"github.com/LdDl/pitch-tracker/detection"
	"github.com/LdDl/pitch-tracker/mot"
	"github.com/LdDl/pitch-tracker/registration"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

// FrameResult is the outcome of processing single frame
type FrameResult struct {
	Frame int
	// False when registration failed and detections of the frame were skipped
	TransformValid bool
	Transform      registration.Homography
	Inliers        int
	Assignments    []mot.Assignment
	// Number of detections before filtering
	Detections int
	// Number of detections landing outside of the output plane
	Dropped int
}

// Processor runs one registration session and one identity tracker over a stream of frames.
// It is safe to query exports concurrently with processing.
type Processor struct {
	mu           sync.RWMutex
	cfg          *Config
	session      *registration.Session
	matcher      registration.FeatureMatcher
	ownsMatcher  bool
	tracker      *mot.IdentityTracker
	filter       detection.Filter
	corners      [4]registration.Point
	sessionID    uuid.UUID
	frameCounter int
}

// NewProcessor creates processor. When matcher is nil, ORB matcher is built from config and owned by processor.
func NewProcessor(cfg *Config, matcher registration.FeatureMatcher) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Invalid config")
	}
	corners, _ := cfg.Corners()
	plane, _ := cfg.OutputPlane()
	strategy, _ := mot.ParseAssignmentStrategy(cfg.Tracker.Assignment)

	seed := cfg.Tracker.ColorSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ownsMatcher := false
	if matcher == nil {
		matcher = registration.NewORBMatcher(cfg.ORBConfig())
		ownsMatcher = true
	}
	return &Processor{
		cfg:         cfg,
		session:     registration.NewSession(matcher, cfg.NewEstimator(), plane),
		matcher:     matcher,
		ownsMatcher: ownsMatcher,
		tracker:     mot.NewIdentityTracker(cfg.Tracker.Gate, cfg.Tracker.StablePoolSize, mot.NewAssigner(strategy), rand.New(rand.NewSource(seed))),
		filter:      cfg.Filter(),
		corners:     corners,
		sessionID:   uuid.New(),
	}, nil
}

// SessionID returns identifier stamped on exports
func (p *Processor) SessionID() uuid.UUID {
	return p.sessionID
}

// Plane returns output plane
func (p *Processor) Plane() registration.OutputPlane {
	return p.session.Plane()
}

// Initialize takes frame as the reference using configured corners
func (p *Processor) Initialize(frame gocv.Mat) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.Initialize(frame, p.corners)
}

// Process registers frame, projects filtered detection centers onto the plane and updates identities.
// Registration failures only affect the frame: result has TransformValid set to false and error is nil.
func (p *Processor) Process(frame gocv.Mat, detections []detection.Detection) (*FrameResult, error) {
	return p.process(frame, func() ([]detection.Detection, error) {
		return detections, nil
	})
}

// ProcessWith is Process which runs detector on frame only after registration succeeded
func (p *Processor) ProcessWith(frame gocv.Mat, detector detection.Detector) (*FrameResult, error) {
	return p.process(frame, func() ([]detection.Detection, error) {
		return detector.Detect(frame)
	})
}

func (p *Processor) process(frame gocv.Mat, detect func() ([]detection.Detection, error)) (*FrameResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session.State() != registration.StateActive {
		return nil, registration.ErrUninitializedSession
	}
	result := &FrameResult{
		Frame: p.frameCounter,
	}
	p.frameCounter++

	err := p.session.UpdateTransform(frame)
	if err != nil {
		if !registration.IsRecoverable(err) {
			return nil, err
		}
		logger.WithFields(logrus.Fields{
			"frame": result.Frame,
			"error": err,
		}).Warn("Failed to update transform, skipping frame")
		return result, nil
	}
	result.TransformValid = true
	result.Transform, _ = p.session.Transform()
	result.Inliers = p.session.LastInliers()

	detections, err := detect()
	if err != nil {
		return nil, errors.Wrapf(err, "Can't detect objects on frame %d", result.Frame)
	}
	result.Detections = len(detections)
	filtered := p.filter.Apply(detections)
	points := make([]mot.Point, 0, len(filtered))
	for _, d := range filtered {
		projected, err := p.session.ProjectToPlane(d.Center)
		if err != nil {
			if !registration.IsRecoverable(err) {
				return nil, err
			}
			logger.WithFields(logrus.Fields{
				"frame":  result.Frame,
				"center": d.Center,
				"error":  err,
			}).Debug("Detection dropped")
			result.Dropped++
			continue
		}
		points = append(points, projected)
	}

	assignments, err := p.tracker.Update(result.Frame, points)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't update tracker on frame %d", result.Frame)
	}
	result.Assignments = assignments
	return result, nil
}

// Export returns ordered export of every track
func (p *Processor) Export() mot.Export {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tracker.Store().Export(p.sessionID)
}

// ExportTrack returns export of single track
func (p *Processor) ExportTrack(id int) (mot.TrackExport, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	track, ok := p.tracker.Store().Track(id)
	if !ok {
		return mot.TrackExport{}, false
	}
	return mot.ExportTrack(track), true
}

// LegacyExport returns keyed export of every track
func (p *Processor) LegacyExport() mot.LegacyExport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tracker.Store().LegacyExport()
}

// TrackHeatmap builds blurred occupancy grid of single track with configured cell size and sigma
func (p *Processor) TrackHeatmap(id int) (*mat.Dense, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	track, ok := p.tracker.Store().Track(id)
	if !ok {
		return nil, false, nil
	}
	grid, err := Heatmap(track, p.session.Plane(), p.cfg.Heatmap.CellSize, p.cfg.Heatmap.Sigma)
	return grid, true, err
}

// Summaries returns per-track summaries ordered by identity
func (p *Processor) Summaries() []TrackSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Summaries(p.tracker.Store(), p.session.Plane())
}

// Close releases registration resources
func (p *Processor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.session.Close()
	if p.ownsMatcher {
		if closer, ok := p.matcher.(interface{ Close() error }); ok {
			if cerr := closer.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}
	return err
}
