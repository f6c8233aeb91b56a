package pipeline

import (
	"image"
	"testing"

	"github.com/LdDl/pitch-tracker/detection"
	"github.com/LdDl/pitch-tracker/mot"
	"github.com/LdDl/pitch-tracker/registration"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// stillCamera reports every frame identical to the reference unless failing is set
type stillCamera struct {
	failing bool
}

func (m *stillCamera) Extract(frame gocv.Mat) (*registration.Features, error) {
	return &registration.Features{
		Keypoints:   make([]gocv.KeyPoint, 12),
		Descriptors: gocv.NewMat(),
	}, nil
}

func (m *stillCamera) Match(reference, current *registration.Features) ([]registration.Correspondence, error) {
	if m.failing {
		return nil, errors.Wrap(registration.ErrInsufficientCorrespondence, "camera covered")
	}
	points := []registration.Point{
		{X: 30, Y: 40}, {X: 400, Y: 20}, {X: 770, Y: 50}, {X: 60, Y: 300}, {X: 420, Y: 310},
		{X: 750, Y: 280}, {X: 20, Y: 570}, {X: 390, Y: 590}, {X: 780, Y: 560}, {X: 200, Y: 150},
	}
	correspondences := make([]registration.Correspondence, len(points))
	for i, p := range points {
		correspondences[i] = registration.Correspondence{Reference: p, Current: p}
	}
	return correspondences, nil
}

func newTestProcessor(t *testing.T, matcher registration.FeatureMatcher) *Processor {
	t.Helper()
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	// Reference corners equal to plane corners: pixels map onto plane unchanged
	cfg.Reference.Corners = [][]float64{{0, 0}, {800, 0}, {0, 600}, {800, 600}}
	cfg.Tracker.ColorSeed = 42
	processor, err := NewProcessor(cfg, matcher)
	require.NoError(t, err)
	return processor
}

func person(x, y int, confidence float64) detection.Detection {
	return detection.NewDetection("person", confidence, image.Rect(x-10, y-20, x+10, y+20))
}

func TestProcessorUninitialized(t *testing.T) {
	processor := newTestProcessor(t, &stillCamera{})
	frame := gocv.NewMatWithSize(600, 800, gocv.MatTypeCV8UC3)
	defer frame.Close()

	_, err := processor.Process(frame, nil)
	assert.True(t, errors.Is(err, registration.ErrUninitializedSession))
}

func TestProcessorTracksPeople(t *testing.T) {
	matcher := &stillCamera{}
	processor := newTestProcessor(t, matcher)
	defer processor.Close()
	frame := gocv.NewMatWithSize(600, 800, gocv.MatTypeCV8UC3)
	defer frame.Close()
	require.NoError(t, processor.Initialize(frame))

	first, err := processor.Process(frame, []detection.Detection{
		person(400, 300, 0.9),
		person(100, 100, 0.3),
		detection.NewDetection("ball", 0.99, image.Rect(500, 500, 510, 510)),
	})
	require.NoError(t, err)
	assert.True(t, first.TransformValid)
	assert.Equal(t, 0, first.Frame)
	require.Len(t, first.Assignments, 1)
	assert.InDelta(t, 400.0, first.Assignments[0].Position.X, 1e-3)
	assert.InDelta(t, 300.0, first.Assignments[0].Position.Y, 1e-3)

	second, err := processor.Process(frame, []detection.Detection{person(405, 300, 0.8), person(700, 100, 0.8)})
	require.NoError(t, err)
	require.Len(t, second.Assignments, 2)
	assert.Equal(t, first.Assignments[0].ID, second.Assignments[0].ID)
	assert.True(t, second.Assignments[1].Created)
	assert.NotEqual(t, first.Assignments[0].ID, second.Assignments[1].ID)

	export := processor.Export()
	assert.Equal(t, processor.SessionID(), export.SessionID)
	require.Len(t, export.Tracks, 2)
	assert.Len(t, export.Tracks[0].Positions, 2)

	legacy := processor.LegacyExport()
	assert.Len(t, legacy.Positions, 2)

	track, ok := processor.ExportTrack(first.Assignments[0].ID)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1}, track.Frames)
	_, ok = processor.ExportTrack(99)
	assert.False(t, ok)
}

func TestProcessorDropsOutOfBounds(t *testing.T) {
	processor := newTestProcessor(t, &stillCamera{})
	defer processor.Close()
	frame := gocv.NewMatWithSize(600, 800, gocv.MatTypeCV8UC3)
	defer frame.Close()
	require.NoError(t, processor.Initialize(frame))

	result, err := processor.Process(frame, []detection.Detection{person(900, 300, 0.9), person(200, 200, 0.9)})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Dropped)
	assert.Len(t, result.Assignments, 1)
}

func TestProcessorSkipsFailedFrames(t *testing.T) {
	matcher := &stillCamera{}
	processor := newTestProcessor(t, matcher)
	defer processor.Close()
	frame := gocv.NewMatWithSize(600, 800, gocv.MatTypeCV8UC3)
	defer frame.Close()
	require.NoError(t, processor.Initialize(frame))

	_, err := processor.Process(frame, []detection.Detection{person(400, 300, 0.9)})
	require.NoError(t, err)

	matcher.failing = true
	failed, err := processor.Process(frame, []detection.Detection{person(420, 300, 0.9)})
	require.NoError(t, err)
	assert.False(t, failed.TransformValid)
	assert.Empty(t, failed.Assignments)
	assert.Equal(t, 1, failed.Frame)

	matcher.failing = false
	recovered, err := processor.Process(frame, []detection.Detection{person(410, 300, 0.9)})
	require.NoError(t, err)
	assert.Equal(t, 2, recovered.Frame)
	require.Len(t, recovered.Assignments, 1)
	assert.False(t, recovered.Assignments[0].Created)

	export := processor.Export()
	require.Len(t, export.Tracks, 1)
	assert.Equal(t, []int{0, 2}, export.Tracks[0].Frames)
}

func TestProcessorSummariesAndHeatmap(t *testing.T) {
	processor := newTestProcessor(t, &stillCamera{})
	defer processor.Close()
	frame := gocv.NewMatWithSize(600, 800, gocv.MatTypeCV8UC3)
	defer frame.Close()
	require.NoError(t, processor.Initialize(frame))

	for i, x := range []int{400, 420, 440} {
		_, err := processor.Process(frame, []detection.Detection{person(x, 300, 0.9)})
		require.NoError(t, err, "frame %d", i)
	}
	summaries := processor.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, 3, summaries[0].Observations)
	assert.Equal(t, 0, summaries[0].FirstFrame)
	assert.Equal(t, 2, summaries[0].LastFrame)
	assert.InDelta(t, 40.0, summaries[0].Distance, 1e-3)
	assert.InDelta(t, 40.0*105.0/800.0, summaries[0].DistanceMetres, 1e-3)

	grid, ok, err := processor.TrackHeatmap(summaries[0].ID)
	require.NoError(t, err)
	require.True(t, ok)
	rows, cols := grid.Dims()
	assert.Equal(t, 60, rows)
	assert.Equal(t, 80, cols)

	_, ok, err = processor.TrackHeatmap(42)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestHeatmap(t *testing.T) {
	plane, err := registration.NewOutputPlane(100, 50, 0, 0)
	require.NoError(t, err)
	tracker := mot.NewIdentityTrackerDefault()
	for frame, p := range []mot.Point{{X: 55, Y: 25}, {X: 56, Y: 26}, {X: 5, Y: 5}} {
		_, err := tracker.Update(frame, []mot.Point{p})
		require.NoError(t, err)
	}
	track, ok := tracker.Store().Track(0)
	require.True(t, ok)
	require.Equal(t, 2, track.Len())

	grid, err := Heatmap(track, plane, 10, 0)
	require.NoError(t, err)
	rows, cols := grid.Dims()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 10, cols)
	assert.Equal(t, 2.0, grid.At(2, 5))

	blurred, err := Heatmap(track, plane, 10, 10)
	require.NoError(t, err)
	total := 0.0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			total += blurred.At(r, c)
		}
	}
	assert.InDelta(t, 2.0, total, 0.1)
	assert.Greater(t, blurred.At(2, 5), blurred.At(2, 6))
	assert.Greater(t, blurred.At(2, 6), 0.0)

	_, err = Heatmap(track, plane, 0, 1)
	assert.Error(t, err)
}

// countingDetector returns the same detections every call and counts calls
type countingDetector struct {
	detections []detection.Detection
	calls      int
}

func (d *countingDetector) Detect(frame gocv.Mat) ([]detection.Detection, error) {
	d.calls++
	return d.detections, nil
}

func (d *countingDetector) Close() error {
	return nil
}

func TestProcessorDetectsOnlyRegisteredFrames(t *testing.T) {
	matcher := &stillCamera{}
	processor := newTestProcessor(t, matcher)
	defer processor.Close()
	frame := gocv.NewMatWithSize(600, 800, gocv.MatTypeCV8UC3)
	defer frame.Close()
	require.NoError(t, processor.Initialize(frame))

	detector := &countingDetector{detections: []detection.Detection{person(400, 300, 0.9), person(100, 100, 0.2)}}
	result, err := processor.ProcessWith(frame, detector)
	require.NoError(t, err)
	assert.Equal(t, 1, detector.calls)
	assert.Equal(t, 2, result.Detections)
	assert.Len(t, result.Assignments, 1)

	matcher.failing = true
	result, err = processor.ProcessWith(frame, detector)
	require.NoError(t, err)
	assert.False(t, result.TransformValid)
	assert.Equal(t, 1, detector.calls)
	assert.Equal(t, 0, result.Detections)
}
