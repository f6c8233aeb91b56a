package mot

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

var (
	// ErrFrameOrder is returned when observations arrive for a frame that is not strictly later than the previous one
	ErrFrameOrder = errors.New("frame index must strictly increase")
)

// Track is a persistent identity with its accumulated OutputPlane history.
// Points are append-only: one point per frame in which the track has been observed.
type Track struct {
	id       int
	color    Color
	points   []Point
	frames   []int
	smoothed []Point
	tracker  *kalman_filter.Kalman2D
}

func newTrack(id int, color Color, frame int, position Point, dt float64) *Track {
	/* Kalman filter props */
	ux := 1.0
	uy := 1.0
	stdDevA := 2.0
	stdDevMx := 0.1
	stdDevMy := 0.1
	kf := kalman_filter.NewKalman2D(dt, ux, uy, stdDevA, stdDevMx, stdDevMy, kalman_filter.WithState2D(position.X, position.Y))
	track := Track{
		id:       id,
		color:    color,
		points:   make([]Point, 0, 150),
		frames:   make([]int, 0, 150),
		smoothed: make([]Point, 0, 150),
		tracker:  kf,
	}
	track.points = append(track.points, position)
	track.frames = append(track.frames, frame)
	track.smoothed = append(track.smoothed, position)
	return &track
}

// ID returns track's identity
func (track *Track) ID() int {
	return track.id
}

// Color returns display color fixed at creation
func (track *Track) Color() Color {
	return track.color
}

// Len returns number of recorded points
func (track *Track) Len() int {
	return len(track.points)
}

// Last returns the last recorded position
func (track *Track) Last() Point {
	return track.points[len(track.points)-1]
}

// LastFrame returns index of the frame the last point was recorded at
func (track *Track) LastFrame() int {
	return track.frames[len(track.frames)-1]
}

// Points returns copy of the position history
func (track *Track) Points() []Point {
	return append([]Point(nil), track.points...)
}

// Frames returns copy of frame indices (parallel to Points)
func (track *Track) Frames() []int {
	return append([]int(nil), track.frames...)
}

// Smoothed returns copy of Kalman-smoothed positions (parallel to Points)
func (track *Track) Smoothed() []Point {
	return append([]Point(nil), track.smoothed...)
}

// appendPoint records new observation and runs both Kalman filter steps on it
func (track *Track) appendPoint(frame int, position Point) error {
	if frame <= track.LastFrame() {
		return errors.Wrapf(ErrFrameOrder, "track %d: got frame %d after frame %d", track.id, frame, track.LastFrame())
	}
	track.tracker.Predict()
	err := track.tracker.Update(position.X, position.Y)
	if err != nil {
		return errors.Wrapf(err, "Can't update Kalman filter of track %d", track.id)
	}
	stateX, stateY := track.tracker.GetState()
	track.points = append(track.points, position)
	track.frames = append(track.frames, frame)
	track.smoothed = append(track.smoothed, Point{X: stateX, Y: stateY})
	return nil
}
