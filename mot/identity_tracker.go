package mot

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// Assignment is the outcome for single observation of the current frame
type Assignment struct {
	ID       int
	Position Point
	Color    Color
	// Created is true when observation started a new track
	Created bool
}

// IdentityTracker keeps stable identities for sparse point targets in OutputPlane space.
//
// Observations of every frame are matched against the last recorded position of tracks
// that existed before that frame. Unmatched observations start new tracks: identities are
// taken from the pool of stable ids first, then allocated as (max existing id) + 1.
type IdentityTracker struct {
	// Main storage
	store *Store
	// Matching strategy. Default is greedy in detector order
	assigner Assigner
	// Gate distance in OutputPlane units. Default 50.0
	gate float64
	// Stable identities handed out before dynamic allocation. Default is 0..4
	stableIDs []int
	// Source for display colors
	colors *rand.Rand
	// Time step for Kalman smoothing
	dt float64

	lastFrame int
	started   bool
}

// NewIdentityTrackerDefault creates default instance of IdentityTracker
func NewIdentityTrackerDefault() *IdentityTracker {
	return NewIdentityTracker(50.0, 5, GreedyAssigner{}, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewIdentityTracker creates new instance of IdentityTracker
func NewIdentityTracker(gate float64, stablePoolSize int, assigner Assigner, colors *rand.Rand) *IdentityTracker {
	if assigner == nil {
		assigner = GreedyAssigner{}
	}
	if colors == nil {
		colors = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	stableIDs := make([]int, 0, stablePoolSize)
	for i := 0; i < stablePoolSize; i++ {
		stableIDs = append(stableIDs, i)
	}
	return &IdentityTracker{
		store:     NewStore(),
		assigner:  assigner,
		gate:      gate,
		stableIDs: stableIDs,
		colors:    colors,
		dt:        1.0,
	}
}

// Store returns trajectory store owned by tracker
func (tracker *IdentityTracker) Store() *Store {
	return tracker.store
}

// Update assigns identities to observations of the given frame and records their positions.
// Frame indices must strictly increase between calls.
func (tracker *IdentityTracker) Update(frame int, observations []Point) ([]Assignment, error) {
	if tracker.started && frame <= tracker.lastFrame {
		return nil, errors.Wrapf(ErrFrameOrder, "got frame %d after frame %d", frame, tracker.lastFrame)
	}
	for i, observation := range observations {
		if !observation.IsFinite() {
			return nil, errors.Errorf("observation %d is not finite: %v", i, observation)
		}
	}
	candidates := tracker.store.candidates()
	matches := tracker.assigner.Assign(observations, candidates, tracker.gate)
	if len(matches) != len(observations) {
		return nil, errors.Errorf("assigner returned %d matches for %d observations", len(matches), len(observations))
	}

	assignments := make([]Assignment, 0, len(observations))
	reserved := make(map[int]struct{})
	for i, observation := range observations {
		matched := matches[i]
		if matched >= 0 && matched < len(candidates) {
			id := candidates[matched].ID
			if _, ok := reserved[id]; !ok {
				track := tracker.store.tracks[id]
				err := track.appendPoint(frame, observation)
				if err != nil {
					return assignments, errors.Wrapf(err, "Can't update track with id %d", id)
				}
				reserved[id] = struct{}{}
				assignments = append(assignments, Assignment{
					ID:       id,
					Position: observation,
					Color:    track.color,
				})
				continue
			}
		}
		// Otherwise register observation as a new track
		track := newTrack(tracker.nextID(), tracker.randomColor(), frame, observation, tracker.dt)
		tracker.store.add(track)
		reserved[track.id] = struct{}{}
		assignments = append(assignments, Assignment{
			ID:       track.id,
			Position: observation,
			Color:    track.color,
			Created:  true,
		})
	}
	tracker.lastFrame = frame
	tracker.started = true
	return assignments, nil
}

// nextID pops the next stable identity or allocates (max existing id) + 1
func (tracker *IdentityTracker) nextID() int {
	for len(tracker.stableIDs) > 0 {
		id := tracker.stableIDs[0]
		tracker.stableIDs = tracker.stableIDs[1:]
		if _, used := tracker.store.tracks[id]; !used {
			return id
		}
	}
	return tracker.store.maxID() + 1
}

func (tracker *IdentityTracker) randomColor() Color {
	return Color{
		uint8(tracker.colors.Intn(256)),
		uint8(tracker.colors.Intn(256)),
		uint8(tracker.colors.Intn(256)),
	}
}
