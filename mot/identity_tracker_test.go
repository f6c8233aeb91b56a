package mot

import (
	"errors"
	"math/rand"
	"testing"
)

func newTestTracker(assigner Assigner) *IdentityTracker {
	return NewIdentityTracker(50.0, 5, assigner, rand.New(rand.NewSource(42)))
}

func TestIdentityTrackerScenario(t *testing.T) {
	tracker := newTestTracker(GreedyAssigner{})

	first, err := tracker.Update(0, []Point{{X: 400, Y: 300}})
	if err != nil {
		t.Fatalf("Frame 0 failed: %v", err)
	}
	second, err := tracker.Update(1, []Point{{X: 405, Y: 300}})
	if err != nil {
		t.Fatalf("Frame 1 failed: %v", err)
	}
	if first[0].ID != second[0].ID {
		t.Errorf("Expected same identity for points 5 units apart, got %d and %d", first[0].ID, second[0].ID)
	}
	if second[0].Created {
		t.Errorf("Expected second observation to continue existing track")
	}

	third, err := tracker.Update(2, []Point{{X: 700, Y: 100}})
	if err != nil {
		t.Fatalf("Frame 2 failed: %v", err)
	}
	if third[0].ID == first[0].ID {
		t.Errorf("Expected new identity for far observation, got %d again", third[0].ID)
	}
	if !third[0].Created {
		t.Errorf("Expected far observation to create a track")
	}
	if tracker.Store().Len() != 2 {
		t.Errorf("Expected 2 tracks, got %d", tracker.Store().Len())
	}
}

func TestIdentityStability(t *testing.T) {
	tracker := newTestTracker(GreedyAssigner{})
	var id int
	x := 100.0
	for frame := 0; frame < 100; frame++ {
		assignments, err := tracker.Update(frame, []Point{{X: x, Y: 200}})
		if err != nil {
			t.Fatalf("Frame %d failed: %v", frame, err)
		}
		if frame == 0 {
			id = assignments[0].ID
		} else if assignments[0].ID != id {
			t.Fatalf("Identity changed on frame %d: expected %d, got %d", frame, id, assignments[0].ID)
		}
		x += 6.5
	}
	track, ok := tracker.Store().Track(id)
	if !ok {
		t.Fatalf("Track %d not found", id)
	}
	if track.Len() != 100 {
		t.Errorf("Expected 100 points, got %d", track.Len())
	}
}

func TestIdentityAllocation(t *testing.T) {
	tracker := newTestTracker(GreedyAssigner{})
	seen := make(map[int]struct{})
	// Each observation is farther than gate from everything before it
	for frame := 0; frame < 8; frame++ {
		assignments, err := tracker.Update(frame, []Point{{X: float64(frame) * 100, Y: 0}})
		if err != nil {
			t.Fatalf("Frame %d failed: %v", frame, err)
		}
		id := assignments[0].ID
		if _, ok := seen[id]; ok {
			t.Fatalf("Identity %d reused on frame %d", id, frame)
		}
		seen[id] = struct{}{}
		// Stable pool 0..4 first, then max + 1
		if id != frame {
			t.Errorf("Expected identity %d, got %d", frame, id)
		}
	}
}

func TestIdentityTrackerWithoutStablePool(t *testing.T) {
	tracker := NewIdentityTracker(50.0, 0, nil, rand.New(rand.NewSource(1)))
	assignments, err := tracker.Update(0, []Point{{X: 10, Y: 10}, {X: 300, Y: 300}})
	if err != nil {
		t.Fatal(err)
	}
	if assignments[0].ID != 0 || assignments[1].ID != 1 {
		t.Errorf("Expected identities 0 and 1, got %d and %d", assignments[0].ID, assignments[1].ID)
	}
}

func TestIdentityTrackerOneTrackPerFrame(t *testing.T) {
	tracker := newTestTracker(GreedyAssigner{})
	_, err := tracker.Update(0, []Point{{X: 100, Y: 100}})
	if err != nil {
		t.Fatal(err)
	}
	// Both are within the gate of track 0, but only one may continue it
	assignments, err := tracker.Update(1, []Point{{X: 104, Y: 100}, {X: 102, Y: 100}})
	if err != nil {
		t.Fatal(err)
	}
	if assignments[0].ID != 0 {
		t.Errorf("Expected first observation to take track 0, got %d", assignments[0].ID)
	}
	if assignments[1].ID == 0 || !assignments[1].Created {
		t.Errorf("Expected second observation to create a track, got %d", assignments[1].ID)
	}
	track, _ := tracker.Store().Track(0)
	if track.Len() != 2 {
		t.Errorf("Expected 2 points in track 0, got %d", track.Len())
	}
}

func TestIdentityTrackerSameFrameTracksAreNotCandidates(t *testing.T) {
	tracker := newTestTracker(GreedyAssigner{})
	assignments, err := tracker.Update(0, []Point{{X: 100, Y: 100}, {X: 101, Y: 100}})
	if err != nil {
		t.Fatal(err)
	}
	if assignments[0].ID == assignments[1].ID {
		t.Errorf("Expected distinct identities inside single frame, got %d twice", assignments[0].ID)
	}
}

func TestIdentityTrackerFrameOrder(t *testing.T) {
	tracker := newTestTracker(GreedyAssigner{})
	if _, err := tracker.Update(5, []Point{{X: 1, Y: 1}}); err != nil {
		t.Fatal(err)
	}
	_, err := tracker.Update(5, []Point{{X: 2, Y: 1}})
	if !errors.Is(err, ErrFrameOrder) {
		t.Errorf("Expected ErrFrameOrder, got %v", err)
	}
	_, err = tracker.Update(3, nil)
	if !errors.Is(err, ErrFrameOrder) {
		t.Errorf("Expected ErrFrameOrder, got %v", err)
	}
}

func TestTrackHistoryMonotonic(t *testing.T) {
	tracker := newTestTracker(GreedyAssigner{})
	frames := [][]Point{
		{{X: 100, Y: 100}, {X: 500, Y: 500}},
		{{X: 110, Y: 100}},
		{},
		{{X: 505, Y: 505}, {X: 120, Y: 100}},
		{{X: 130, Y: 104}, {X: 510, Y: 510}},
	}
	previous := make(map[int][]Point)
	for frame, observations := range frames {
		if _, err := tracker.Update(frame*2, observations); err != nil {
			t.Fatalf("Frame %d failed: %v", frame, err)
		}
		for _, track := range tracker.Store().Tracks() {
			points := track.Points()
			before := previous[track.ID()]
			if len(points) < len(before) {
				t.Fatalf("Track %d shrunk from %d to %d", track.ID(), len(before), len(points))
			}
			for i := range before {
				if points[i] != before[i] {
					t.Fatalf("Track %d history changed at %d", track.ID(), i)
				}
			}
			trackFrames := track.Frames()
			for i := 1; i < len(trackFrames); i++ {
				if trackFrames[i] <= trackFrames[i-1] {
					t.Fatalf("Track %d frames are not increasing: %v", track.ID(), trackFrames)
				}
			}
			previous[track.ID()] = points
		}
	}
	if tracker.Store().Len() != 2 {
		t.Errorf("Expected 2 tracks, got %d", tracker.Store().Len())
	}
}

func TestTrackColorFixed(t *testing.T) {
	tracker := newTestTracker(GreedyAssigner{})
	first, _ := tracker.Update(0, []Point{{X: 10, Y: 10}})
	second, _ := tracker.Update(1, []Point{{X: 12, Y: 10}})
	if first[0].Color != second[0].Color {
		t.Errorf("Expected color to stay fixed, got %v and %v", first[0].Color, second[0].Color)
	}
}
