package mot

import (
	"math"

	"github.com/arthurkushman/go-hungarian"
)

// AssignmentStrategy is for algorithm type for matching observations to existing tracks
type AssignmentStrategy uint16

const (
	// AssignmentGreedy matches each observation in detector order to its nearest free track
	AssignmentGreedy AssignmentStrategy = iota
	// AssignmentNearestFirst matches globally closest pairs first
	AssignmentNearestFirst
	// AssignmentHungarian uses the Hungarian algorithm (Kuhn-Munkres) for optimal assignment
	AssignmentHungarian
)

// ParseAssignmentStrategy converts configuration name to AssignmentStrategy
func ParseAssignmentStrategy(name string) (AssignmentStrategy, bool) {
	switch name {
	case "", "greedy":
		return AssignmentGreedy, true
	case "nearest", "nearest_first":
		return AssignmentNearestFirst, true
	case "hungarian":
		return AssignmentHungarian, true
	default:
		return AssignmentGreedy, false
	}
}

// NewAssigner returns Assigner for the given strategy
func NewAssigner(strategy AssignmentStrategy) Assigner {
	switch strategy {
	case AssignmentNearestFirst:
		return NearestFirstAssigner{}
	case AssignmentHungarian:
		return HungarianAssigner{}
	default:
		return GreedyAssigner{}
	}
}

// Candidate is an existing track as seen at the start of the current frame
type Candidate struct {
	ID       int
	Position Point
}

// Assigner decides which existing track (if any) every observation continues.
//
// Assign returns slice of len(observations): element i is index into candidates or -1 when
// observation i should start a new track. A candidate index appears at most once.
// Only pairs strictly closer than gate may be matched.
type Assigner interface {
	Assign(observations []Point, candidates []Candidate, gate float64) []int
}

// GreedyAssigner is naive nearest-history matching.
// Observations are processed in the order they were produced; each takes the closest
// track that is not yet taken in this frame. Two targets crossing within the gate may swap identities.
type GreedyAssigner struct{}

func (GreedyAssigner) Assign(observations []Point, candidates []Candidate, gate float64) []int {
	result := make([]int, len(observations))
	reserved := make([]bool, len(candidates))
	for i, observation := range observations {
		result[i] = -1
		minDistance := math.MaxFloat64
		for j, candidate := range candidates {
			if reserved[j] {
				continue
			}
			dist := euclideanDistance(observation, candidate.Position)
			if dist < gate && dist < minDistance {
				minDistance = dist
				result[i] = j
			}
		}
		if result[i] >= 0 {
			reserved[result[i]] = true
		}
	}
	return result
}

// NearestFirstAssigner pops globally closest (observation, track) pairs from min-heap.
// It does not depend on detector order.
type NearestFirstAssigner struct{}

func (NearestFirstAssigner) Assign(observations []Point, candidates []Candidate, gate float64) []int {
	result := make([]int, len(observations))
	for i := range result {
		result[i] = -1
	}
	priorityQueue := make(distanceHeap, 0, len(observations)*len(candidates))
	for i, observation := range observations {
		for j, candidate := range candidates {
			dist := euclideanDistance(observation, candidate.Position)
			if dist < gate {
				priorityQueue.Push(&pairDistance{observation: i, candidate: j, distance: dist})
			}
		}
	}
	// We need to prevent double update of tracks
	reserved := make(map[int]struct{})
	for priorityQueue.Len() > 0 {
		pair := priorityQueue.Pop()
		if result[pair.observation] >= 0 {
			continue
		}
		if _, ok := reserved[pair.candidate]; ok {
			continue
		}
		result[pair.observation] = pair.candidate
		reserved[pair.candidate] = struct{}{}
	}
	return result
}

// HungarianAssigner solves assignment problem maximizing total (gate - distance) over gated pairs.
type HungarianAssigner struct{}

func (HungarianAssigner) Assign(observations []Point, candidates []Candidate, gate float64) []int {
	result := make([]int, len(observations))
	for i := range result {
		result[i] = -1
	}
	numObservations := len(observations)
	numCandidates := len(candidates)
	if numObservations == 0 || numCandidates == 0 {
		return result
	}
	distances := make([][]float64, numObservations)
	for i, observation := range observations {
		distances[i] = make([]float64, numCandidates)
		for j, candidate := range candidates {
			distances[i][j] = euclideanDistance(observation, candidate.Position)
		}
	}
	// Rectangular matrix - pad to make it square.
	// Padding is done with 0.0 values (no gain), the same as for pairs outside of the gate
	paddedSize := maxInt(numObservations, numCandidates)
	paddedMatrix := make([][]float64, paddedSize)
	for i := 0; i < paddedSize; i++ {
		paddedMatrix[i] = make([]float64, paddedSize)
		if i >= numObservations {
			continue
		}
		for j := 0; j < numCandidates; j++ {
			if distances[i][j] < gate {
				paddedMatrix[i][j] = gate - distances[i][j]
			}
		}
	}
	assignmentsMap := hungarian.SolveMax(paddedMatrix)
	reserved := make(map[int]struct{})
	for row, rowMap := range assignmentsMap {
		if row >= numObservations {
			continue
		}
		for col := range rowMap {
			if col >= numCandidates {
				continue
			}
			if distances[row][col] >= gate {
				continue
			}
			if _, ok := reserved[col]; ok {
				logger.WithField("candidate", col).Warn("hungarian assignment reused a candidate, ignoring")
				continue
			}
			result[row] = col
			reserved[col] = struct{}{}
		}
	}
	return result
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
