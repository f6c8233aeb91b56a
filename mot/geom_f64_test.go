package mot

import (
	"math"
	"testing"
)

const (
	eps = 0.00001
)

func TestEuclideanDistance(t *testing.T) {
	p1 := Point{X: 341, Y: 264}
	p2 := Point{X: 421, Y: 427}
	correnctAnswer := 181.57367
	answer := p1.DistanceTo(p2)
	if math.Abs(answer-correnctAnswer) > eps {
		t.Errorf("Wrong answer: %v, correct answer: %v", answer, correnctAnswer)
	}
}

func TestPointIsFinite(t *testing.T) {
	if !NewPoint(400, 300).IsFinite() {
		t.Errorf("Expected (400, 300) to be finite")
	}
	if (Point{X: math.NaN(), Y: 1}).IsFinite() {
		t.Errorf("Expected NaN point to be not finite")
	}
	if (Point{X: 1, Y: math.Inf(-1)}).IsFinite() {
		t.Errorf("Expected infinite point to be not finite")
	}
}
