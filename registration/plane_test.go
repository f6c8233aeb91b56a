package registration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputPlane(t *testing.T) {
	plane, err := NewOutputPlane(800, 600, 105, 68)
	require.NoError(t, err)
	assert.Equal(t, [4]Point{{X: 0, Y: 0}, {X: 800, Y: 0}, {X: 0, Y: 600}, {X: 800, Y: 600}}, plane.Corners())

	assert.True(t, plane.Contains(Point{X: 0, Y: 0}))
	assert.True(t, plane.Contains(Point{X: 800, Y: 600}))
	assert.False(t, plane.Contains(Point{X: -0.1, Y: 10}))
	assert.False(t, plane.Contains(Point{X: 10, Y: 600.5}))

	metres, ok := plane.ToPitch(Point{X: 400, Y: 300})
	require.True(t, ok)
	assert.InDelta(t, 52.5, metres.X, 1e-9)
	assert.InDelta(t, 34.0, metres.Y, 1e-9)

	_, err = NewOutputPlane(0, 600, 105, 68)
	assert.Error(t, err)

	unknown, err := NewOutputPlane(800, 600, 0, 0)
	require.NoError(t, err)
	_, ok = unknown.ToPitch(Point{X: 1, Y: 1})
	assert.False(t, ok)
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(nil))
	assert.True(t, IsRecoverable(ErrInsufficientCorrespondence))
	assert.True(t, IsRecoverable(ErrDegenerateGeometry))
	assert.True(t, IsRecoverable(ErrOutOfBounds))
	assert.False(t, IsRecoverable(ErrUninitializedSession))
}
