package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_InfoReflectsUpdate(t *testing.T) {
	pt := NewProgressTracker(4)
	pt.Update(1)

	info := pt.Info()
	assert.Equal(t, 1, info.Completed)
	assert.Equal(t, 4, info.Total)
	assert.InDelta(t, 25.0, info.Percentage, 0.001)
	assert.GreaterOrEqual(t, info.ElapsedMs, int64(0))
}

func TestProgressTracker_ZeroTotalNeverDividesByZero(t *testing.T) {
	pt := NewProgressTracker(0)
	assert.Equal(t, 0.0, pt.Info().Percentage)
	assert.True(t, pt.Complete())
}

func TestProgressTracker_Complete(t *testing.T) {
	pt := NewProgressTracker(2)
	assert.False(t, pt.Complete())
	pt.Update(2)
	assert.True(t, pt.Complete())
}

func TestProgressTracker_Reset(t *testing.T) {
	pt := NewProgressTracker(2)
	pt.Update(2)
	pt.Reset(5)

	info := pt.Info()
	assert.Equal(t, 0, info.Completed)
	assert.Equal(t, 5, info.Total)
}
