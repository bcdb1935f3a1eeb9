package estimator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLinearNeedsTwoSamples(t *testing.T) {
	l := NewLinear(5, 0)
	assert.Equal(t, 0.0, l.Extrapolate(10))

	l.Add(1, 1)
	assert.Equal(t, 0.0, l.Extrapolate(10))

	l.Add(2, 2)
	assert.InDelta(t, 10.0, l.Extrapolate(10), 1e-9)
}

func TestLinearFitsLeastSquares(t *testing.T) {
	l := NewLinear(10, 0)
	l.Add(100, 10)
	l.Add(200, 20)
	l.Add(300, 30)

	assert.InDelta(t, 25.0, l.Extrapolate(250), 1e-9)
	assert.InDelta(t, 40.0, l.Extrapolate(400), 1e-9)
}

func TestLinearWindowEvictsOldestSample(t *testing.T) {
	l := NewLinear(3, 0)
	l.Add(1, 100) // will be evicted
	l.Add(1, 1)
	l.Add(2, 2)
	l.Add(3, 3)

	// after W+1 samples the first no longer influences the fit
	assert.InDelta(t, 4.0, l.Extrapolate(4), 1e-9)
	assert.Equal(t, 3, l.Size())
}

func TestLinearIdenticalXFallsBackToMean(t *testing.T) {
	l := NewLinear(4, 0)
	l.Add(5, 10)
	l.Add(5, 20)

	assert.InDelta(t, 15.0, l.Extrapolate(123), 1e-9)
}

func TestLinearPurgesStaleSamples(t *testing.T) {
	now := time.Now()
	l := NewLinear(10, time.Second)
	l.now = func() time.Time { return now }

	l.Add(1, 1)
	l.Add(2, 2)
	assert.InDelta(t, 3.0, l.Extrapolate(3), 1e-9)

	// beyond the stale period the whole window is purged
	l.now = func() time.Time { return now.Add(2 * time.Second) }
	assert.Equal(t, 0.0, l.Extrapolate(3))
	assert.Equal(t, 0, l.Size())
}
