package estimator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRttEstimatorPredictsFromWindow(t *testing.T) {
	e := NewRttEstimator(3, time.Hour)
	e.Add("f", "dest-0")

	e.AddSample("f", "dest-0", 100, 0.010)
	e.AddSample("f", "dest-0", 200, 0.020)
	e.AddSample("f", "dest-0", 300, 0.030)

	rtt := e.Rtt("f", "dest-0", 250)
	assert.Greater(t, rtt, 0.020)
	assert.Less(t, rtt, 0.030)

	// feeding a new regime pushes the prediction up once the early samples
	// leave the window
	for i := 0; i < 4; i++ {
		e.AddSample("f", "dest-0", 100, 1.0)
	}
	assert.Greater(t, e.Rtt("f", "dest-0", 250), 0.5)
}

func TestRttEstimatorUnknownPairPredictsZero(t *testing.T) {
	e := NewRttEstimator(3, time.Hour)
	assert.Equal(t, 0.0, e.Rtt("f", "nowhere", 100))
}

func TestRttEstimatorNeverNegative(t *testing.T) {
	e := NewRttEstimator(5, time.Hour)
	e.Add("f", "dest-0")
	// negative slope pushing the extrapolation below zero
	e.AddSample("f", "dest-0", 100, 0.030)
	e.AddSample("f", "dest-0", 200, 0.010)

	assert.GreaterOrEqual(t, e.Rtt("f", "dest-0", 1000), 0.0)
}

func TestRttEstimatorShortestRtt(t *testing.T) {
	e := NewRttEstimator(5, time.Hour)
	e.Add("f", "fast")
	e.Add("f", "slow")

	e.AddSample("f", "fast", 100, 0.010)
	e.AddSample("f", "fast", 200, 0.020)
	e.AddSample("f", "slow", 100, 0.100)
	e.AddSample("f", "slow", 200, 0.200)

	dest, rtt, err := e.ShortestRtt("f", 150)
	require.NoError(t, err)
	assert.Equal(t, "fast", dest)
	assert.InDelta(t, 0.015, rtt, 1e-9)

	all, err := e.Rtts("f", 150)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRttEstimatorPurgedWindowBecomesProbeCandidate(t *testing.T) {
	e := NewRttEstimator(5, time.Hour)
	e.Add("f", "stale")
	e.Add("f", "fresh")

	desc, err := e.t.Find("f", "stale")
	require.NoError(t, err)
	now := time.Now()
	desc.est.now = func() time.Time { return now }

	e.AddSample("f", "stale", 100, 0.001)
	e.AddSample("f", "stale", 200, 0.002)
	e.AddSample("f", "fresh", 100, 0.500)
	e.AddSample("f", "fresh", 200, 0.500)

	dest, _, err := e.ShortestRtt("f", 150)
	require.NoError(t, err)
	assert.Equal(t, "stale", dest)

	// once its samples expire the stale destination predicts 0 and keeps
	// winning, acting as a periodic probe
	desc.est.now = func() time.Time { return now.Add(2 * time.Hour) }
	dest, rtt, err := e.ShortestRtt("f", 150)
	require.NoError(t, err)
	assert.Equal(t, "stale", dest)
	assert.Equal(t, 0.0, rtt)
}
