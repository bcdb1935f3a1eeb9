package estimator

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestUtilEstimatorUnseenSizeForcesDestination(t *testing.T) {
	e := NewUtilEstimator(time.Hour, 10, discard())
	e.Add("f", "dest-0")

	dest, ptime, err := e.SmallestPtime("f", 512)
	require.NoError(t, err)
	assert.Equal(t, "dest-0", dest)
	assert.Equal(t, 0.0, ptime)
}

func TestUtilEstimatorRegressesPtimeOnLoad(t *testing.T) {
	e := NewUtilEstimator(time.Hour, 10, discard())
	e.Add("f", "dest-0")

	e.AddSample("f", "dest-0", 100, 0.010, 10, 0)
	e.AddSample("f", "dest-0", 100, 0.020, 20, 0)
	e.AddSample("f", "dest-0", 100, 0.030, 30, 0)

	// the last reported load is 30, so the fit predicts 30 ms
	_, ptime, err := e.SmallestPtime("f", 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.030, ptime, 1e-6)
}

func TestUtilEstimatorLoadStalenessResetsToZero(t *testing.T) {
	now := time.Now()
	e := NewUtilEstimator(time.Second, 10, discard())
	e.now = func() time.Time { return now }
	e.Add("f", "dest-0")

	e.AddSample("f", "dest-0", 100, 0.010, 10, 0)
	e.AddSample("f", "dest-0", 100, 0.030, 30, 0)

	comp := e.computer("dest-0")
	require.NotNil(t, comp)
	load, _ := comp.lastLoad()
	assert.Equal(t, uint16(30), load)

	// after the timeout the cached load resets, forcing re-probing
	comp.now = func() time.Time { return now.Add(2 * time.Second) }
	load, _ = comp.lastLoad()
	assert.Equal(t, uint16(0), load)
}

func TestUtilEstimatorBestMinimizesRttPlusPtime(t *testing.T) {
	e := NewUtilEstimator(time.Hour, 10, discard())
	e.Add("f", "near")
	e.Add("f", "far")

	// near is lightly loaded but slow, far is fast
	e.AddSample("f", "near", 100, 0.100, 10, 0)
	e.AddSample("f", "near", 100, 0.100, 20, 0)
	e.AddSample("f", "far", 100, 0.010, 10, 0)
	e.AddSample("f", "far", 100, 0.010, 20, 0)

	rtts := map[string]float64{"near": 0.001, "far": 0.005}
	dest, rtt, ptime, err := e.Best("f", 100, rtts)
	require.NoError(t, err)
	assert.Equal(t, "far", dest)
	assert.InDelta(t, 0.005, rtt, 1e-9)
	assert.InDelta(t, 0.010, ptime, 1e-6)
}

func TestUtilEstimatorRemoveDropsComputerWithLastLambda(t *testing.T) {
	e := NewUtilEstimator(time.Hour, 10, discard())
	e.Add("f", "dest-0")
	e.Add("g", "dest-0")

	assert.True(t, e.Remove("f", "dest-0"))
	assert.NotNil(t, e.computer("dest-0"))

	assert.True(t, e.Remove("g", "dest-0"))
	assert.Nil(t, e.computer("dest-0"))
}

func TestUtilEstimatorClampsOverflowingLoad(t *testing.T) {
	e := NewUtilEstimator(time.Hour, 10, discard())
	e.Add("f", "dest-0")

	e.AddSample("f", "dest-0", 100, 0.010, 250, 0)
	comp := e.computer("dest-0")
	require.NotNil(t, comp)
	load, _ := comp.lastLoad()
	assert.Equal(t, uint16(99), load)
}
