package estimator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/ferry/internal/core/domain"
)

func okResponse(ptimeMs uint32) domain.LambdaResponse {
	rep := domain.NewLambdaResponse(domain.RetCodeOK, "out")
	rep.ProcessingTime = ptimeMs
	return rep
}

func TestPtimeEstimatorRecordsOnePredictionPerDecision(t *testing.T) {
	e := NewRtt(5, time.Hour, discard())
	e.Change("f", "dest-a", 1.0, true)
	e.Change("f", "dest-b", 1.0, true)

	req := domain.NewLambdaRequest("f", "hello", nil)
	req.Seq = 1

	dest, err := e.Destination(req)
	require.NoError(t, err)
	assert.Equal(t, "dest-a", dest) // both predict 0, smallest wins
	assert.Len(t, e.predictions, 1)

	e.ProcessSuccess(req, dest, okResponse(17), 50*time.Millisecond)
	assert.Empty(t, e.predictions)
}

func TestPtimeEstimatorFailurePurgesDestination(t *testing.T) {
	e := NewRtt(5, time.Hour, discard())
	e.Change("f", "dest-a", 1.0, true)
	e.Change("f", "dest-b", 1.0, true)

	req := domain.NewLambdaRequest("f", "hello", nil)
	req.Seq = 7

	dest, err := e.Destination(req)
	require.NoError(t, err)

	e.ProcessFailure(req, dest)
	assert.Empty(t, e.predictions)
	assert.NotContains(t, e.FullTable()["f"], dest)

	// the last destination going away erases the lambda entirely
	req.Seq = 8
	dest, err = e.Destination(req)
	require.NoError(t, err)
	e.ProcessFailure(req, dest)
	assert.Empty(t, e.Lambdas())

	_, err = e.Destination(req)
	require.Error(t, err)
}

func TestPtimeEstimatorChangeIsIdempotent(t *testing.T) {
	e := NewRtt(5, time.Hour, discard())
	e.Change("f", "dest-a", 1.0, true)
	e.Change("f", "dest-a", 1.0, true)

	table := e.FullTable()
	require.Len(t, table, 1)
	assert.Len(t, table["f"], 1)
	// the weight is carried but always recorded as 1.0
	assert.Equal(t, 1.0, table["f"]["dest-a"].Weight)
	assert.True(t, table["f"]["dest-a"].Final)
}

func TestPtimeEstimatorLearnsFromOutcomes(t *testing.T) {
	e := NewRtt(5, time.Hour, discard())
	e.Change("f", "fast", 1.0, true)
	e.Change("f", "slow", 1.0, true)

	req := domain.NewLambdaRequest("f", "0123456789", nil)
	feed := func(seq uint64, dest string, elapsed time.Duration) {
		r := req
		r.Seq = seq
		e.mu.Lock()
		e.predictions[r.Seq] = prediction{}
		e.mu.Unlock()
		e.ProcessSuccess(r, dest, okResponse(0), elapsed)
	}
	// two samples per destination so the fits are valid
	feed(1, "fast", 10*time.Millisecond)
	feed(2, "fast", 12*time.Millisecond)
	feed(3, "slow", 300*time.Millisecond)
	feed(4, "slow", 320*time.Millisecond)

	req.Seq = 5
	dest, err := e.Destination(req)
	require.NoError(t, err)
	assert.Equal(t, "fast", dest)
}

type fakeInvoker struct {
	ptimes map[string]uint32
	calls  []string
}

func (f *fakeInvoker) Invoke(_ context.Context, destination string, _ domain.LambdaRequest, dry bool) (domain.LambdaResponse, time.Duration, error) {
	f.calls = append(f.calls, destination)
	if !dry {
		return domain.NewLambdaResponse("probe must be dry", ""), 0, nil
	}
	return okResponse(f.ptimes[destination]), time.Millisecond, nil
}

func TestProbeEstimatorPicksSmallestSimulatedPtime(t *testing.T) {
	invoker := &fakeInvoker{ptimes: map[string]uint32{"dest-a": 30, "dest-b": 5, "dest-c": 20}}
	e, err := NewProbe(invoker, "", discard())
	require.NoError(t, err)
	e.Change("f", "dest-a", 1.0, true)
	e.Change("f", "dest-b", 1.0, true)
	e.Change("f", "dest-c", 1.0, true)

	req := domain.NewLambdaRequest("f", "x", nil)
	req.Seq = 1

	dest, err := e.Destination(req)
	require.NoError(t, err)
	assert.Equal(t, "dest-b", dest)
	assert.Len(t, invoker.calls, 3)
}

func TestProbeEstimatorRemoveStopsProbingDestination(t *testing.T) {
	invoker := &fakeInvoker{ptimes: map[string]uint32{"dest-a": 1, "dest-b": 50}}
	e, err := NewProbe(invoker, "", discard())
	require.NoError(t, err)
	e.Change("f", "dest-a", 1.0, true)
	e.Change("f", "dest-b", 1.0, true)

	// a removed destination must not be probed again
	e.Remove("f", "dest-a")

	req := domain.NewLambdaRequest("f", "x", nil)
	req.Seq = 1
	dest, err := e.Destination(req)
	require.NoError(t, err)
	assert.Equal(t, "dest-b", dest)
	assert.Equal(t, []string{"dest-b"}, invoker.calls)
}
