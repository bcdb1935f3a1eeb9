package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/ferry/internal/core/domain"
)

func TestForwardingTableWeightedDraw(t *testing.T) {
	table := NewForwardingTable()
	table.Change("f", "dest-a", 3, true)
	table.Change("f", "dest-b", 1, true)

	table.random = func() float64 { return 0.5 } // 0.5*4=2 <= 3
	dest, err := table.Destination("f")
	require.NoError(t, err)
	assert.Equal(t, "dest-a", dest)

	table.random = func() float64 { return 0.9 } // 3.6 > 3
	dest, err = table.Destination("f")
	require.NoError(t, err)
	assert.Equal(t, "dest-b", dest)
}

func TestForwardingTableRemoveErasesEmptyLambda(t *testing.T) {
	table := NewForwardingTable()
	table.Change("f", "dest-a", 1, true)
	table.Remove("f", "dest-a")

	assert.Empty(t, table.Lambdas())
	_, err := table.Destination("f")
	var noDest *domain.NoDestinationsError
	require.ErrorAs(t, err, &noDest)
}

func TestForwardingTableUpdateWeightPreservesFinalFlag(t *testing.T) {
	table := NewForwardingTable()
	table.Change("f", "dest-a", 1, true)
	table.UpdateWeight("f", "dest-a", 42)

	entry := table.FullTable()["f"]["dest-a"]
	assert.Equal(t, 42.0, entry.Weight)
	assert.True(t, entry.Final)

	// unknown entries are ignored
	table.UpdateWeight("f", "ghost", 7)
	assert.NotContains(t, table.FullTable()["f"], "ghost")
}

func TestRouterSplitsTablesByOrigin(t *testing.T) {
	router := NewRouter()
	router.overall.Change("f", "other-node", 1, false)
	router.final.Change("f", "computer-1", 1, true)

	fromClient := domain.NewLambdaRequest("f", "x", nil)
	dest, err := router.Destination(fromClient)
	require.NoError(t, err)
	assert.Equal(t, "other-node", dest)

	forwarded := fromClient.OneMoreHop()
	dest, err = router.Destination(forwarded)
	require.NoError(t, err)
	assert.Equal(t, "computer-1", dest)
}

func TestRouterFailurePurgesBothTables(t *testing.T) {
	router := NewRouter()
	router.overall.Change("f", "gone", 1, false)
	router.overall.Change("f", "alive", 1, false)
	router.final.Change("f", "gone", 1, true)

	router.ProcessFailure(domain.NewLambdaRequest("f", "x", nil), "gone")

	assert.NotContains(t, router.overall.FullTable()["f"], "gone")
	assert.NotContains(t, router.final.FullTable(), "f")
	assert.Contains(t, router.overall.FullTable()["f"], "alive")
}

func TestRouterSuccessUpdatesTheMatchingOptimizer(t *testing.T) {
	router := NewRouter()
	router.overall.Change("f", "dest-a", 1, false)
	router.final.Change("f", "dest-a", 1, true)

	fromClient := domain.NewLambdaRequest("f", "x", nil)
	router.ProcessSuccess(fromClient, "dest-a", domain.NewLambdaResponse(domain.RetCodeOK, ""), 100*time.Millisecond)

	// the overall weight now tracks 1/latency, the final one is untouched
	assert.InDelta(t, 10.0, router.overall.FullTable()["f"]["dest-a"].Weight, 1e-6)
	assert.Equal(t, 1.0, router.final.FullTable()["f"]["dest-a"].Weight)
}
