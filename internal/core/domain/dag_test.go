package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDagValidatesSizes(t *testing.T) {
	_, err := NewDag([][]int{{1}}, []string{"f0", "f1", "f2"}, nil)
	require.Error(t, err)
}

func TestNewDagRejectsInvalidSuccessorIndices(t *testing.T) {
	// an edge back into the entry slot
	_, err := NewDag([][]int{{0}}, []string{"f0", "f1"}, nil)
	require.Error(t, err)

	// an edge past the terminal slot
	_, err = NewDag([][]int{{2}}, []string{"f0", "f1"}, nil)
	require.Error(t, err)

	// a negative edge
	_, err = NewDag([][]int{{-1}}, []string{"f0", "f1"}, nil)
	require.Error(t, err)
}

func TestDagFromJSONRejectsNegativeSuccessor(t *testing.T) {
	// hostile wire payloads must fail cleanly, not panic
	_, err := DagFromJSON([]byte(`{"successors":[[-1]],"functionNames":["f0","f1"]}`))
	require.Error(t, err)
}

func TestNewDagRejectsUnknownDependencyFunction(t *testing.T) {
	_, err := NewDag([][]int{{1}}, []string{"f0", "f1"}, map[string][]string{"s0": {"f9"}})
	require.Error(t, err)
}

func TestDagPredecessorsAreTheTranspose(t *testing.T) {
	dag := ExampleDag()

	for i := 0; i < dag.NumFunctions(); i++ {
		successors, err := dag.SuccessorIndices(i)
		require.NoError(t, err)
		for _, j := range successors {
			assert.Greater(t, j, 0)
			assert.Less(t, j, dag.NumFunctions())
			predecessors, err := dag.PredecessorIndices(j)
			require.NoError(t, err)
			assert.Contains(t, predecessors, i)
		}
	}

	entry, err := dag.PredecessorIndices(0)
	require.NoError(t, err)
	assert.Empty(t, entry)

	terminal, err := dag.SuccessorIndices(dag.NumFunctions() - 1)
	require.NoError(t, err)
	assert.Empty(t, terminal)
}

func TestDagEntryAndName(t *testing.T) {
	dag := ExampleDag()
	assert.Equal(t, "f0", dag.EntryFunctionName())
	assert.Equal(t, "f0-f1-f2-f2", dag.Name())
	assert.Equal(t, []string{"f0", "f1", "f2"}, dag.UniqueFunctions())
}

func TestDagJSONRoundTrip(t *testing.T) {
	dag := ExampleDag()

	data, err := dag.ToJSON()
	require.NoError(t, err)

	parsed, err := DagFromJSON(data)
	require.NoError(t, err)
	assert.True(t, dag.Equal(parsed))

	// the derived predecessors survive the round trip
	preds, err := parsed.PredecessorIndices(3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, preds)
}

func TestDagFromJSONRequiresMandatoryFields(t *testing.T) {
	_, err := DagFromJSON([]byte(`{"functionNames": ["f0"]}`))
	require.Error(t, err)
}

func TestParseLambdaName(t *testing.T) {
	ns, fn, err := ParseLambdaName("foo", "default")
	require.NoError(t, err)
	assert.Equal(t, "default", ns)
	assert.Equal(t, "foo", fn)

	ns, fn, err = ParseLambdaName("/guest/echo", "default")
	require.NoError(t, err)
	assert.Equal(t, "guest", ns)
	assert.Equal(t, "echo", fn)

	for _, bad := range []string{"", "/", "/ns", "/ns/", "//fn", "a/b", "/a/b/c"} {
		_, _, err = ParseLambdaName(bad, "default")
		assert.Error(t, err, bad)
	}
}

func TestClampLoad(t *testing.T) {
	assert.Equal(t, uint16(0), ClampLoad(-0.5))
	assert.Equal(t, uint16(50), ClampLoad(0.5))
	assert.Equal(t, uint16(99), ClampLoad(1.0))
	assert.Equal(t, uint16(99), ClampLoad(7.0))
}

func TestOneMoreHop(t *testing.T) {
	req := NewLambdaRequest("f", "x", []byte("data"))
	next := req.OneMoreHop()

	assert.Equal(t, uint32(0), req.Hops)
	assert.False(t, req.Forward)
	assert.Equal(t, uint32(1), next.Hops)
	assert.True(t, next.Forward)
	assert.Equal(t, req.Name, next.Name)
}

func TestInputSizeIsTheLargerOfTextAndData(t *testing.T) {
	req := NewLambdaRequest("f", "abc", []byte("abcdef"))
	assert.Equal(t, 6, req.InputSize())

	req = NewLambdaRequest("f", "abcdefgh", []byte("x"))
	assert.Equal(t, 8, req.InputSize())
}
