package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/ferry/internal/core/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// echoClient replies OK with output := input + "!" and records the requests
// it served.
type echoClient struct {
	requests []domain.LambdaRequest
}

func (c *echoClient) RunLambda(_ context.Context, req domain.LambdaRequest, _ bool) (domain.LambdaResponse, error) {
	c.requests = append(c.requests, req)
	rep := domain.NewLambdaResponse(domain.RetCodeOK, req.Input+"!")
	rep.Hops = 1
	rep.ProcessingTime = 10
	rep.Responder = "computer-0"
	rep.Load1 = 42
	rep.States = req.States
	return rep, nil
}

func (c *echoClient) Close() error { return nil }

func stateNames(states map[string]domain.State) []string {
	out := make([]string, 0, len(states))
	for name := range states {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func TestFunctionChainThreadsOutputsAndStates(t *testing.T) {
	cl := &echoClient{}
	composer := NewComposer(cl, discard())
	composer.StageState("s0", []byte("v0"))
	composer.StageState("s1", []byte("v1"))
	composer.StageState("s2", []byte("v2"))
	composer.StageState("s3", []byte("v3"))

	chain := domain.ExampleChain() // [f1 f2 f1], s0:{f1} s1:{f1,f2} s2:{f2} s3:{}

	rep, err := composer.FunctionChain(context.Background(), chain, "hi", nil, false)
	require.NoError(t, err)
	require.True(t, rep.OK())

	assert.Equal(t, "hi!!!", rep.Output)
	assert.Equal(t, uint32(3), rep.Hops)
	assert.Equal(t, uint32(30), rep.ProcessingTime)
	assert.Nil(t, rep.States) // states never reach the caller
	assert.Empty(t, rep.Responder)
	assert.Equal(t, uint16(0), rep.Load1)

	require.Len(t, cl.requests, 3)
	assert.Equal(t, "f1", cl.requests[0].Name)
	assert.Equal(t, "f2", cl.requests[1].Name)
	assert.Equal(t, "f1", cl.requests[2].Name)

	// each step carries only the states its function depends on
	assert.Equal(t, []string{"s0", "s1"}, stateNames(cl.requests[0].States))
	assert.Equal(t, []string{"s1", "s2"}, stateNames(cl.requests[1].States))
	assert.Equal(t, []string{"s0", "s1"}, stateNames(cl.requests[2].States))

	// outputs feed the next input
	assert.Equal(t, "hi", cl.requests[0].Input)
	assert.Equal(t, "hi!", cl.requests[1].Input)
	assert.Equal(t, "hi!!", cl.requests[2].Input)
}

type failingClient struct {
	failAt int
	calls  int
}

func (c *failingClient) RunLambda(_ context.Context, req domain.LambdaRequest, _ bool) (domain.LambdaResponse, error) {
	c.calls++
	if c.calls == c.failAt {
		return domain.NewLambdaResponse("executor exploded", ""), nil
	}
	return domain.NewLambdaResponse(domain.RetCodeOK, req.Input+"!"), nil
}

func (c *failingClient) Close() error { return nil }

func TestFunctionChainAbortsOnFirstFailure(t *testing.T) {
	cl := &failingClient{failAt: 2}
	composer := NewComposer(cl, discard())
	composer.StageState("s0", nil)
	composer.StageState("s1", nil)
	composer.StageState("s2", nil)

	rep, err := composer.FunctionChain(context.Background(), domain.ExampleChain(), "hi", nil, false)
	require.NoError(t, err)
	assert.False(t, rep.OK())
	assert.Equal(t, "executor exploded", rep.RetCode)
	assert.Equal(t, 2, cl.calls)
}

func TestFunctionChainMissingStateFails(t *testing.T) {
	composer := NewComposer(&echoClient{}, discard())
	// s1 and s2 never staged, no state source

	composer.StageState("s0", nil)
	_, err := composer.FunctionChain(context.Background(), domain.ExampleChain(), "hi", nil, false)
	var missing *domain.StateMissingError
	require.ErrorAs(t, err, &missing)
}

func TestSingleAttachesChainAndCallback(t *testing.T) {
	cl := &echoClient{}
	composer := NewComposer(cl, discard())
	composer.StageState("s0", []byte("v0"))
	composer.StageState("s1", []byte("v1"))
	composer.StageState("s2", []byte("v2"))

	chain := domain.ExampleChain()
	rep, err := composer.Single(context.Background(), "", "hi", nil, chain, "client:9999", false)
	require.NoError(t, err)
	assert.True(t, rep.OK())

	require.Len(t, cl.requests, 1)
	req := cl.requests[0]
	assert.Equal(t, "f1", req.Name) // the chain's first function
	assert.Equal(t, "client:9999", req.Callback)
	require.NotNil(t, req.Chain)
	assert.Equal(t, 0, req.NextFunctionIndex)
	// the whole non-free state set travels with the request
	assert.Equal(t, []string{"s0", "s1", "s2"}, stateNames(req.States))
}

func TestSingleChainWithoutCallbackRejected(t *testing.T) {
	composer := NewComposer(&echoClient{}, discard())
	_, err := composer.Single(context.Background(), "", "hi", nil, domain.ExampleChain(), "", false)
	require.Error(t, err)
}

func TestSinglePlainFunction(t *testing.T) {
	cl := &echoClient{}
	composer := NewComposer(cl, discard())

	rep, err := composer.Single(context.Background(), "echo", "hi", nil, nil, "", false)
	require.NoError(t, err)
	assert.Equal(t, "hi!", rep.Output)
	require.Len(t, cl.requests, 1)
	assert.Equal(t, "echo", cl.requests[0].Name)
	assert.Empty(t, cl.requests[0].States)
}

func TestDagRequiresCallback(t *testing.T) {
	composer := NewComposer(&echoClient{}, discard())
	_, err := composer.Dag(context.Background(), domain.ExampleDag(), "hi", nil, "", false)
	require.Error(t, err)
}

func TestDagSubmitsEntryFunction(t *testing.T) {
	cl := &echoClient{}
	composer := NewComposer(cl, discard())
	composer.StageState("s0", nil)
	composer.StageState("s1", nil)
	composer.StageState("s2", nil)

	_, err := composer.Dag(context.Background(), domain.ExampleDag(), "hi", nil, "client:9999", false)
	require.NoError(t, err)

	require.Len(t, cl.requests, 1)
	assert.Equal(t, "f0", cl.requests[0].Name)
	require.NotNil(t, cl.requests[0].Dag)
	assert.Equal(t, "client:9999", cl.requests[0].Callback)
}

type mapSource struct {
	states map[string][]byte
}

func (m *mapSource) Get(_ context.Context, name string) ([]byte, bool, error) {
	content, ok := m.states[name]
	return content, ok, nil
}

func TestComposerFallsBackToStateSource(t *testing.T) {
	cl := &echoClient{}
	composer := NewComposer(cl, discard())
	composer.SetStateSource(&mapSource{states: map[string][]byte{
		"s0": []byte("remote-0"), "s1": []byte("remote-1"), "s2": []byte("remote-2"),
	}})

	rep, err := composer.FunctionChain(context.Background(), domain.ExampleChain(), "hi", nil, false)
	require.NoError(t, err)
	assert.True(t, rep.OK())
	assert.Equal(t, []byte("remote-0"), cl.requests[0].States["s0"].Content)
}
