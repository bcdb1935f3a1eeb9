// Package orchestrator drives chains and DAGs from the client side: single
// invocations, synchronous chain walking, and asynchronous submission with a
// callback.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/thushan/ferry/internal/core/domain"
	"github.com/thushan/ferry/internal/core/ports"
)

// StateSource resolves the content of named states staged by the caller.
type StateSource interface {
	Get(ctx context.Context, name string) ([]byte, bool, error)
}

// Composer executes lambdas through an edge client, carrying states between
// stages. The three modes are mutually exclusive per call.
type Composer struct {
	client ports.LambdaClient
	states map[string]domain.State
	source StateSource
	logger *slog.Logger
}

func NewComposer(client ports.LambdaClient, logger *slog.Logger) *Composer {
	return &Composer{
		client: client,
		states: make(map[string]domain.State),
		logger: logger,
	}
}

// SetStateSource points remote state references at a state store.
func (c *Composer) SetStateSource(source StateSource) {
	c.source = source
}

// StageState registers an inline state available to subsequent calls.
func (c *Composer) StageState(name string, content []byte) {
	c.states[name] = domain.State{Content: content}
}

// StageRemoteState registers a state addressed by location in the store.
func (c *Composer) StageRemoteState(name, location string) {
	c.states[name] = domain.State{Location: location}
}

// Single invokes one function. When a chain is supplied its states are
// attached and the whole descriptor travels with the request for edge-side
// execution; the callback endpoint is mandatory in that case.
func (c *Composer) Single(ctx context.Context, lambda, input string, dataIn []byte, chain *domain.Chain, callback string, dry bool) (domain.LambdaResponse, error) {
	name := lambda
	if chain != nil {
		if callback == "" {
			return domain.LambdaResponse{}, fmt.Errorf("uninitialized callback end-point")
		}
		if len(chain.Functions) > 0 {
			name = chain.Functions[0]
		}
	}

	req := domain.NewLambdaRequest(name, input, dataIn)
	req.Callback = callback
	if chain != nil {
		req.Chain = chain
		req.NextFunctionIndex = 0
		states, err := c.collect(ctx, chain.AllStates(false))
		if err != nil {
			return domain.LambdaResponse{}, err
		}
		req.States = states
	}

	return c.client.RunLambda(ctx, req, dry)
}

// FunctionChain walks the chain synchronously: each step carries only the
// states its function depends on and feeds its output into the next input.
// Aborts on the first non-OK response. The final response carries the summed
// hops and processing time and no states.
func (c *Composer) FunctionChain(ctx context.Context, chain *domain.Chain, input string, dataIn []byte, dry bool) (domain.LambdaResponse, error) {
	if chain == nil {
		return domain.LambdaResponse{}, fmt.Errorf("uninitialized function chain")
	}

	var rep domain.LambdaResponse
	var hops, ptime uint32
	curInput, curDataIn := input, dataIn
	for _, function := range chain.Functions {
		req := domain.NewLambdaRequest(function, curInput, curDataIn)
		states, err := c.collect(ctx, chain.StatesFor(function))
		if err != nil {
			return domain.LambdaResponse{}, err
		}
		req.States = states

		rep, err = c.client.RunLambda(ctx, req, dry)
		if err != nil {
			return domain.LambdaResponse{}, err
		}
		c.logger.Debug("chain stage returned", "function", function, "response", rep.String())
		if !rep.OK() {
			break
		}

		curInput, curDataIn = rep.Output, rep.DataOut
		hops += rep.Hops
		ptime += rep.ProcessingTime
	}

	// the states never reach the caller
	rep.States = nil
	if len(chain.Functions) > 1 {
		rep.Responder = ""
		rep.Load1, rep.Load10, rep.Load30 = 0, 0, 0
		rep.Hops = hops
		rep.ProcessingTime = ptime
	}
	return rep, nil
}

// Dag submits the whole DAG for edge-side execution. Only the asynchronous
// form exists: the returned response is an ack and the real outcome arrives
// through the callback.
func (c *Composer) Dag(ctx context.Context, dag *domain.Dag, input string, dataIn []byte, callback string, dry bool) (domain.LambdaResponse, error) {
	if dag == nil {
		return domain.LambdaResponse{}, fmt.Errorf("uninitialized function DAG")
	}
	if callback == "" {
		return domain.LambdaResponse{}, fmt.Errorf("uninitialized callback end-point")
	}

	req := domain.NewLambdaRequest(dag.EntryFunctionName(), input, dataIn)
	req.Dag = dag
	req.Callback = callback
	states, err := c.collect(ctx, dag.AllStates(false))
	if err != nil {
		return domain.LambdaResponse{}, err
	}
	req.States = states

	return c.client.RunLambda(ctx, req, dry)
}

// collect gathers the named states from the staged set, falling back to the
// state source for names never staged.
func (c *Composer) collect(ctx context.Context, names []string) (map[string]domain.State, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make(map[string]domain.State, len(names))
	for _, name := range names {
		if ref, ok := c.states[name]; ok {
			out[name] = ref
			continue
		}
		if c.source != nil {
			content, found, err := c.source.Get(ctx, name)
			if err != nil {
				return nil, err
			}
			if found {
				out[name] = domain.State{Content: content}
				continue
			}
		}
		return nil, &domain.StateMissingError{Name: name}
	}
	return out, nil
}
