package computer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/thushan/ferry/internal/core/domain"
)

// StateAccess is the slice of the state store the walker needs.
type StateAccess interface {
	Get(ctx context.Context, name string) ([]byte, bool, error)
	Put(ctx context.Context, name string, content []byte) error
}

// CallbackDeliverer posts an asynchronous response back to the client.
type CallbackDeliverer interface {
	Deliver(ctx context.Context, endpoint string, rep domain.LambdaResponse) error
}

// Walker runs chains and DAGs on the edge side. The submitting request is
// acknowledged immediately; the outcome travels once through the callback
// channel. Failed deliveries are logged and dropped.
type Walker struct {
	comp     *Computer
	states   StateAccess
	callback CallbackDeliverer
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewWalker(comp *Computer, states StateAccess, callback CallbackDeliverer, logger *slog.Logger) *Walker {
	return &Walker{
		comp:     comp,
		states:   states,
		callback: callback,
		logger:   logger,
	}
}

// Submit starts the walk in the background and returns the ack.
func (w *Walker) Submit(req domain.LambdaRequest) domain.LambdaResponse {
	w.wg.Add(1)
	go w.run(req)

	ack := domain.NewLambdaResponse(domain.RetCodeOK, "")
	ack.Asynchronous = true
	ack.Hops = req.Hops + 1
	return ack
}

// Wait blocks until every in-flight walk has finished.
func (w *Walker) Wait() {
	w.wg.Wait()
}

func (w *Walker) run(req domain.LambdaRequest) {
	defer w.wg.Done()
	ctx := context.Background()

	var rep domain.LambdaResponse
	if req.Chain != nil {
		rep = w.walkChain(ctx, req)
	} else {
		rep = w.walkDag(ctx, req)
	}

	if err := w.callback.Deliver(ctx, req.Callback, rep); err != nil {
		w.logger.Error("callback delivery failed, dropping the outcome",
			"callback", req.Callback, "error", err)
	}
}

func (w *Walker) walkChain(ctx context.Context, req domain.LambdaRequest) domain.LambdaResponse {
	chain := req.Chain
	// NextFunctionIndex arrives on the wire and cannot be trusted
	if req.NextFunctionIndex < 0 || req.NextFunctionIndex >= len(chain.Functions) {
		return domain.NewLambdaResponse(fmt.Sprintf("invalid next function index: %d", req.NextFunctionIndex), "")
	}
	states, remote, err := w.materialize(ctx, chain.AllStates(false), req.States)
	if err != nil {
		return domain.NewLambdaResponse(err.Error(), "")
	}

	input, dataIn := req.Input, req.DataIn
	var rep domain.LambdaResponse
	var hops, ptime uint32
	for i := req.NextFunctionIndex; i < len(chain.Functions); i++ {
		function := chain.Functions[i]
		stage := domain.NewLambdaRequest(function, input, dataIn)
		stage.Hops = req.Hops
		stage.States = stageStates(states, chain.StatesFor(function))

		rep = w.comp.execute(ctx, stage)
		if !rep.OK() {
			return rep
		}
		mergeStates(states, rep.States)

		input, dataIn = rep.Output, rep.DataOut
		hops += rep.Hops + 1
		ptime += rep.ProcessingTime
	}

	w.writeBack(ctx, states, remote)

	rep.States = nil
	rep.Responder = w.comp.endpoint
	rep.Hops = hops
	rep.ProcessingTime = ptime
	return rep
}

func (w *Walker) walkDag(ctx context.Context, req domain.LambdaRequest) domain.LambdaResponse {
	dag := req.Dag
	states, remote, err := w.materialize(ctx, dag.AllStates(false), req.States)
	if err != nil {
		return domain.NewLambdaResponse(err.Error(), "")
	}

	n := dag.NumFunctions()
	indegree := make([]int, n)
	for i := 1; i < n; i++ {
		preds, _ := dag.PredecessorIndices(i)
		indegree[i] = len(preds)
	}

	var mu sync.Mutex
	results := make([]domain.LambdaResponse, n)
	inputs := make([]string, n)
	dataIns := make([][]byte, n)
	inputs[0] = req.Input
	dataIns[0] = req.DataIn

	completions := make(chan int)
	launch := func(slot int) {
		go func() {
			function := dag.FunctionNames[slot]
			stage := domain.NewLambdaRequest(function, inputs[slot], dataIns[slot])
			stage.Hops = req.Hops

			mu.Lock()
			stage.States = stageStates(states, dag.StatesFor(function))
			mu.Unlock()

			rep := w.comp.execute(ctx, stage)

			mu.Lock()
			mergeStates(states, rep.States)
			results[slot] = rep
			mu.Unlock()

			completions <- slot
		}()
	}

	launch(0)
	outstanding := 1
	failed := false
	var failure domain.LambdaResponse
	var hops, ptime uint32

	for outstanding > 0 {
		slot := <-completions
		outstanding--

		rep := results[slot]
		if !rep.OK() {
			if !failed {
				failed = true
				failure = rep
			}
			continue
		}
		hops += rep.Hops + 1
		ptime += rep.ProcessingTime
		if failed {
			continue
		}

		successors, _ := dag.SuccessorIndices(slot)
		for _, next := range successors {
			indegree[next]--
			if indegree[next] == 0 {
				// a joining slot consumes the output of its last-completed
				// predecessor
				inputs[next] = rep.Output
				dataIns[next] = rep.DataOut
				launch(next)
				outstanding++
			}
		}
	}

	if failed {
		return failure
	}

	w.writeBack(ctx, states, remote)

	rep := results[n-1]
	rep.States = nil
	rep.Responder = w.comp.endpoint
	rep.Hops = hops
	rep.ProcessingTime = ptime
	return rep
}

// materialize resolves the required states to inline contents, fetching
// remote ones from the state store. Returns the set of names that must be
// written back on completion.
func (w *Walker) materialize(ctx context.Context, names []string, provided map[string]domain.State) (map[string][]byte, map[string]string, error) {
	states := make(map[string][]byte, len(names))
	remote := make(map[string]string)
	for _, name := range names {
		ref, ok := provided[name]
		switch {
		case ok && !ref.Remote():
			states[name] = ref.Content
		case ok && ref.Remote():
			content, found, err := w.states.Get(ctx, ref.Location)
			if err != nil {
				return nil, nil, err
			}
			if !found {
				return nil, nil, &domain.StateMissingError{Name: name}
			}
			states[name] = content
			remote[name] = ref.Location
		default:
			return nil, nil, &domain.StateMissingError{Name: name}
		}
	}
	return states, remote, nil
}

func (w *Walker) writeBack(ctx context.Context, states map[string][]byte, remote map[string]string) {
	for name, location := range remote {
		if err := w.states.Put(ctx, location, states[name]); err != nil {
			w.logger.Error("could not write back state", "state", name, "error", err)
		}
	}
}

func stageStates(states map[string][]byte, names []string) map[string]domain.State {
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]domain.State, len(names))
	for _, name := range names {
		out[name] = domain.State{Content: states[name]}
	}
	return out
}

func mergeStates(states map[string][]byte, updated map[string]domain.State) {
	for name, ref := range updated {
		if !ref.Remote() {
			states[name] = ref.Content
		}
	}
}
