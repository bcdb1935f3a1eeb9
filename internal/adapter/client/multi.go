package client

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"

	"github.com/thushan/ferry/internal/core/domain"
	"github.com/thushan/ferry/internal/core/ports"
)

// messageIn travels from the calling goroutine to one executor. The request
// pointer refers to the holder owned by the Multi, which outlives the
// caller's scope.
type messageIn struct {
	ctx context.Context
	req *domain.LambdaRequest
	dry bool
}

// messageOut travels from an executor back to the gather loop. A nil
// response is the sentinel for a transport error.
type messageOut struct {
	index int
	resp  *domain.LambdaResponse
}

type executor struct {
	index    int
	endpoint string
	client   ports.LambdaClient
	in       chan messageIn
}

// Multi is a lambda client with multiple possible destinations. Every call
// contacts the primary plus a random subset of the other destinations, each
// included independently with the persistence probability, and returns the
// first successful reply. Stragglers are drained in the background; a
// subsequent call blocks until the previous fan-out has fully returned. The
// fastest successful responder becomes the new primary.
type Multi struct {
	persistence float64
	executors   []*executor
	out         chan messageOut
	consumerIn  chan map[int]struct{}
	gate        chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
	holder      *domain.LambdaRequest
	primary     int
	random      func() float64
	logger      *slog.Logger
}

// NewMulti starts one executor per destination plus one drainer.
func NewMulti(endpoints []string, persistence float64, factory Factory, logger *slog.Logger) (*Multi, error) {
	if persistence < 0 || persistence > 1 {
		return nil, fmt.Errorf("invalid configuration: persistence probability (%v) cannot be < 0 or > 1", persistence)
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("empty set of destinations")
	}

	sorted := append([]string(nil), endpoints...)
	sort.Strings(sorted)

	m := &Multi{
		persistence: persistence,
		out:         make(chan messageOut),
		consumerIn:  make(chan map[int]struct{}),
		gate:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		random:      rand.Float64,
		logger:      logger,
	}

	for i, endpoint := range sorted {
		e := &executor{
			index:    i,
			endpoint: endpoint,
			client:   factory(endpoint),
			in:       make(chan messageIn),
		}
		m.executors = append(m.executors, e)
		m.wg.Add(1)
		go m.runExecutor(e)
	}

	m.wg.Add(1)
	go m.runConsumer()

	// unblock the first caller
	m.gate <- struct{}{}

	logger.Info("starting an edge multi-client",
		"destinations", sorted, "persistence", persistence)
	return m, nil
}

// RunLambda races the request across the selected destinations and returns
// the first OK response. Failed destinations are not removed from the pool;
// purging is the processor's responsibility.
func (m *Multi) RunLambda(ctx context.Context, req domain.LambdaRequest, dry bool) (domain.LambdaResponse, error) {
	// wait until the previous call has fully drained
	select {
	case <-m.done:
		return domain.NewLambdaResponse("terminating", ""), domain.ErrTerminating
	case <-m.gate:
	}

	pending := m.secondary()
	pending[m.primary] = struct{}{}

	// the holder keeps the request alive for the background executors past
	// this function's return
	holder := req
	m.holder = &holder

	for index := range pending {
		select {
		case m.executors[index].in <- messageIn{ctx: ctx, req: m.holder, dry: dry}:
		case <-m.done:
			return domain.NewLambdaResponse("terminating", ""), domain.ErrTerminating
		}
	}

	var winner messageOut
	var lastResponse *domain.LambdaResponse
gather:
	for len(pending) > 0 {
		select {
		case <-m.done:
			return domain.NewLambdaResponse("terminating", ""), domain.ErrTerminating
		case msg := <-m.out:
			delete(pending, msg.index)
			if msg.resp == nil {
				continue
			}
			lastResponse = msg.resp
			if msg.resp.OK() {
				msg.resp.Responder = m.executors[msg.index].endpoint
				winner = msg
				break gather
			}
		}
	}

	if winner.resp == nil {
		// every selected destination failed: release the gate before
		// surfacing the aggregate error
		m.releaseGate()
		if lastResponse != nil {
			return *lastResponse, nil
		}
		return domain.NewLambdaResponse("none of the destinations responded correctly", ""), nil
	}

	if len(pending) == 0 {
		m.releaseGate()
	} else {
		select {
		case m.consumerIn <- pending:
		case <-m.done:
			return domain.NewLambdaResponse("terminating", ""), domain.ErrTerminating
		}
	}

	// the fastest executor becomes the new primary
	m.primary = winner.index
	m.logger.Debug("fastest executor replied",
		"endpoint", m.executors[winner.index].endpoint, "response", winner.resp.String())
	return *winner.resp, nil
}

// Primary returns the index of the current primary destination.
func (m *Multi) Primary() int {
	return m.primary
}

// Endpoints returns the destinations in executor order.
func (m *Multi) Endpoints() []string {
	out := make([]string, len(m.executors))
	for i, e := range m.executors {
		out[i] = e.endpoint
	}
	return out
}

// Close unblocks every goroutine and joins them.
func (m *Multi) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
	for _, e := range m.executors {
		_ = e.client.Close()
	}
	return nil
}

// secondary picks the non-primary destinations to contact, each included
// independently with the persistence probability.
func (m *Multi) secondary() map[int]struct{} {
	out := make(map[int]struct{})
	for i := range m.executors {
		if i == m.primary {
			continue
		}
		if m.random() < m.persistence {
			out[i] = struct{}{}
		}
	}
	return out
}

func (m *Multi) runExecutor(e *executor) {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case msg := <-e.in:
			resp, err := e.client.RunLambda(msg.ctx, *msg.req, msg.dry)
			if err != nil {
				// converted into an empty sentinel so a single destination
				// failure never stalls the gather loop
				m.sendOut(messageOut{index: e.index})
				continue
			}
			m.sendOut(messageOut{index: e.index, resp: &resp})
		}
	}
}

func (m *Multi) runConsumer() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case pending := <-m.consumerIn:
			for len(pending) > 0 {
				select {
				case <-m.done:
					return
				case msg := <-m.out:
					if msg.resp != nil {
						m.logger.Debug("non-fastest executor replied",
							"endpoint", m.executors[msg.index].endpoint)
					}
					delete(pending, msg.index)
				}
			}
			m.releaseGate()
		}
	}
}

func (m *Multi) sendOut(msg messageOut) {
	select {
	case m.out <- msg:
	case <-m.done:
	}
}

func (m *Multi) releaseGate() {
	select {
	case m.gate <- struct{}{}:
	case <-m.done:
	}
}

var _ ports.LambdaClient = (*Multi)(nil)
