package client

import (
	"context"
	"sync"
	"time"

	"github.com/thushan/ferry/internal/core/domain"
	"github.com/thushan/ferry/internal/core/ports"
)

// Factory constructs a client towards a destination endpoint.
type Factory func(endpoint string) ports.LambdaClient

// Pool is a thread-safe pool of lambda clients keyed on destination. Each
// destination keeps a free list of idle clients and a busy counter; when the
// per-destination cap is reached callers wait for a release. A cap of 0 means
// unbounded.
type Pool struct {
	maxClients int
	factory    Factory

	mu   sync.Mutex
	pool map[string]*poolDescriptor
}

type poolDescriptor struct {
	free      []ports.LambdaClient
	busy      int
	available *sync.Cond
}

func NewPool(factory Factory, maxClients int) *Pool {
	return &Pool{
		maxClients: maxClients,
		factory:    factory,
		pool:       make(map[string]*poolDescriptor),
	}
}

// Invoke executes a lambda on the given destination using a pooled client,
// incrementing the hop counter on the way out. The client is released on
// every exit path. Returns the response and the wall-clock execution time.
func (p *Pool) Invoke(ctx context.Context, destination string, req domain.LambdaRequest, dry bool) (domain.LambdaResponse, time.Duration, error) {
	start := time.Now()

	cl := p.get(destination)
	defer p.release(destination, cl)

	resp, err := cl.RunLambda(ctx, req.OneMoreHop(), dry)
	if err != nil {
		return domain.LambdaResponse{}, time.Since(start), err
	}
	if resp.Responder == "" {
		resp.Responder = destination
	}
	return resp, time.Since(start), nil
}

func (p *Pool) get(destination string) ports.LambdaClient {
	p.mu.Lock()
	defer p.mu.Unlock()

	desc, ok := p.pool[destination]
	if !ok {
		desc = &poolDescriptor{}
		desc.available = sync.NewCond(&p.mu)
		p.pool[destination] = desc
	}

	if p.maxClients > 0 {
		for len(desc.free) == 0 && desc.busy >= p.maxClients {
			desc.available.Wait()
		}
	}

	if len(desc.free) == 0 {
		desc.busy++
		return p.factory(destination)
	}

	cl := desc.free[0]
	desc.free = desc.free[1:]
	desc.busy++
	return cl
}

func (p *Pool) release(destination string, cl ports.LambdaClient) {
	p.mu.Lock()
	defer p.mu.Unlock()

	desc := p.pool[destination]
	desc.free = append(desc.free, cl)
	desc.busy--
	desc.available.Signal()
}

// Close closes every idle client. Busy clients are closed by their users.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, desc := range p.pool {
		for _, cl := range desc.free {
			_ = cl.Close()
		}
		desc.free = nil
	}
	return nil
}
