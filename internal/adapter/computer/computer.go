package computer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/thushan/ferry/internal/core/domain"
	"github.com/thushan/ferry/internal/core/ports"
	"github.com/thushan/ferry/internal/util"
)

type descriptor struct {
	cond *sync.Cond
	rep  *domain.LambdaResponse
	done bool
}

// Computer is the synchronous wrapper around a task backend. Process blocks
// until the backend signals completion of the task it enqueued; requests
// carrying a chain or DAG descriptor with a callback are handed to the
// walker and acknowledged immediately.
type Computer struct {
	endpoint  string
	namespace string
	backend   Backend
	walker    *Walker
	stats     ports.StatsCollector
	logger    *slog.Logger

	mu            sync.Mutex
	descriptorsCv *sync.Cond
	descriptors   map[uint64]*descriptor
}

func New(endpoint, namespace string, stats ports.StatsCollector, logger *slog.Logger) *Computer {
	if namespace == "" {
		namespace = "default"
	}
	c := &Computer{
		endpoint:    endpoint,
		namespace:   namespace,
		stats:       stats,
		logger:      logger,
		descriptors: make(map[uint64]*descriptor),
	}
	c.descriptorsCv = sync.NewCond(&c.mu)
	return c
}

// Attach wires the backend. Must be called once before Process; split from
// the constructor because the backend needs TaskDone at its own construction.
func (c *Computer) Attach(backend Backend) {
	c.backend = backend
}

// AttachWalker enables edge-side chain/DAG orchestration.
func (c *Computer) AttachWalker(w *Walker) {
	c.walker = w
}

// Process serves one lambda request. Dry requests are estimated without
// side-effects; everything else is enqueued on the backend and awaited.
func (c *Computer) Process(ctx context.Context, req domain.LambdaRequest) domain.LambdaResponse {
	namespace, function, err := domain.ParseLambdaName(req.Name, c.namespace)
	if err != nil {
		rep := domain.NewLambdaResponse(err.Error(), "")
		rep.Hops = req.Hops + 1
		return rep
	}
	if namespace != c.namespace {
		rep := domain.NewLambdaResponse("unknown namespace: "+namespace, "")
		rep.Hops = req.Hops + 1
		return rep
	}
	req.Name = function

	if c.walker != nil && (req.Chain != nil || req.Dag != nil) && req.Callback != "" && !req.Dry {
		return c.walker.Submit(req)
	}

	rep := c.execute(ctx, req)
	rep.Hops = req.Hops + 1
	return rep
}

func (c *Computer) execute(ctx context.Context, req domain.LambdaRequest) domain.LambdaResponse {
	if req.Dry {
		// just give an estimate of the time required to run the lambda;
		// unlike the actual execution this path is synchronous
		ptime, loads, err := c.backend.SimTask(req)
		if err != nil {
			return domain.NewLambdaResponse(err.Error(), "")
		}
		rep := domain.NewLambdaResponseWithLoads(domain.RetCodeOK, "", loads)
		rep.ProcessingTime = util.SafeUint32(ptime * 1e3)
		return rep
	}

	start := time.Now()

	// the task must be enqueued outside the critical section below to avoid
	// a deadlock on tasks so short they complete before their descriptor is
	// inserted; TaskDone waits for the insertion instead
	id, err := c.backend.AddTask(req)
	if err != nil {
		return domain.NewLambdaResponse(err.Error(), "")
	}

	c.mu.Lock()
	desc := &descriptor{cond: sync.NewCond(&c.mu)}
	c.descriptors[id] = desc
	c.descriptorsCv.Broadcast()

	for !desc.done {
		desc.cond.Wait()
	}
	delete(c.descriptors, id)
	c.mu.Unlock()

	rep := *desc.rep
	rep.ProcessingTime = util.SafeUint32(time.Since(start).Seconds() * 1e3)
	if c.stats != nil {
		c.stats.RecordTask(req.Name, time.Since(start))
	}
	return rep
}

// TaskDone is the backend's completion callback. It waits, briefly, until
// the requester has registered its descriptor.
func (c *Computer) TaskDone(id uint64, rep *domain.LambdaResponse) {
	c.logger.Debug("task done", "id", id, "retcode", rep.RetCode)

	c.mu.Lock()
	defer c.mu.Unlock()

	for c.descriptors[id] == nil {
		c.descriptorsCv.Wait()
	}
	desc := c.descriptors[id]
	desc.rep = rep
	desc.done = true
	desc.cond.Signal()
}
