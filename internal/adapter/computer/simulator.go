// Package computer implements the edge computer: the synchronous server
// wrapper, the local compute simulator, the external FaaS gateway backend and
// the edge-side chain/DAG walker.
package computer

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thushan/ferry/internal/core/domain"
)

// TaskDoneFunc delivers the outcome of a task to whoever is waiting on it.
type TaskDoneFunc func(id uint64, rep *domain.LambdaResponse)

// Backend schedules lambda executions. Completions are delivered through the
// TaskDoneFunc supplied at construction.
type Backend interface {
	// AddTask enqueues the request and returns its task identifier.
	AddTask(req domain.LambdaRequest) (uint64, error)
	// SimTask estimates the processing time, in seconds, and snapshots the
	// load values, without side-effects.
	SimTask(req domain.LambdaRequest) (float64, [3]float64, error)
	Close() error
}

// LambdaSpec declares a lambda servable by the simulator. The cost of one
// invocation is FixedOps plus OpsPerByte per input byte.
type LambdaSpec struct {
	Name       string
	FixedOps   float64
	OpsPerByte float64
}

type simTask struct {
	id  uint64
	req domain.LambdaRequest
}

// Simulator executes lambdas on a bounded worker pool, modelling the
// processing time from the configured operation costs and tracking the CPU
// load over 1/10/30 second windows.
type Simulator struct {
	name        string
	opsPerSec   float64
	numWorkers  int
	lambdas     map[string]LambdaSpec
	done        TaskDoneFunc
	logger      *slog.Logger
	tasks       chan simTask
	nextID      atomic.Uint64
	queued      atomic.Int64
	active      atomic.Int64
	loads       *loadTracker
	wg          sync.WaitGroup
	closing     chan struct{}
	closeOnce   sync.Once
}

// NewSimulator starts the worker pool and the load sampler.
func NewSimulator(name string, opsPerSec float64, numWorkers int, specs []LambdaSpec, done TaskDoneFunc, logger *slog.Logger) *Simulator {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if opsPerSec <= 0 {
		opsPerSec = 1e8
	}
	s := &Simulator{
		name:       name,
		opsPerSec:  opsPerSec,
		numWorkers: numWorkers,
		lambdas:    make(map[string]LambdaSpec, len(specs)),
		done:       done,
		logger:     logger,
		tasks:      make(chan simTask, numWorkers*16),
		loads:      newLoadTracker(),
		closing:    make(chan struct{}),
	}
	for _, spec := range specs {
		s.lambdas[spec.Name] = spec
	}

	for i := 0; i < numWorkers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.wg.Add(1)
	go s.sampleLoads()

	logger.Info("started compute simulator",
		"name", name, "workers", numWorkers, "lambdas", len(specs))
	return s
}

// Lambdas lists the servable lambda names.
func (s *Simulator) Lambdas() []string {
	out := make([]string, 0, len(s.lambdas))
	for name := range s.lambdas {
		out = append(out, name)
	}
	return out
}

// AddTask enqueues the request for execution.
func (s *Simulator) AddTask(req domain.LambdaRequest) (uint64, error) {
	if _, ok := s.lambdas[req.Name]; !ok {
		return 0, fmt.Errorf("unknown lambda: %s", req.Name)
	}
	id := s.nextID.Add(1)
	s.queued.Add(1)
	select {
	case s.tasks <- simTask{id: id, req: req}:
		return id, nil
	case <-s.closing:
		s.queued.Add(-1)
		return 0, domain.ErrTerminating
	}
}

// SimTask estimates the processing time the request would take right now,
// accounting for the tasks already queued ahead of it.
func (s *Simulator) SimTask(req domain.LambdaRequest) (float64, [3]float64, error) {
	spec, ok := s.lambdas[req.Name]
	if !ok {
		return 0, [3]float64{}, fmt.Errorf("unknown lambda: %s", req.Name)
	}
	base := s.duration(spec, req)
	backlog := float64(s.queued.Load()+s.active.Load()) / float64(s.numWorkers)
	return base * (1 + backlog), s.loads.snapshot(), nil
}

func (s *Simulator) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
	})
	s.wg.Wait()
	return nil
}

func (s *Simulator) duration(spec LambdaSpec, req domain.LambdaRequest) float64 {
	ops := spec.FixedOps + spec.OpsPerByte*float64(req.InputSize())
	return ops / s.opsPerSec
}

func (s *Simulator) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.closing:
			return
		case task := <-s.tasks:
			s.queued.Add(-1)
			s.active.Add(1)
			rep := s.execute(task.req)
			s.active.Add(-1)
			s.done(task.id, rep)
		}
	}
}

// execute models the lambda: it burns the configured time and echoes the
// input through.
func (s *Simulator) execute(req domain.LambdaRequest) *domain.LambdaResponse {
	spec := s.lambdas[req.Name]

	select {
	case <-time.After(time.Duration(s.duration(spec, req) * float64(time.Second))):
	case <-s.closing:
	}

	rep := domain.NewLambdaResponseWithLoads(domain.RetCodeOK, req.Input, s.loads.snapshot())
	rep.DataOut = req.DataIn
	if len(req.States) > 0 {
		rep.States = req.States
	}
	return &rep
}

// sampleLoads keeps the 1/10/30 second utilisation windows fed.
func (s *Simulator) sampleLoads() {
	defer s.wg.Done()
	ticker := time.NewTicker(loadSamplePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.closing:
			return
		case <-ticker.C:
			util := float64(s.active.Load()) / float64(s.numWorkers)
			if util > 1 {
				util = 1
			}
			s.loads.add(util)
		}
	}
}

// loadTracker keeps a ring of utilisation samples wide enough for the 30 s
// average.
type loadTracker struct {
	mu      sync.Mutex
	samples []float64
	next    int
	filled  int
}

const (
	loadSamplePeriod = 100 * time.Millisecond
	loadRingSize     = 300 // 30 s at one sample per 100 ms
)

func newLoadTracker() *loadTracker {
	return &loadTracker{samples: make([]float64, loadRingSize)}
}

func (t *loadTracker) add(util float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples[t.next] = util
	t.next = (t.next + 1) % len(t.samples)
	if t.filled < len(t.samples) {
		t.filled++
	}
}

// snapshot returns the utilisations averaged over the last 1, 10 and 30
// seconds, each in [0,1].
func (t *loadTracker) snapshot() [3]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	windows := [3]int{10, 100, 300}
	var out [3]float64
	for i, window := range windows {
		if window > t.filled {
			window = t.filled
		}
		if window == 0 {
			continue
		}
		sum := 0.0
		for j := 1; j <= window; j++ {
			sum += t.samples[(t.next-j+len(t.samples))%len(t.samples)]
		}
		out[i] = sum / float64(window)
	}
	return out
}
