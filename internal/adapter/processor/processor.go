// Package processor implements the lambda processor pipeline and its two
// specializations, the estimator-driven dispatcher and the table-driven
// router.
package processor

import (
	"context"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/thushan/ferry/internal/adapter/client"
	"github.com/thushan/ferry/internal/core/domain"
	"github.com/thushan/ferry/internal/core/ports"
)

// maxHops is the forwarding ceiling. 254 rather than 255 leaves headroom for
// one further increment on the egress side.
const maxHops = 254

// Strategy is the routing policy slice of a processor: the dispatcher
// forwards to its estimator, the router to its forwarding tables.
type Strategy interface {
	Destination(req domain.LambdaRequest) (string, error)
	ProcessSuccess(req domain.LambdaRequest, destination string, rep domain.LambdaResponse, elapsed time.Duration)
	ProcessFailure(req domain.LambdaRequest, destination string)
	Tables() []ports.ForwardingTable
}

// Options configures the shared processor pipeline.
type Options struct {
	Endpoint         string
	CommandsEndpoint string
	MinForwardTime   time.Duration
	MaxForwardTime   time.Duration
	Fake             bool
}

// Processor forwards lambda requests to the destination chosen by its
// strategy, retrying on the next candidate when a destination fails. It is
// reentrant: one goroutine per inbound request, no shared mutable state on
// the hot path outside the strategy's own locks.
type Processor struct {
	opts       Options
	pool       *client.Pool
	strategy   Strategy
	controller ports.Controller
	stats      ports.StatsCollector
	logger     *slog.Logger
	seq        atomic.Uint64
	random     func() float64
}

func New(opts Options, pool *client.Pool, strategy Strategy, controller ports.Controller, stats ports.StatsCollector, logger *slog.Logger) *Processor {
	logger.Info("created a lambda processor",
		"min_forward_time", opts.MinForwardTime,
		"max_forward_time", opts.MaxForwardTime,
		"fake", opts.Fake)
	if opts.Fake {
		logger.Info("FAKE lambda processor configuration")
	}
	return &Processor{
		opts:       opts,
		pool:       pool,
		strategy:   strategy,
		controller: controller,
		stats:      stats,
		logger:     logger,
		random:     rand.Float64,
	}
}

// Init announces the processor to the controller, when one is configured.
func (p *Processor) Init(ctx context.Context) {
	if p.controller == nil {
		return
	}
	if err := p.controller.AnnounceProcessor(ctx, p.opts.Endpoint, p.opts.CommandsEndpoint); err != nil {
		p.logger.Error("could not reach controller", "error", err)
	}
}

// Tables exposes the strategy's forwarding tables for command handling.
func (p *Processor) Tables() []ports.ForwardingTable {
	return p.strategy.Tables()
}

// Process runs the forwarding pipeline for one request. Every failure path
// returns a response with a non-OK return code; errors are never surfaced
// directly to the transport.
func (p *Processor) Process(ctx context.Context, req domain.LambdaRequest) domain.LambdaResponse {
	req.Seq = p.seq.Add(1)

	retCode := domain.RetCodeOK
	for {
		p.logger.Debug("processing lambda request", "request", req.String())

		if req.Hops > maxHops {
			retCode = "loop detected"
			break
		}

		destination, err := p.strategy.Destination(req)
		if err != nil {
			// no candidate is left
			retCode = err.Error()
			break
		}

		p.think()

		rep, elapsed, invokeErr := p.invoke(ctx, destination, req)
		if invokeErr == nil && rep.OK() {
			p.strategy.ProcessSuccess(req, destination, rep, elapsed)
			if p.stats != nil {
				p.stats.RecordDispatch(req.Name, destination, true, elapsed)
			}
			return rep
		}

		if invokeErr != nil {
			retCode = invokeErr.Error()
		} else {
			retCode = rep.RetCode
		}
		p.logger.Warn("destination failed, purging",
			"lambda", req.Name, "destination", destination, "retcode", retCode)

		// purge the destination locally and globally, then try the next one
		p.strategy.ProcessFailure(req, destination)
		if p.stats != nil {
			p.stats.RecordFailover(req.Name, destination)
		}
		p.controllerCommand(ctx, destination)
	}

	return domain.NewLambdaResponse(retCode, "")
}

func (p *Processor) invoke(ctx context.Context, destination string, req domain.LambdaRequest) (domain.LambdaResponse, time.Duration, error) {
	if p.opts.Fake {
		// do not contact the next destination, return a fake OK response
		elapsed := time.Duration((0.001 + p.random()) * float64(time.Second))
		rep := domain.NewLambdaResponse(domain.RetCodeOK, "")
		rep.ProcessingTime = uint32(elapsed.Milliseconds())
		rep.Responder = destination
		rep.Hops = req.Hops + 1
		return rep, elapsed, nil
	}
	return p.pool.Invoke(ctx, destination, req, false)
}

// think applies the artificial forwarding delay, uniformly drawn from the
// configured range. Skipped when the range is empty.
func (p *Processor) think() {
	min, max := p.opts.MinForwardTime, p.opts.MaxForwardTime
	if min == 0 && max == 0 {
		return
	}
	span := float64(max - min)
	time.Sleep(min + time.Duration(p.random()*span))
}

func (p *Processor) controllerCommand(ctx context.Context, destination string) {
	if p.controller == nil {
		return
	}
	if err := p.controller.RemoveComputer(ctx, destination); err != nil {
		p.logger.Error("could not reach controller", "error", err)
	}
}
