package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/thushan/ferry/internal/core/domain"
	"github.com/thushan/ferry/internal/core/ports"
)

// AsyncReceiver hands asynchronous outcomes back to the driver; satisfied by
// the callback hub.
type AsyncReceiver interface {
	Subscribe(buffer int) (string, <-chan domain.LambdaResponse)
	Unsubscribe(id string)
}

// DriverOptions configures one request driver.
type DriverOptions struct {
	Lambda           string
	MaxRequests      int
	InterRequestTime time.Duration
	InputSize        int
	Chain            *domain.Chain
	Dag              *domain.Dag
	Callback         string
	Dry              bool
}

// Driver issues lambda requests through a composer, walking chains or DAGs
// when configured, and records the observed outcomes. One driver, one
// goroutine.
type Driver struct {
	composer *Composer
	opts     DriverOptions
	receiver AsyncReceiver
	stats    ports.StatsCollector
	logger   *slog.Logger
}

func NewDriver(composer *Composer, opts DriverOptions, receiver AsyncReceiver, stats ports.StatsCollector, logger *slog.Logger) *Driver {
	mode := "single function (" + opts.Lambda + ")"
	if opts.Chain != nil {
		mode = "function chain"
	} else if opts.Dag != nil {
		mode = "function DAG"
	}
	logger.Info("created a request driver",
		"mode", mode, "max_requests", opts.MaxRequests, "dry", opts.Dry)
	return &Driver{
		composer: composer,
		opts:     opts,
		receiver: receiver,
		stats:    stats,
		logger:   logger,
	}
}

// Run issues the configured number of requests, pacing them by the
// inter-request time, until done or cancelled.
func (d *Driver) Run(ctx context.Context) error {
	for i := 0; i < d.opts.MaxRequests; i++ {
		if ctx.Err() != nil {
			d.logger.Debug("driver interrupted", "sent", i)
			return ctx.Err()
		}
		if err := d.once(ctx); err != nil {
			return err
		}
		if d.opts.InterRequestTime > 0 && i+1 < d.opts.MaxRequests {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.opts.InterRequestTime):
			}
		}
	}
	return nil
}

func (d *Driver) once(ctx context.Context) error {
	input := d.content()
	start := time.Now()

	// subscribe before sending so an outcome arriving ahead of the ack is
	// not lost
	var outcomes <-chan domain.LambdaResponse
	if d.opts.Callback != "" && d.receiver != nil {
		id, ch := d.receiver.Subscribe(1)
		defer d.receiver.Unsubscribe(id)
		outcomes = ch
	}

	var rep domain.LambdaResponse
	var err error
	switch {
	case d.opts.Dag != nil:
		rep, err = d.composer.Dag(ctx, d.opts.Dag, input, nil, d.opts.Callback, d.opts.Dry)
	case d.opts.Chain != nil && d.opts.Callback != "":
		rep, err = d.composer.Single(ctx, "", input, nil, d.opts.Chain, d.opts.Callback, d.opts.Dry)
	case d.opts.Chain != nil:
		rep, err = d.composer.FunctionChain(ctx, d.opts.Chain, input, nil, d.opts.Dry)
	default:
		rep, err = d.composer.Single(ctx, d.opts.Lambda, input, nil, nil, "", d.opts.Dry)
	}
	if err != nil {
		return err
	}

	// an asynchronous reply is an ack: the statistic is recorded only once
	// the real outcome arrives through the callback
	if rep.Asynchronous && outcomes != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rep = <-outcomes:
		}
	}

	d.record(rep, time.Since(start))
	return nil
}

func (d *Driver) record(rep domain.LambdaResponse, elapsed time.Duration) {
	name := d.opts.Lambda
	if d.opts.Chain != nil {
		name = d.opts.Chain.Name()
	} else if d.opts.Dag != nil {
		name = d.opts.Dag.Name()
	}

	if !rep.OK() {
		d.logger.Warn("invalid response", "name", name, "retcode", rep.RetCode)
		return
	}
	d.logger.Info("lambda completed",
		"name", name,
		"elapsed_ms", elapsed.Milliseconds(),
		"ptime_ms", rep.ProcessingTime,
		"responder", rep.Responder,
		"hops", rep.Hops)
	if d.stats != nil {
		d.stats.RecordDispatch(name, rep.Responder, true, elapsed)
	}
}

func (d *Driver) content() string {
	// mirror the wire envelope overhead so the payload hits the requested
	// size
	size := d.opts.InputSize - 12
	if size < 0 {
		size = 0
	}
	return `{"input":"` + strings.Repeat("A", size) + `"}`
}
