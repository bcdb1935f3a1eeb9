package estimator

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/thushan/ferry/internal/adapter/table"
	"github.com/thushan/ferry/internal/core/domain"
)

// Invoker issues one invocation towards a destination. Satisfied by the
// client pool; the probe policy uses it for dry runs.
type Invoker interface {
	Invoke(ctx context.Context, destination string, req domain.LambdaRequest, dry bool) (domain.LambdaResponse, time.Duration, error)
}

////////////////////////////////////////////////////////////////////////////
// rtt: shortest predicted round-trip wins

type rttVariant struct {
	est *RttEstimator
}

// NewRtt creates an estimator routing each lambda to the destination with
// the shortest predicted RTT for its input size.
func NewRtt(windowSize int, stalePeriod time.Duration, logger *slog.Logger) *PtimeEstimator {
	e := newPtimeEstimator(TypeRtt, logger)
	e.variant = &rttVariant{est: NewRttEstimator(windowSize, stalePeriod)}
	return e
}

func (v *rttVariant) pick(req domain.LambdaRequest) (string, prediction, error) {
	dest, rtt, err := v.est.ShortestRtt(req.Name, req.InputSize())
	if err != nil {
		return "", prediction{}, err
	}
	return dest, prediction{rtt: rtt}, nil
}

func (v *rttVariant) success(req domain.LambdaRequest, destination string, rep domain.LambdaResponse, elapsed time.Duration, _ prediction) {
	rtt := elapsed.Seconds() - rep.ProcessingTimeSeconds()
	v.est.AddSample(req.Name, destination, req.InputSize(), rtt)
}

func (v *rttVariant) privateAdd(lambda, destination string)    { v.est.Add(lambda, destination) }
func (v *rttVariant) privateRemove(lambda, destination string) { v.est.Remove(lambda, destination) }
func (v *rttVariant) close() error                             { return nil }

////////////////////////////////////////////////////////////////////////////
// util: minimize predicted rtt + processing time

type utilVariant struct {
	rtt   *RttEstimator
	util  *UtilEstimator
	saver *Saver
}

// NewUtil creates an estimator combining the RTT regression with a
// processing-time-versus-load regression, picking the destination minimizing
// their sum.
func NewUtil(rttWindowSize int, rttStalePeriod, utilLoadTimeout time.Duration, utilWindowSize int, output string, logger *slog.Logger) (*PtimeEstimator, error) {
	saver, err := NewSaver(output)
	if err != nil {
		return nil, err
	}
	if output != "" {
		logger.Info("saving measurements to output file", "path", output)
	}
	e := newPtimeEstimator(TypeUtil, logger)
	e.variant = &utilVariant{
		rtt:   NewRttEstimator(rttWindowSize, rttStalePeriod),
		util:  NewUtilEstimator(utilLoadTimeout, utilWindowSize, logger),
		saver: saver,
	}
	return e, nil
}

func (v *utilVariant) pick(req domain.LambdaRequest) (string, prediction, error) {
	size := req.InputSize()
	rtts, err := v.rtt.Rtts(req.Name, size)
	if err != nil {
		return "", prediction{}, err
	}
	dest, rtt, ptime, err := v.util.Best(req.Name, size, rtts)
	if err != nil {
		return "", prediction{}, err
	}
	return dest, prediction{rtt: rtt, ptime: ptime}, nil
}

func (v *utilVariant) success(req domain.LambdaRequest, destination string, rep domain.LambdaResponse, elapsed time.Duration, pred prediction) {
	size := req.InputSize()
	rtt := elapsed.Seconds() - rep.ProcessingTimeSeconds()
	v.saver.Save(req.Name+" "+destination,
		float64(size), float64(rep.Load1),
		pred.rtt, rtt,
		pred.ptime, rep.ProcessingTimeSeconds())
	v.util.AddSample(req.Name, destination, size, rep.ProcessingTimeSeconds(), rep.Load1, rep.Load10)
	v.rtt.AddSample(req.Name, destination, size, rtt)
}

func (v *utilVariant) privateAdd(lambda, destination string) {
	v.util.Add(lambda, destination)
	v.rtt.Add(lambda, destination)
}

func (v *utilVariant) privateRemove(lambda, destination string) {
	v.util.Remove(lambda, destination)
	v.rtt.Remove(lambda, destination)
}

func (v *utilVariant) close() error { return v.saver.Close() }

////////////////////////////////////////////////////////////////////////////
// delay: smallest predicted overall delay, load regression only

type delayVariant struct {
	util  *UtilEstimator
	saver *Saver
}

// NewDelay creates an estimator predicting the overall delay from the load
// regression alone, without an RTT component.
func NewDelay(utilLoadTimeout time.Duration, utilWindowSize int, output string, logger *slog.Logger) (*PtimeEstimator, error) {
	saver, err := NewSaver(output)
	if err != nil {
		return nil, err
	}
	if output != "" {
		logger.Info("saving measurements to output file", "path", output)
	}
	e := newPtimeEstimator(TypeDelay, logger)
	e.variant = &delayVariant{
		util:  NewUtilEstimator(utilLoadTimeout, utilWindowSize, logger),
		saver: saver,
	}
	return e, nil
}

func (v *delayVariant) pick(req domain.LambdaRequest) (string, prediction, error) {
	dest, ptime, err := v.util.SmallestPtime(req.Name, req.InputSize())
	if err != nil {
		return "", prediction{}, err
	}
	return dest, prediction{ptime: ptime}, nil
}

func (v *delayVariant) success(req domain.LambdaRequest, destination string, rep domain.LambdaResponse, elapsed time.Duration, pred prediction) {
	// the delay policy regresses the overall latency, not the server-side
	// processing time
	v.saver.Save(req.Name+" "+destination,
		float64(req.InputSize()), float64(rep.Load1),
		pred.ptime, elapsed.Seconds())
	v.util.AddSample(req.Name, destination, req.InputSize(), elapsed.Seconds(), rep.Load1, rep.Load10)
}

func (v *delayVariant) privateAdd(lambda, destination string)    { v.util.Add(lambda, destination) }
func (v *delayVariant) privateRemove(lambda, destination string) { v.util.Remove(lambda, destination) }
func (v *delayVariant) close() error                             { return v.saver.Close() }

////////////////////////////////////////////////////////////////////////////
// probe: dry-run every candidate, smallest simulated ptime wins

type probeVariant struct {
	invoker Invoker
	dests   *table.DestinationTable[struct{}]
	saver   *Saver
	logger  *slog.Logger
}

// NewProbe creates an estimator that polls every candidate destination with a
// dry request on each decision, emulating a centralized baseline.
func NewProbe(invoker Invoker, output string, logger *slog.Logger) (*PtimeEstimator, error) {
	saver, err := NewSaver(output)
	if err != nil {
		return nil, err
	}
	if output != "" {
		logger.Info("saving measurements to output file", "path", output)
	}
	e := newPtimeEstimator(TypeProbe, logger)
	e.variant = &probeVariant{
		invoker: invoker,
		dests:   table.New(func(string, string) struct{} { return struct{}{} }),
		saver:   saver,
		logger:  logger,
	}
	return e, nil
}

func (v *probeVariant) pick(req domain.LambdaRequest) (string, prediction, error) {
	all, err := v.dests.All(req.Name, func(struct{}) float64 { return 0 })
	if err != nil {
		return "", prediction{}, err
	}

	candidates := make([]string, 0, len(all))
	for dest := range all {
		candidates = append(candidates, dest)
	}
	sort.Strings(candidates)

	best := ""
	bestPtime := math.MaxFloat64
	for _, dest := range candidates {
		rep, _, err := v.invoker.Invoke(context.Background(), dest, req, true)
		if err != nil {
			v.logger.Warn("probe failed", "destination", dest, "error", err)
			continue
		}
		if !rep.OK() {
			continue
		}
		if ptime := float64(rep.ProcessingTime); ptime < bestPtime {
			best = dest
			bestPtime = ptime
		}
	}
	if best == "" {
		return "", prediction{}, &domain.NoDestinationsError{Lambda: req.Name}
	}
	return best, prediction{ptime: bestPtime}, nil
}

func (v *probeVariant) success(req domain.LambdaRequest, destination string, rep domain.LambdaResponse, _ time.Duration, pred prediction) {
	// just save the actual versus estimated time
	v.saver.Save(req.Name+" "+destination,
		float64(req.InputSize()), pred.ptime, float64(rep.ProcessingTime))
}

func (v *probeVariant) privateAdd(lambda, destination string) {
	v.dests.Add(lambda, destination)
}

func (v *probeVariant) privateRemove(lambda, destination string) {
	v.dests.Remove(lambda, destination)
}

func (v *probeVariant) close() error { return v.saver.Close() }
