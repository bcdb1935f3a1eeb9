// Package estimator implements the processing-time estimator family that
// turns an incoming lambda request into an outbound destination and learns
// from observed latencies and loads.
package estimator

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/thushan/ferry/internal/core/domain"
	"github.com/thushan/ferry/internal/core/ports"
)

// Type selects the estimation policy.
type Type string

const (
	TypeRtt   Type = "rtt"
	TypeUtil  Type = "util"
	TypeDelay Type = "delay"
	TypeProbe Type = "probe"
)

func TypeFromString(s string) (Type, error) {
	switch Type(s) {
	case TypeRtt, TypeUtil, TypeDelay, TypeProbe:
		return Type(s), nil
	}
	return "", fmt.Errorf("invalid processing time estimator type '%s'", s)
}

// prediction is what the estimator believed at decision time, joined with
// the later success notification for measurement output.
type prediction struct {
	rtt   float64
	ptime float64
}

// variant is the policy-specific slice of a PtimeEstimator. Every method is
// invoked under the umbrella mutex.
type variant interface {
	pick(req domain.LambdaRequest) (string, prediction, error)
	success(req domain.LambdaRequest, destination string, rep domain.LambdaResponse, elapsed time.Duration, pred prediction)
	privateAdd(lambda, destination string)
	privateRemove(lambda, destination string)
	close() error
}

// PtimeEstimator is the umbrella over the estimation policies. It owns the
// forwarding view and the in-flight prediction map; decisions and completions
// serialize on one mutex so every completion finds its matching prediction.
type PtimeEstimator struct {
	typ    Type
	logger *slog.Logger

	mu          sync.Mutex
	lambdas     map[string]struct{}
	view        map[string]map[string]ports.ForwardingEntry
	predictions map[uint64]prediction
	variant     variant
}

func newPtimeEstimator(typ Type, logger *slog.Logger) *PtimeEstimator {
	logger.Info("created a processing time estimator", "type", string(typ))
	return &PtimeEstimator{
		typ:         typ,
		logger:      logger,
		lambdas:     make(map[string]struct{}),
		view:        make(map[string]map[string]ports.ForwardingEntry),
		predictions: make(map[uint64]prediction),
	}
}

func (e *PtimeEstimator) Type() Type {
	return e.typ
}

// Destination picks the destination for the request and records the
// prediction that led to the decision.
func (e *PtimeEstimator) Destination(req domain.LambdaRequest) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dest, pred, err := e.variant.pick(req)
	if err != nil {
		return "", err
	}
	e.predictions[req.Seq] = pred
	return dest, nil
}

// ProcessSuccess feeds the observed outcome back to the policy.
func (e *PtimeEstimator) ProcessSuccess(req domain.LambdaRequest, destination string, rep domain.LambdaResponse, elapsed time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pred, ok := e.predictions[req.Seq]
	if !ok {
		e.logger.Warn("success notification without a matching prediction",
			"lambda", req.Name, "destination", destination)
	}
	delete(e.predictions, req.Seq)
	e.variant.success(req, destination, rep, elapsed, pred)
}

// ProcessFailure drops the prediction and removes the destination from the
// lambda's candidate set.
func (e *PtimeEstimator) ProcessFailure(req domain.LambdaRequest, destination string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.predictions, req.Seq)
	e.internalRemove(req.Name, destination)
}

// Change adds a destination for a lambda. The weight is carried for
// interface compatibility and recorded as 1.0; estimators do not consult it.
func (e *PtimeEstimator) Change(lambda, destination string, weight float64, final bool) {
	_ = weight

	e.mu.Lock()
	defer e.mu.Unlock()

	dests, ok := e.view[lambda]
	if !ok {
		dests = make(map[string]ports.ForwardingEntry)
		e.view[lambda] = dests
		e.lambdas[lambda] = struct{}{}
		e.logger.Info("new lambda supported", "lambda", lambda, "destination", destination, "final", final)
	}
	if _, ok := dests[destination]; ok {
		return
	}
	dests[destination] = ports.ForwardingEntry{Weight: 1.0, Final: final}
	e.variant.privateAdd(lambda, destination)
}

// Remove drops one destination for a lambda.
func (e *PtimeEstimator) Remove(lambda, destination string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.internalRemove(lambda, destination)
}

// RemoveLambda drops every destination for a lambda.
func (e *PtimeEstimator) RemoveLambda(lambda string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for destination := range e.view[lambda] {
		e.variant.privateRemove(lambda, destination)
	}
	delete(e.view, lambda)
	delete(e.lambdas, lambda)
}

func (e *PtimeEstimator) internalRemove(lambda, destination string) {
	dests, ok := e.view[lambda]
	if !ok {
		return
	}
	if _, ok := dests[destination]; !ok {
		return
	}
	delete(dests, destination)
	e.logger.Info("removed destination for lambda", "lambda", lambda, "destination", destination)
	e.variant.privateRemove(lambda, destination)

	if len(dests) == 0 {
		e.logger.Info("lambda now has no destinations", "lambda", lambda)
		delete(e.view, lambda)
		delete(e.lambdas, lambda)
	}
}

// Lambdas lists every lambda served.
func (e *PtimeEstimator) Lambdas() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, 0, len(e.lambdas))
	for lambda := range e.lambdas {
		out = append(out, lambda)
	}
	sort.Strings(out)
	return out
}

// FullTable returns a copy of the forwarding view.
func (e *PtimeEstimator) FullTable() map[string]map[string]ports.ForwardingEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]map[string]ports.ForwardingEntry, len(e.view))
	for lambda, dests := range e.view {
		inner := make(map[string]ports.ForwardingEntry, len(dests))
		for dest, entry := range dests {
			inner[dest] = entry
		}
		out[lambda] = inner
	}
	return out
}

// Close releases the policy resources (measurement files, probe clients).
func (e *PtimeEstimator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.variant.close()
}
