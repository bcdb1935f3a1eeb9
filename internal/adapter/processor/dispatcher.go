package processor

import (
	"time"

	"github.com/thushan/ferry/internal/core/domain"
	"github.com/thushan/ferry/internal/core/ports"
)

// Dispatcher routes every request through one processing-time estimator.
type Dispatcher struct {
	estimator ports.Estimator
}

func NewDispatcher(estimator ports.Estimator) *Dispatcher {
	return &Dispatcher{estimator: estimator}
}

func (d *Dispatcher) Destination(req domain.LambdaRequest) (string, error) {
	return d.estimator.Destination(req)
}

func (d *Dispatcher) ProcessSuccess(req domain.LambdaRequest, destination string, rep domain.LambdaResponse, elapsed time.Duration) {
	d.estimator.ProcessSuccess(req, destination, rep, elapsed)
}

func (d *Dispatcher) ProcessFailure(req domain.LambdaRequest, destination string) {
	d.estimator.ProcessFailure(req, destination)
}

func (d *Dispatcher) Tables() []ports.ForwardingTable {
	return []ports.ForwardingTable{d.estimator}
}

var _ Strategy = (*Dispatcher)(nil)
