package processor

import (
	"time"

	"github.com/thushan/ferry/internal/core/domain"
	"github.com/thushan/ferry/internal/core/ports"
)

const defaultOptimizerAlpha = 0.05

// Router keeps two forwarding tables: the overall table serves requests
// arriving from edge clients, the final table serves requests already
// forwarded by another node. Optimization is kept separate per table.
type Router struct {
	overall          *ForwardingTable
	overallOptimizer *LocalOptimizer
	final            *ForwardingTable
	finalOptimizer   *LocalOptimizer
}

func NewRouter() *Router {
	overall := NewForwardingTable()
	final := NewForwardingTable()
	return &Router{
		overall:          overall,
		overallOptimizer: NewLocalOptimizer(overall, defaultOptimizerAlpha),
		final:            final,
		finalOptimizer:   NewLocalOptimizer(final, defaultOptimizerAlpha),
	}
}

func (r *Router) Destination(req domain.LambdaRequest) (string, error) {
	if req.Forward {
		return r.final.Destination(req.Name)
	}
	return r.overall.Destination(req.Name)
}

func (r *Router) ProcessSuccess(req domain.LambdaRequest, destination string, _ domain.LambdaResponse, elapsed time.Duration) {
	if req.Forward {
		r.finalOptimizer.Update(req, destination, elapsed)
		return
	}
	r.overallOptimizer.Update(req, destination, elapsed)
}

// ProcessFailure removes the destination from both tables: a computer that
// fails is assumed gone regardless of where the request came from.
func (r *Router) ProcessFailure(req domain.LambdaRequest, destination string) {
	r.overall.Remove(req.Name, destination)
	r.overallOptimizer.Forget(req.Name, destination)
	r.final.Remove(req.Name, destination)
	r.finalOptimizer.Forget(req.Name, destination)
}

func (r *Router) Tables() []ports.ForwardingTable {
	return []ports.ForwardingTable{r.overall, r.final}
}

var _ Strategy = (*Router)(nil)
