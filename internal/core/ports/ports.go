package ports

import (
	"context"
	"time"

	"github.com/thushan/ferry/internal/core/domain"
)

// LambdaClient issues one lambda invocation at a time towards a single
// destination. Implementations are not required to be safe for concurrent
// use; the client pool guarantees exclusive use per invocation.
type LambdaClient interface {
	RunLambda(ctx context.Context, req domain.LambdaRequest, dry bool) (domain.LambdaResponse, error)
	Close() error
}

// ForwardingEntry is one row of a forwarding view: the routing weight and
// whether the destination terminates forwarding (a computer rather than
// another node).
type ForwardingEntry struct {
	Weight float64
	Final  bool
}

// ForwardingTable is the mutable lambda -> destination view shared by
// estimators and router tables. Mutations are totally ordered per table.
type ForwardingTable interface {
	// Change adds a destination for a lambda or updates its weight.
	Change(lambda, destination string, weight float64, final bool)
	// Remove drops one destination for a lambda.
	Remove(lambda, destination string)
	// RemoveLambda drops every destination for a lambda.
	RemoveLambda(lambda string)
	// Lambdas lists every lambda with at least one destination.
	Lambdas() []string
	// FullTable returns a copy of the whole view.
	FullTable() map[string]map[string]ForwardingEntry
}

// Estimator turns a request into an outbound destination and learns from the
// observed outcome. Destination records a prediction that the matching
// ProcessSuccess or ProcessFailure consumes.
type Estimator interface {
	ForwardingTable
	Destination(req domain.LambdaRequest) (string, error)
	ProcessSuccess(req domain.LambdaRequest, destination string, rep domain.LambdaResponse, elapsed time.Duration)
	ProcessFailure(req domain.LambdaRequest, destination string)
}

// Controller is the seam towards the fabric controller. Implementations must
// tolerate an unreachable controller: callers log and move on.
type Controller interface {
	AnnounceProcessor(ctx context.Context, lambdaEndpoint, commandsEndpoint string) error
	AnnounceComputer(ctx context.Context, endpoint string, lambdas []string) error
	RemoveComputer(ctx context.Context, endpoint string) error
}

// StateStore holds named opaque blobs.
type StateStore interface {
	Get(ctx context.Context, name string) ([]byte, bool, error)
	Put(ctx context.Context, name string, content []byte) error
	Del(ctx context.Context, name string) (bool, error)
	Close() error
}

// StatsCollector centralises the fabric counters.
type StatsCollector interface {
	RecordDispatch(lambda, destination string, ok bool, elapsed time.Duration)
	RecordFailover(lambda, destination string)
	RecordTask(lambda string, ptime time.Duration)
	GetDispatchStats() map[string]DispatchStats
}

// DispatchStats is a per-destination snapshot.
type DispatchStats struct {
	Destination        string    `json:"destination"`
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	AverageLatency     int64     `json:"avg_latency_ms"`
	LastUsed           time.Time `json:"last_used"`
}
