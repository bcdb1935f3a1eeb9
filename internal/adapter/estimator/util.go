package estimator

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/thushan/ferry/internal/core/domain"

	"github.com/thushan/ferry/internal/adapter/table"
)

// computerDescriptor tracks the last load reported by one destination. Once
// the load timeout elapses the cached load1 resets to 0, forcing periodic
// re-probing of computers that went quiet.
type computerDescriptor struct {
	mu          sync.Mutex
	lambdas     map[string]struct{}
	loadTimeout time.Duration
	lastMeas    time.Time
	lastLoad1   uint16
	now         func() time.Time
}

func newComputerDescriptor(loadTimeout time.Duration, now func() time.Time) *computerDescriptor {
	return &computerDescriptor{
		lambdas:     make(map[string]struct{}),
		loadTimeout: loadTimeout,
		lastMeas:    now(),
		now:         now,
	}
}

// lastLoad returns the last load1 value and the time since it was reported.
// The load is guaranteed to be in [0,99], the delta non-negative.
func (d *computerDescriptor) lastLoad() (uint16, time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.Sub(d.lastMeas) >= d.loadTimeout {
		// it is as if we had received a load1 == 0
		d.lastLoad1 = 0
		d.lastMeas = now
	}
	return d.lastLoad1, now.Sub(d.lastMeas)
}

func (d *computerDescriptor) add(load1 uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if load1 > 99 {
		load1 = 99
	}
	d.lastMeas = d.now()
	d.lastLoad1 = load1
}

// lambdaDescriptor holds, per input size, a regression of processing time on
// the load reported by the destination.
type lambdaDescriptor struct {
	parent      *UtilEstimator
	destination string

	mu         sync.Mutex
	estimators map[int]*Linear
}

func (d *lambdaDescriptor) ptime(inputSize int) float64 {
	comp := d.parent.computer(d.destination)
	if comp == nil {
		d.parent.logger.Warn("cannot estimate processing time, destination has disappeared",
			"destination", d.destination)
		return 0
	}
	load, _ := comp.lastLoad()

	d.mu.Lock()
	defer d.mu.Unlock()

	est, ok := d.estimators[inputSize]
	if !ok {
		// unseen input size: force the destination to be tried
		return 0
	}
	return est.Extrapolate(float64(load))
}

func (d *lambdaDescriptor) add(inputSize int, ptime float64, load uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()

	est, ok := d.estimators[inputSize]
	if !ok {
		est = NewLinear(d.parent.windowSize, 0)
		d.estimators[inputSize] = est
	}
	est.Add(float64(load), ptime)
}

// UtilEstimator predicts the processing time of a lambda on a destination
// from the destination's reported load.
type UtilEstimator struct {
	loadTimeout time.Duration
	windowSize  int
	logger      *slog.Logger
	now         func() time.Time

	mu        sync.Mutex
	computers map[string]*computerDescriptor
	t         *table.DestinationTable[*lambdaDescriptor]
}

func NewUtilEstimator(loadTimeout time.Duration, windowSize int, logger *slog.Logger) *UtilEstimator {
	e := &UtilEstimator{
		loadTimeout: loadTimeout,
		windowSize:  windowSize,
		logger:      logger,
		now:         time.Now,
		computers:   make(map[string]*computerDescriptor),
	}
	e.t = table.New(func(_, destination string) *lambdaDescriptor {
		return &lambdaDescriptor{
			parent:      e,
			destination: destination,
			estimators:  make(map[int]*Linear),
		}
	})
	return e
}

func (e *UtilEstimator) computer(destination string) *computerDescriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.computers[destination]
}

// Best returns the destination minimizing rtt + ptime for the given lambda
// and input size, with the two estimates. The RTTs come from the RTT
// estimator by composition.
func (e *UtilEstimator) Best(lambda string, inputSize int, rtts map[string]float64) (string, float64, float64, error) {
	ptimes, err := e.t.All(lambda, func(d *lambdaDescriptor) float64 {
		return d.ptime(inputSize)
	})
	if err != nil {
		return "", 0, 0, err
	}

	best := ""
	bestRtt, bestPtime := 0.0, 0.0
	minTotal := math.MaxFloat64
	for dest, rtt := range rtts {
		ptime, ok := ptimes[dest]
		if !ok {
			continue
		}
		if total := rtt + ptime; total < minTotal {
			best, bestRtt, bestPtime = dest, rtt, ptime
			minTotal = total
		}
	}
	if best == "" {
		return "", 0, 0, &domain.NoDestinationsError{Lambda: lambda}
	}
	return best, bestRtt, bestPtime, nil
}

// SmallestPtime returns the destination with the smallest predicted
// processing time and the estimate, in seconds.
func (e *UtilEstimator) SmallestPtime(lambda string, inputSize int) (string, float64, error) {
	dest, negPtime, err := e.t.Best(lambda, func(d *lambdaDescriptor) float64 {
		return -d.ptime(inputSize)
	})
	if err != nil {
		return "", 0, err
	}
	return dest, -negPtime, nil
}

// AddSample records a measurement: the processing time observed for a lambda
// of a given size on a destination reporting the given loads.
func (e *UtilEstimator) AddSample(lambda, destination string, inputSize int, ptime float64, load1, load10 uint16) {
	_ = load10

	desc, err := e.t.Find(lambda, destination)
	if err != nil {
		return
	}
	desc.add(inputSize, ptime, load1)

	if comp := e.computer(destination); comp != nil {
		comp.add(load1)
	}
}

// Add registers a (lambda, destination) pair.
func (e *UtilEstimator) Add(lambda, destination string) bool {
	e.mu.Lock()
	comp, ok := e.computers[destination]
	if !ok {
		comp = newComputerDescriptor(e.loadTimeout, e.now)
		e.computers[destination] = comp
	}
	comp.mu.Lock()
	comp.lambdas[lambda] = struct{}{}
	comp.mu.Unlock()
	e.mu.Unlock()

	return e.t.Add(lambda, destination)
}

// Remove drops a (lambda, destination) pair. The computer record goes away
// with its last lambda.
func (e *UtilEstimator) Remove(lambda, destination string) bool {
	e.mu.Lock()
	if comp, ok := e.computers[destination]; ok {
		comp.mu.Lock()
		delete(comp.lambdas, lambda)
		empty := len(comp.lambdas) == 0
		comp.mu.Unlock()
		if empty {
			delete(e.computers, destination)
		}
	}
	e.mu.Unlock()

	return e.t.Remove(lambda, destination)
}
