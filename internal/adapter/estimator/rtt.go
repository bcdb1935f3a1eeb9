package estimator

import (
	"time"

	"github.com/thushan/ferry/internal/adapter/table"
)

type rttDescriptor struct {
	est *Linear
}

// rtt predicts the round-trip time for the given input size. A purged
// (all-stale) window yields 0, which deliberately makes the destination a
// periodic-probe candidate.
func (d *rttDescriptor) rtt(inputSize int) float64 {
	if v := d.est.Extrapolate(float64(inputSize)); v > 0 {
		return v
	}
	return 0
}

// RttEstimator predicts the RTT of a lambda request as a linear function of
// the input size, per (lambda, destination). The RTT is the overall execution
// latency minus the processing time reported by the responder.
type RttEstimator struct {
	t *table.DestinationTable[*rttDescriptor]
}

func NewRttEstimator(windowSize int, stalePeriod time.Duration) *RttEstimator {
	return &RttEstimator{
		t: table.New(func(string, string) *rttDescriptor {
			return &rttDescriptor{est: NewLinear(windowSize, stalePeriod)}
		}),
	}
}

// Rtt estimates the RTT, in seconds, for a given lambda executed by a given
// destination, or 0 with insufficient data.
func (e *RttEstimator) Rtt(lambda, destination string, inputSize int) float64 {
	desc, err := e.t.Find(lambda, destination)
	if err != nil {
		return 0
	}
	return desc.rtt(inputSize)
}

// Rtts estimates the RTT for a lambda of a given size on every destination.
func (e *RttEstimator) Rtts(lambda string, inputSize int) (map[string]float64, error) {
	return e.t.All(lambda, func(d *rttDescriptor) float64 {
		return d.rtt(inputSize)
	})
}

// ShortestRtt returns the destination with the shortest predicted RTT and the
// estimate, in seconds.
func (e *RttEstimator) ShortestRtt(lambda string, inputSize int) (string, float64, error) {
	dest, negRtt, err := e.t.Best(lambda, func(d *rttDescriptor) float64 {
		return -d.rtt(inputSize)
	})
	if err != nil {
		return "", 0, err
	}
	return dest, -negRtt, nil
}

// AddSample records a measurement, in seconds.
func (e *RttEstimator) AddSample(lambda, destination string, inputSize int, rtt float64) {
	desc, err := e.t.Find(lambda, destination)
	if err != nil {
		return
	}
	desc.est.Add(float64(inputSize), rtt)
}

// Add registers a (lambda, destination) pair.
func (e *RttEstimator) Add(lambda, destination string) bool {
	return e.t.Add(lambda, destination)
}

// Remove drops a (lambda, destination) pair.
func (e *RttEstimator) Remove(lambda, destination string) bool {
	return e.t.Remove(lambda, destination)
}
