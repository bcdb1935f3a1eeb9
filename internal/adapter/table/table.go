// Package table provides the two-level lambda -> destination -> descriptor
// mapping shared by the estimators.
package table

import (
	"math"
	"sort"
	"sync"

	"github.com/thushan/ferry/internal/core/domain"
)

// Factory constructs a descriptor the first time a (lambda, destination) pair
// is added. It is called exactly once per pair.
type Factory[T any] func(lambda, destination string) T

// DestinationTable is a thread-safe two-level map. A single mutex serializes
// every operation; objective callbacks passed to Best and All run under it.
type DestinationTable[T any] struct {
	mu          sync.Mutex
	factory     Factory[T]
	descriptors map[string]map[string]T
}

func New[T any](factory Factory[T]) *DestinationTable[T] {
	return &DestinationTable[T]{
		factory:     factory,
		descriptors: make(map[string]map[string]T),
	}
}

// Find returns the descriptor for the given lambda and destination.
func (t *DestinationTable[T]) Find(lambda, destination string) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if dests, ok := t.descriptors[lambda]; ok {
		if desc, ok := dests[destination]; ok {
			return desc, nil
		}
	}
	var zero T
	return zero, &domain.InvalidDestinationError{Lambda: lambda, Destination: destination}
}

// Best returns the destination maximizing the objective over all descriptors
// of the lambda, and the value it scored. Ties are broken towards the
// smallest destination string.
func (t *DestinationTable[T]) Best(lambda string, objective func(T) float64) (string, float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dests, ok := t.descriptors[lambda]
	if !ok {
		return "", 0, &domain.NoDestinationsError{Lambda: lambda}
	}

	best := ""
	bestValue := math.Inf(-1)
	for _, dest := range sortedDestinations(dests) {
		value := objective(dests[dest])
		if value > bestValue {
			best = dest
			bestValue = value
		}
	}
	return best, bestValue, nil
}

// All returns the objective value for every destination of the lambda.
func (t *DestinationTable[T]) All(lambda string, objective func(T) float64) (map[string]float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dests, ok := t.descriptors[lambda]
	if !ok {
		return nil, &domain.NoDestinationsError{Lambda: lambda}
	}

	out := make(map[string]float64, len(dests))
	for dest, desc := range dests {
		out[dest] = objective(desc)
	}
	return out, nil
}

// Add inserts the pair if absent, constructing the descriptor through the
// factory. Returns true if an element was actually added.
func (t *DestinationTable[T]) Add(lambda, destination string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	dests, ok := t.descriptors[lambda]
	if !ok {
		dests = make(map[string]T)
		t.descriptors[lambda] = dests
	}
	if _, ok := dests[destination]; ok {
		return false
	}
	dests[destination] = t.factory(lambda, destination)
	return true
}

// Remove drops the pair. When the last destination of a lambda goes away the
// lambda entry itself is erased. Returns true if an element was actually
// removed.
func (t *DestinationTable[T]) Remove(lambda, destination string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	dests, ok := t.descriptors[lambda]
	if !ok {
		return false
	}
	if _, ok := dests[destination]; !ok {
		return false
	}
	delete(dests, destination)
	if len(dests) == 0 {
		delete(t.descriptors, lambda)
	}
	return true
}

// Lambdas lists every lambda with at least one destination.
func (t *DestinationTable[T]) Lambdas() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.descriptors))
	for lambda := range t.descriptors {
		out = append(out, lambda)
	}
	sort.Strings(out)
	return out
}

func sortedDestinations[T any](dests map[string]T) []string {
	out := make([]string, 0, len(dests))
	for dest := range dests {
		out = append(out, dest)
	}
	sort.Strings(out)
	return out
}
