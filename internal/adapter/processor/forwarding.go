package processor

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/thushan/ferry/internal/core/domain"
	"github.com/thushan/ferry/internal/core/ports"
)

// ForwardingTable is the router's weighted lambda -> destination view.
// Destinations are drawn at random proportionally to their weight.
type ForwardingTable struct {
	mu      sync.Mutex
	entries map[string]map[string]ports.ForwardingEntry
	random  func() float64
}

func NewForwardingTable() *ForwardingTable {
	return &ForwardingTable{
		entries: make(map[string]map[string]ports.ForwardingEntry),
		random:  rand.Float64,
	}
}

// Destination draws a destination for the lambda, weighted.
func (t *ForwardingTable) Destination(lambda string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dests, ok := t.entries[lambda]
	if !ok || len(dests) == 0 {
		return "", &domain.NoDestinationsError{Lambda: lambda}
	}

	keys := make([]string, 0, len(dests))
	total := 0.0
	for dest := range dests {
		keys = append(keys, dest)
	}
	sort.Strings(keys)
	for _, dest := range keys {
		total += dests[dest].Weight
	}
	if total <= 0 {
		return keys[0], nil
	}

	r := t.random() * total
	acc := 0.0
	for _, dest := range keys {
		acc += dests[dest].Weight
		if r <= acc {
			return dest, nil
		}
	}
	return keys[len(keys)-1], nil
}

func (t *ForwardingTable) Change(lambda, destination string, weight float64, final bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dests, ok := t.entries[lambda]
	if !ok {
		dests = make(map[string]ports.ForwardingEntry)
		t.entries[lambda] = dests
	}
	dests[destination] = ports.ForwardingEntry{Weight: weight, Final: final}
}

// UpdateWeight adjusts the weight of an existing entry, preserving its final
// flag. Unknown entries are ignored.
func (t *ForwardingTable) UpdateWeight(lambda, destination string, weight float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dests, ok := t.entries[lambda]
	if !ok {
		return
	}
	entry, ok := dests[destination]
	if !ok {
		return
	}
	entry.Weight = weight
	dests[destination] = entry
}

func (t *ForwardingTable) Remove(lambda, destination string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dests, ok := t.entries[lambda]
	if !ok {
		return
	}
	delete(dests, destination)
	if len(dests) == 0 {
		delete(t.entries, lambda)
	}
}

func (t *ForwardingTable) RemoveLambda(lambda string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, lambda)
}

func (t *ForwardingTable) Lambdas() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.entries))
	for lambda := range t.entries {
		out = append(out, lambda)
	}
	sort.Strings(out)
	return out
}

func (t *ForwardingTable) FullTable() map[string]map[string]ports.ForwardingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]map[string]ports.ForwardingEntry, len(t.entries))
	for lambda, dests := range t.entries {
		inner := make(map[string]ports.ForwardingEntry, len(dests))
		for dest, entry := range dests {
			inner[dest] = entry
		}
		out[lambda] = inner
	}
	return out
}

var _ ports.ForwardingTable = (*ForwardingTable)(nil)

// LocalOptimizer tracks an exponentially weighted moving average of the
// observed latency per (lambda, destination) and keeps the table weight at
// its inverse, so faster destinations are drawn more often.
type LocalOptimizer struct {
	table *ForwardingTable
	alpha float64

	mu   sync.Mutex
	ewma map[string]map[string]float64
}

func NewLocalOptimizer(table *ForwardingTable, alpha float64) *LocalOptimizer {
	return &LocalOptimizer{
		table: table,
		alpha: alpha,
		ewma:  make(map[string]map[string]float64),
	}
}

// Update feeds one observation.
func (o *LocalOptimizer) Update(req domain.LambdaRequest, destination string, elapsed time.Duration) {
	o.mu.Lock()
	dests, ok := o.ewma[req.Name]
	if !ok {
		dests = make(map[string]float64)
		o.ewma[req.Name] = dests
	}
	seconds := elapsed.Seconds()
	if prev, ok := dests[destination]; ok {
		seconds = (1-o.alpha)*prev + o.alpha*seconds
	}
	dests[destination] = seconds
	o.mu.Unlock()

	if seconds > 0 {
		o.table.UpdateWeight(req.Name, destination, 1/seconds)
	}
}

// Forget drops the tracked history for a destination.
func (o *LocalOptimizer) Forget(lambda, destination string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if dests, ok := o.ewma[lambda]; ok {
		delete(dests, destination)
		if len(dests) == 0 {
			delete(o.ewma, lambda)
		}
	}
}
