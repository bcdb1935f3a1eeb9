package estimator

import (
	"sync"
	"time"
)

type linearSample struct {
	x    float64
	y    float64
	when time.Time
}

// Linear is a bounded sliding window of (x, y) samples fitted by least
// squares. Samples older than the stale period are purged on query; a window
// left with fewer than two samples predicts 0. A stale period <= 0 disables
// purging.
type Linear struct {
	mu         sync.Mutex
	windowSize int
	stale      time.Duration
	samples    []linearSample
	now        func() time.Time
}

func NewLinear(windowSize int, stale time.Duration) *Linear {
	if windowSize < 2 {
		windowSize = 2
	}
	return &Linear{
		windowSize: windowSize,
		stale:      stale,
		now:        time.Now,
	}
}

// Add appends a sample, evicting the oldest when the window is full.
func (l *Linear) Add(x, y float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.samples = append(l.samples, linearSample{x: x, y: y, when: l.now()})
	if len(l.samples) > l.windowSize {
		l.samples = l.samples[len(l.samples)-l.windowSize:]
	}
}

// Extrapolate predicts y at the given x from the regression over the
// non-stale window, or 0 with fewer than two samples.
func (l *Linear) Extrapolate(x float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.purge()
	if len(l.samples) < 2 {
		return 0
	}

	var sumX, sumY, sumXX, sumXY float64
	for _, s := range l.samples {
		sumX += s.x
		sumY += s.y
		sumXX += s.x * s.x
		sumXY += s.x * s.y
	}
	n := float64(len(l.samples))
	den := n*sumXX - sumX*sumX
	if den == 0 {
		// all x identical: fall back to the mean
		return sumY / n
	}
	slope := (n*sumXY - sumX*sumY) / den
	intercept := (sumY - slope*sumX) / n
	return slope*x + intercept
}

// Size returns the number of non-stale samples in the window.
func (l *Linear) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.purge()
	return len(l.samples)
}

func (l *Linear) purge() {
	if l.stale <= 0 {
		return
	}
	cutoff := l.now().Add(-l.stale)
	first := 0
	for first < len(l.samples) && l.samples[first].when.Before(cutoff) {
		first++
	}
	l.samples = l.samples[first:]
}
