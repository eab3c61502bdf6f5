package utils

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps a window of the most recent durations in a ring and counts every
// observation ever made, so callers can report on a fixed cadence after the window fills.
type LatencyTracker struct {
	mu     sync.Mutex
	window []time.Duration
	next   int
	filled bool
	total  uint64
}

// NewLatencyTracker creates a tracker whose percentiles cover the last size observations.
func NewLatencyTracker(size int) *LatencyTracker {
	if size <= 0 {
		size = 512
	}
	return &LatencyTracker{window: make([]time.Duration, size)}
}

// Observe records d and returns the total number of observations so far.
func (l *LatencyTracker) Observe(d time.Duration) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.window[l.next] = d
	l.next = (l.next + 1) % len(l.window)
	if l.next == 0 {
		l.filled = true
	}
	l.total++
	return l.total
}

// Percentile returns the p-th percentile (0-100) of the window, or zero when empty.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.Lock()
	sorted := append([]time.Duration(nil), l.samples()...)
	l.mu.Unlock()

	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	switch {
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[len(sorted)-1]
	}
	return sorted[int((p/100.0)*float64(len(sorted)-1))]
}

// Count returns the number of samples in the window.
func (l *LatencyTracker) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.samples())
}

// Total returns the number of observations ever recorded.
func (l *LatencyTracker) Total() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

func (l *LatencyTracker) samples() []time.Duration {
	if l.filled {
		return l.window
	}
	return l.window[:l.next]
}
