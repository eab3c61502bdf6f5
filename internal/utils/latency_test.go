package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(10)
	durations := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond}
	for _, d := range durations {
		tracker.Observe(d)
	}

	if tracker.Count() != len(durations) {
		t.Fatalf("expected count %d, got %d", len(durations), tracker.Count())
	}
	if p95 := tracker.Percentile(95); p95 < 40*time.Millisecond {
		t.Fatalf("expected percentile >= 40ms, got %v", p95)
	}
	if min, max := tracker.Percentile(0), tracker.Percentile(100); min != 10*time.Millisecond || max != 50*time.Millisecond {
		t.Fatalf("unexpected bounds %v %v", min, max)
	}
	if NewLatencyTracker(4).Percentile(50) != 0 {
		t.Fatalf("empty tracker should report zero")
	}
}

func TestLatencyTrackerWindowKeepsNewest(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 1; i <= 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}
	if tracker.Count() != 3 {
		t.Fatalf("expected window size 3, got %d", tracker.Count())
	}
	if min := tracker.Percentile(0); min != 8*time.Millisecond {
		t.Fatalf("expected oldest sample in window to be 8ms, got %v", min)
	}
}

func TestLatencyTrackerTotalKeepsCountingPastWindow(t *testing.T) {
	tracker := NewLatencyTracker(1024)
	reports := 0
	for i := 0; i < 3000; i++ {
		if total := tracker.Observe(time.Millisecond); total%100 == 0 {
			reports++
		}
	}
	if tracker.Count() != 1024 {
		t.Fatalf("expected window of 1024, got %d", tracker.Count())
	}
	if tracker.Total() != 3000 {
		t.Fatalf("expected 3000 observations, got %d", tracker.Total())
	}
	if reports != 30 {
		t.Fatalf("expected a report every 100 observations, got %d", reports)
	}
}
