package analytics

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
)

func TestTrackerDropsOldestAtCapacity(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	tr.capacity = 5

	for i := 0; i < 8; i++ {
		tr.Track(fmt.Sprintf("event_%d", i), int64(i), nil)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.events) != 5 {
		t.Fatalf("buffer holds %d events, want 5", len(tr.events))
	}
	if tr.events[0].Name != "event_3" {
		t.Fatalf("oldest surviving event = %s, want event_3 (FIFO eviction)", tr.events[0].Name)
	}
	if tr.events[4].Name != "event_7" {
		t.Fatalf("newest event = %s, want event_7", tr.events[4].Name)
	}
}

func TestStats(t *testing.T) {
	tr := NewTracker(zap.NewNop())

	tr.Track("user_started", 1, nil)
	tr.Track("user_started", 2, nil)
	tr.Track("resume_analyzed", 1, map[string]any{"ats_score": 70})

	stats := tr.Stats()
	if stats.TotalUsers != 2 {
		t.Fatalf("TotalUsers = %d, want 2", stats.TotalUsers)
	}
	if stats.TotalEvents != 3 || stats.EventsToday != 3 {
		t.Fatalf("events = %d today / %d total, want 3/3", stats.EventsToday, stats.TotalEvents)
	}
	if stats.EventsByType["user_started"] != 2 {
		t.Fatalf("user_started count = %d, want 2", stats.EventsByType["user_started"])
	}
	if stats.ConversionRate != 50 {
		t.Fatalf("ConversionRate = %v, want 50", stats.ConversionRate)
	}
}
