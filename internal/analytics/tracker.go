package analytics

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultCapacity = 10000

// Event is a single tracked occurrence: bot started, resume analyzed,
// premium purchased, error raised.
type Event struct {
	Name      string         `json:"event"`
	UserID    int64          `json:"user_id"`
	Timestamp time.Time      `json:"timestamp"`
	Date      string         `json:"date"`
	Metadata  map[string]any `json:"metadata"`
}

// Stats is an aggregate view over the stored events.
type Stats struct {
	TotalUsers       int            `json:"total_users"`
	DailyActiveUsers int            `json:"daily_active_users"`
	EventsToday      int            `json:"events_today"`
	TotalEvents      int            `json:"total_events"`
	EventsByType     map[string]int `json:"events_by_type"`
	ConversionRate   float64        `json:"conversion_rate"`
	LastUpdated      time.Time      `json:"last_updated"`
}

// Tracker is a one-way event sink the request path writes to and never
// reads synchronously. Events live in a bounded FIFO buffer; once full,
// the oldest event is dropped for each new one.
type Tracker struct {
	mu       sync.Mutex
	events   []Event
	capacity int
	logger   *zap.Logger
	now      func() time.Time
}

func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{
		capacity: defaultCapacity,
		logger:   logger,
		now:      time.Now,
	}
}

// Track records an event. Never fails and never blocks the caller on
// anything but the buffer mutex.
func (t *Tracker) Track(name string, userID int64, metadata map[string]any) {
	now := t.now().UTC()
	event := Event{
		Name:      name,
		UserID:    userID,
		Timestamp: now,
		Date:      now.Format("2006-01-02"),
		Metadata:  metadata,
	}

	t.logger.Info("Analytics event",
		zap.String("event", name),
		zap.Int64("user_id", userID),
		zap.Any("metadata", metadata))

	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
	if len(t.events) > t.capacity {
		t.events = t.events[1:]
	}
}

// Stats aggregates the buffered events.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	today := t.now().UTC().Format("2006-01-02")
	allUsers := make(map[int64]struct{})
	todayUsers := make(map[int64]struct{})
	byType := make(map[string]int)
	eventsToday := 0

	for _, e := range t.events {
		allUsers[e.UserID] = struct{}{}
		byType[e.Name]++
		if e.Date == today {
			todayUsers[e.UserID] = struct{}{}
			eventsToday++
		}
	}

	conversion := 0.0
	if started := byType["user_started"]; started > 0 {
		conversion = float64(byType["resume_analyzed"]) / float64(started) * 100
	}

	return Stats{
		TotalUsers:       len(allUsers),
		DailyActiveUsers: len(todayUsers),
		EventsToday:      eventsToday,
		TotalEvents:      len(t.events),
		EventsByType:     byType,
		ConversionRate:   conversion,
		LastUpdated:      t.now().UTC(),
	}
}
