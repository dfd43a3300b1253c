package bot

import (
	"strings"
	"testing"

	"github.com/avolkov/careerai-bot/internal/analytics"
)

func TestFormatStats(t *testing.T) {
	stats := analytics.Stats{
		TotalUsers:       12,
		DailyActiveUsers: 4,
		EventsToday:      9,
		TotalEvents:      31,
		ConversionRate:   41.7,
		EventsByType: map[string]int{
			"user_started":    12,
			"resume_analyzed": 5,
		},
	}

	out := formatStats(stats)
	for _, want := range []string{
		"Total users: 12",
		"Active today: 4",
		"Events today: 9 / 31 total",
		"conversion: 41.7%",
		"resume_analyzed: 5",
		"user_started: 12",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("formatStats output missing %q:\n%s", want, out)
		}
	}
	// Event names sort deterministically.
	if strings.Index(out, "resume_analyzed") > strings.Index(out, "user_started") {
		t.Fatalf("event lines not sorted:\n%s", out)
	}
}

func TestFormatStatsEmpty(t *testing.T) {
	out := formatStats(analytics.Stats{})
	if !strings.Contains(out, "none yet") {
		t.Fatalf("formatStats for empty stats = %q", out)
	}
}

func TestTruncateForTelegram(t *testing.T) {
	short := "hello"
	if truncateForTelegram(short) != short {
		t.Fatalf("short text was altered")
	}

	long := strings.Repeat("х", telegramTextLimit+100)
	out := truncateForTelegram(long)
	if len([]rune(out)) != telegramTextLimit+2 {
		t.Fatalf("truncated length = %d runes, want limit plus ellipsis", len([]rune(out)))
	}
	if !strings.HasSuffix(out, "…") {
		t.Fatalf("truncated text missing ellipsis: %q", out[len(out)-10:])
	}
}
