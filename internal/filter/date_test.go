package filter

import (
	"testing"
	"time"
)

func TestEstimatePostedDate(t *testing.T) {
	scraped := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		posted   string
		style    Style
		expected string
	}{
		{name: "empty", posted: "", expected: "2026-03-15"},
		{name: "n/a", posted: "N/A", expected: "2026-03-15"},
		{name: "failed extraction", posted: "Failed to extract", expected: "2026-03-15"},
		{name: "unparseable", posted: "Just now", expected: "2026-03-15"},
		{name: "days ago", posted: "3 days ago", expected: "2026-03-12"},
		{name: "plus days", posted: "30+ days ago", expected: "2026-02-13"},
		{name: "hours crossing midnight", posted: "11 hours ago", expected: "2026-03-14"},
		{name: "short hours", posted: "5h", expected: "2026-03-15"},
		{name: "weeks", posted: "2 weeks ago", expected: "2026-03-01"},
		{name: "short week", posted: "1w", expected: "2026-03-08"},
		{name: "short month", posted: "2mo", expected: "2026-01-14"},
		{name: "bare m on search is month", posted: "1m", style: StyleSearch, expected: "2026-02-13"},
		{name: "bare m on feed is minutes", posted: "45m", style: StyleFeed, expected: "2026-03-15"},
		{name: "minutes", posted: "20 minutes ago", expected: "2026-03-15"},
		{name: "absolute date", posted: "2026-01-02", expected: "2026-01-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimatePostedDate(tt.posted, scraped, tt.style)
			if got != tt.expected {
				t.Errorf("EstimatePostedDate(%q) = %s, want %s", tt.posted, got, tt.expected)
			}
		})
	}
}
