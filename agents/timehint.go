package agents

import (
	"strings"
	"time"

	"github.com/javisai/javis/types"
)

// ParseTimeHint resolves a free-text temporal hint ("yesterday", "last
// week") into a concrete [From, To) range relative to now. Unknown hints
// return nil, leaving retrieval unbounded.
func ParseTimeHint(hint string, now time.Time) *types.TimeRange {
	if now.IsZero() {
		now = time.Now()
	}
	// Midnight in now's own zone. Truncate would cut on UTC epoch
	// boundaries and shift the day for non-UTC locations.
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "today":
		return &types.TimeRange{From: day, To: day.AddDate(0, 0, 1)}
	case "yesterday":
		return &types.TimeRange{From: day.AddDate(0, 0, -1), To: day}
	case "this week":
		start := startOfWeek(day)
		return &types.TimeRange{From: start, To: start.AddDate(0, 0, 7)}
	case "last week":
		start := startOfWeek(day).AddDate(0, 0, -7)
		return &types.TimeRange{From: start, To: start.AddDate(0, 0, 7)}
	case "this month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return &types.TimeRange{From: start, To: start.AddDate(0, 1, 0)}
	case "last month":
		end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return &types.TimeRange{From: end.AddDate(0, -1, 0), To: end}
	default:
		return nil
	}
}

// startOfWeek returns the Monday of day's week.
func startOfWeek(day time.Time) time.Time {
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, -(weekday - 1))
}
