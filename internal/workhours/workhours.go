// Package workhours decides whether an instant falls inside a tenant's
// configured daily active interval.
package workhours

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IsActive reports whether at falls inside the [start, end) local interval.
// start and end are HH:MM time-of-day strings; an interval whose end precedes
// its start wraps midnight. Empty start or end means hours are not configured
// and the tenant is always active. tzOffsetMinutes shifts at into the
// tenant's local time before comparison.
func IsActive(start, end string, tzOffsetMinutes int, at time.Time) (bool, error) {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return true, nil
	}

	startMin, err := ParseClock(start)
	if err != nil {
		return false, err
	}
	endMin, err := ParseClock(end)
	if err != nil {
		return false, err
	}
	if startMin == endMin {
		// Degenerate 24h interval.
		return true, nil
	}

	local := at.UTC().Add(time.Duration(tzOffsetMinutes) * time.Minute)
	minute := local.Hour()*60 + local.Minute()

	if startMin < endMin {
		return minute >= startMin && minute < endMin, nil
	}
	// Wraps midnight, e.g. 22:00-06:00.
	return minute >= startMin || minute < endMin, nil
}

// ParseClock parses an HH:MM string into minutes since midnight.
func ParseClock(value string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour*60 + minute, nil
}
