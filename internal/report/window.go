package report

import (
	"fmt"
	"time"

	"github.com/spec-kit/chat-escalation/internal/workhours"
)

// DailyWindow returns the 24h window ending at the most recent occurrence of
// boundaryHour. When now precedes today's boundary the window rolls back one
// day.
func DailyWindow(now time.Time, boundaryHour int) (time.Time, time.Time) {
	end := time.Date(now.Year(), now.Month(), now.Day(), boundaryHour, 0, 0, 0, now.Location())
	if now.Before(end) {
		end = end.AddDate(0, 0, -1)
	}
	return end.AddDate(0, 0, -1), end
}

// NightlyWindow returns the tenant's most recent completed off-hours span:
// from the last working-hours end to the following working-hours start. Both
// bounds are computed in the tenant's local time and returned in UTC.
func NightlyWindow(now time.Time, workStart, workEnd string, tzOffsetMinutes int) (time.Time, time.Time, error) {
	startMin, err := workhours.ParseClock(workStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endMin, err := workhours.ParseClock(workEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if startMin == endMin {
		return time.Time{}, time.Time{}, fmt.Errorf("tenant has no off-hours span")
	}

	offset := time.Duration(tzOffsetMinutes) * time.Minute
	local := now.UTC().Add(offset)

	// Window end: most recent occurrence of the working-hours start.
	windowEnd := atClock(local, startMin)
	if local.Before(windowEnd) {
		windowEnd = windowEnd.AddDate(0, 0, -1)
	}

	// Window start: most recent occurrence of the working-hours end before
	// the window end.
	windowStart := atClock(windowEnd, endMin)
	if !windowStart.Before(windowEnd) {
		windowStart = windowStart.AddDate(0, 0, -1)
	}

	return windowStart.Add(-offset), windowEnd.Add(-offset), nil
}

func atClock(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}
