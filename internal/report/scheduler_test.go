package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNightlySweepDue(t *testing.T) {
	localAt := func(hour, minute int) time.Time {
		return time.Date(2026, time.May, 12, hour, minute, 0, 0, time.UTC)
	}

	cases := []struct {
		name     string
		local    time.Time
		start    string
		expected bool
	}{
		{"sweep right after on-the-hour opening", localAt(9, 5), "09:00", true},
		{"sweep an hour after opening", localAt(10, 5), "09:00", false},
		{"half-hour opening not yet reached", localAt(9, 5), "09:30", false},
		{"half-hour opening swept next hour", localAt(10, 5), "09:30", true},
		{"opening at the sweep minute", localAt(9, 5), "09:05", true},
		{"midnight wrap before opening", localAt(23, 5), "23:30", false},
		{"midnight wrap after opening", localAt(0, 5), "23:30", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			startMin := clockMinutes(t, tc.start)
			assert.Equal(t, tc.expected, nightlySweepDue(tc.local, startMin))
		})
	}
}

func clockMinutes(t *testing.T, clock string) int {
	t.Helper()
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		t.Fatalf("bad clock %q: %v", clock, err)
	}
	return parsed.Hour()*60 + parsed.Minute()
}
