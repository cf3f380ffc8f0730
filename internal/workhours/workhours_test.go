package workhours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, time.March, 10, hour, minute, 0, 0, time.UTC)
}

func TestIsActiveDaytimeInterval(t *testing.T) {
	tests := []struct {
		name   string
		at     time.Time
		active bool
	}{
		{"inside", at(10, 0), true},
		{"before open", at(8, 59), false},
		{"at open", at(9, 0), true},
		{"at close", at(18, 0), false},
		{"evening", at(20, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			active, err := IsActive("09:00", "18:00", 0, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.active, active)
		})
	}
}

func TestIsActiveWrapsMidnight(t *testing.T) {
	tests := []struct {
		name   string
		at     time.Time
		active bool
	}{
		{"late evening", at(23, 0), true},
		{"early morning", at(5, 59), true},
		{"after wrap close", at(6, 0), false},
		{"midday", at(12, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			active, err := IsActive("22:00", "06:00", 0, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.active, active)
		})
	}
}

func TestIsActiveUnconfiguredAlwaysActive(t *testing.T) {
	active, err := IsActive("", "", 0, at(3, 0))
	require.NoError(t, err)
	assert.True(t, active)
}

func TestIsActiveAppliesTenantOffset(t *testing.T) {
	// 07:30 UTC is 10:30 at UTC+3.
	active, err := IsActive("09:00", "18:00", 180, at(7, 30))
	require.NoError(t, err)
	assert.True(t, active)

	// 07:30 UTC is 04:30 at UTC-3.
	active, err = IsActive("09:00", "18:00", -180, at(7, 30))
	require.NoError(t, err)
	assert.False(t, active)
}

func TestIsActiveEqualBoundsAlwaysActive(t *testing.T) {
	active, err := IsActive("08:00", "08:00", 0, at(3, 0))
	require.NoError(t, err)
	assert.True(t, active)
}

func TestIsActiveRejectsMalformedHours(t *testing.T) {
	_, err := IsActive("9am", "18:00", 0, at(10, 0))
	assert.Error(t, err)

	_, err = IsActive("09:00", "25:00", 0, at(10, 0))
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	minutes, err := ParseClock("13:45")
	require.NoError(t, err)
	assert.Equal(t, 13*60+45, minutes)

	_, err = ParseClock("13:60")
	assert.Error(t, err)
	_, err = ParseClock("1345")
	assert.Error(t, err)
}
