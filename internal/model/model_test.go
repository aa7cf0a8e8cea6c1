package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRideStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    RideStatus
		wantErr bool
	}{
		{"OPERATING", StatusOperating, false},
		{"operating", StatusOperating, false},
		{"  Down  ", StatusDown, false},
		{"CLOSED", StatusClosed, false},
		{"REFURBISHMENT", StatusRefurbishment, false},
		{"", "", true},
		{"BROKEN", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRideStatus(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestParsePeriod(t *testing.T) {
	// Case and surrounding whitespace are forgiven.
	for _, valid := range []string{"live", "today", "yesterday", "last_week", "last_month", "LIVE ", " Today"} {
		_, err := ParsePeriod(valid)
		assert.NoError(t, err, valid)
	}
	for _, invalid := range []string{"", "week", "last-month", "tomorrow"} {
		_, err := ParsePeriod(invalid)
		assert.Error(t, err, "%q should be rejected", invalid)
	}
}

func TestParseParkFilterEmptyMeansAll(t *testing.T) {
	got, err := ParseParkFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAllParks, got)

	got, err = ParseParkFilter("disney-universal")
	require.NoError(t, err)
	assert.Equal(t, FilterDisneyUniversal, got)

	_, err = ParseParkFilter("disney")
	assert.Error(t, err)
}

func TestTierWeight(t *testing.T) {
	assert.Equal(t, 3, TierWeight(1))
	assert.Equal(t, 2, TierWeight(2))
	assert.Equal(t, 1, TierWeight(3))

	// Unknown tiers fall back to the default weight.
	assert.Equal(t, DefaultTierWeight, TierWeight(0))
	assert.Equal(t, DefaultTierWeight, TierWeight(99))
}

func TestImportTransitions(t *testing.T) {
	assert.True(t, CanTransition(ImportPending, ImportInProgress))
	assert.True(t, CanTransition(ImportInProgress, ImportPaused))
	assert.True(t, CanTransition(ImportInProgress, ImportFailed))
	assert.True(t, CanTransition(ImportPaused, ImportInProgress))

	// FAILED is resumable.
	assert.True(t, CanTransition(ImportFailed, ImportInProgress))

	// COMPLETED and CANCELLED are terminal.
	assert.False(t, CanTransition(ImportCompleted, ImportInProgress))
	assert.False(t, CanTransition(ImportCancelled, ImportInProgress))

	// No skipping straight to completion.
	assert.False(t, CanTransition(ImportPending, ImportCompleted))
	assert.False(t, CanTransition(ImportPaused, ImportCompleted))
}

func TestISOWeekStart(t *testing.T) {
	// Wednesday 2026-01-14 -> Monday 2026-01-12.
	wed := time.Date(2026, 1, 14, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), ISOWeekStart(wed))

	// Monday maps to itself at midnight.
	mon := time.Date(2026, 1, 12, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), ISOWeekStart(mon))

	// Sunday belongs to the week starting the previous Monday.
	sun := time.Date(2026, 1, 18, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), ISOWeekStart(sun))

	// The location is preserved.
	pacific := Pacific()
	local := time.Date(2026, 1, 14, 8, 0, 0, 0, pacific)
	start := ISOWeekStart(local)
	assert.Equal(t, pacific, start.Location())
	assert.Equal(t, time.Monday, start.Weekday())
}

func TestCountsAsDown(t *testing.T) {
	down := StatusDown
	closed := StatusClosed
	operating := StatusOperating

	t.Run("strict vendor counts only explicit DOWN", func(t *testing.T) {
		assert.True(t, CountsAsDown(true, &down, false))
		assert.False(t, CountsAsDown(true, &closed, false))
		assert.False(t, CountsAsDown(true, &operating, true))
		assert.False(t, CountsAsDown(true, nil, false))
	})

	t.Run("other parks count DOWN, CLOSED, and dark rides", func(t *testing.T) {
		assert.True(t, CountsAsDown(false, &down, false))
		assert.True(t, CountsAsDown(false, &closed, false))
		assert.False(t, CountsAsDown(false, &operating, true))

		// No status: the computed open flag decides.
		assert.True(t, CountsAsDown(false, nil, false))
		assert.False(t, CountsAsDown(false, nil, true))
	})
}

func TestStrictVendor(t *testing.T) {
	assert.True(t, StrictVendor(true, false))
	assert.True(t, StrictVendor(false, true))
	assert.False(t, StrictVendor(false, false))
}
