package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingStatus_Precedence(t *testing.T) {
	// cancelled > no_show > completed > checked_in > confirmed > pending > failed
	ordered := []BookingStatus{
		StatusFailed,
		StatusPending,
		StatusConfirmed,
		StatusCheckedIn,
		StatusCompleted,
		StatusNoShow,
		StatusCancelled,
	}

	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Precedence(), ordered[i-1].Precedence(),
			"%s должен иметь приоритет выше %s", ordered[i], ordered[i-1])
	}

	assert.Equal(t, -1, BookingStatus("unknown").Precedence())
}

func TestBookingStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    BookingStatus
		to      BookingStatus
		allowed bool
	}{
		{"pending to confirmed", StatusPending, StatusConfirmed, true},
		{"pending to cancelled", StatusPending, StatusCancelled, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"pending to completed skips confirmed", StatusPending, StatusCompleted, false},
		{"confirmed to checked_in", StatusConfirmed, StatusCheckedIn, true},
		{"confirmed to no_show", StatusConfirmed, StatusNoShow, true},
		{"confirmed to cancelled", StatusConfirmed, StatusCancelled, true},
		{"confirmed to pending is backwards", StatusConfirmed, StatusPending, false},
		{"checked_in to completed", StatusCheckedIn, StatusCompleted, true},
		{"checked_in to no_show", StatusCheckedIn, StatusNoShow, true},
		{"checked_in to cancelled", StatusCheckedIn, StatusCancelled, false},
		{"cancelled is terminal", StatusCancelled, StatusPending, false},
		{"un-cancelling is rejected", StatusCancelled, StatusConfirmed, false},
		{"completed is terminal", StatusCompleted, StatusNoShow, false},
		{"failed is terminal", StatusFailed, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestBookingStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusNoShow.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusConfirmed.IsTerminal())
	assert.False(t, StatusCheckedIn.IsTerminal())
	assert.False(t, BookingStatus("unknown").IsTerminal())
}

func TestBooking_IsActive(t *testing.T) {
	for _, status := range ActiveStatuses {
		b := Booking{Status: status}
		assert.True(t, b.IsActive(), "status %s", status)
	}
	for _, status := range InactiveStatuses {
		b := Booking{Status: status}
		assert.False(t, b.IsActive(), "status %s", status)
	}
}

func TestBooking_Overlaps(t *testing.T) {
	start := time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	b := Booking{StartAt: start, EndAt: end}

	tests := []struct {
		name     string
		winStart time.Time
		winEnd   time.Time
		want     bool
	}{
		{"identical window", start, end, true},
		{"partial overlap at start", start.Add(-30 * time.Minute), start.Add(30 * time.Minute), true},
		{"partial overlap at end", end.Add(-30 * time.Minute), end.Add(30 * time.Minute), true},
		{"window inside booking", start.Add(15 * time.Minute), end.Add(-15 * time.Minute), true},
		{"booking inside window", start.Add(-time.Hour), end.Add(time.Hour), true},
		{"adjacent before does not overlap", start.Add(-time.Hour), start, false},
		{"adjacent after does not overlap", end, end.Add(time.Hour), false},
		{"disjoint before", start.Add(-2 * time.Hour), start.Add(-time.Hour), false},
		{"disjoint after", end.Add(time.Hour), end.Add(2 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Overlaps(tt.winStart, tt.winEnd))
		})
	}
}

func TestAvailabilityRule_AppliesTo(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	monday := time.Weekday(time.Monday)
	rule := AvailabilityRule{Weekday: &monday}

	mondayDate := time.Date(2025, 10, 13, 0, 0, 0, 0, loc) // понедельник
	tuesdayDate := time.Date(2025, 10, 14, 0, 0, 0, 0, loc)

	assert.True(t, rule.AppliesTo(mondayDate))
	assert.False(t, rule.AppliesTo(tuesdayDate))

	from := time.Date(2025, 10, 1, 0, 0, 0, 0, loc)
	to := time.Date(2025, 10, 10, 0, 0, 0, 0, loc)
	ranged := AvailabilityRule{DateFrom: &from, DateTo: &to}

	assert.True(t, ranged.AppliesTo(time.Date(2025, 10, 5, 0, 0, 0, 0, loc)))
	assert.True(t, ranged.AppliesTo(to))
	assert.False(t, ranged.AppliesTo(time.Date(2025, 10, 11, 0, 0, 0, 0, loc)))
	assert.False(t, ranged.AppliesTo(time.Date(2025, 9, 30, 0, 0, 0, 0, loc)))
}
