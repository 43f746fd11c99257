package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PropFox/internal/pkg/apperrors"
)

func TestCleaningWindow(t *testing.T) {
	checkout := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		checkin time.Time
	}{
		{"same day", checkout.Add(6 * time.Hour)},
		{"next day", checkout.Add(28 * time.Hour)},
		{"buffer larger than gap", checkout.Add(time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := CleaningWindow(checkout, tt.checkin)
			require.NoError(t, err)
			assert.True(t, w.Start.Equal(checkout))
			assert.True(t, w.End.Equal(tt.checkin.Add(-2*time.Hour)))
		})
	}
}

func TestCleaningWindowRejectsCheckinNotAfterCheckout(t *testing.T) {
	checkout := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for _, checkin := range []time.Time{checkout, checkout.Add(-time.Minute)} {
		_, err := CleaningWindow(checkout, checkin)
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidSchedule(err))
	}
}

func TestWindowDuration(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 3*time.Hour, Window{Start: start, End: start.Add(3 * time.Hour)}.Duration())
	assert.True(t, Window{Start: start, End: start.Add(-time.Hour)}.IsEmpty())
}

func TestSlotsOverlap(t *testing.T) {
	tests := []struct {
		a1, a2, b1, b2 string
		want           bool
	}{
		{"09:00", "11:00", "10:00", "12:00", true},
		{"09:00", "10:00", "10:00", "11:00", false},
		{"09:00", "12:00", "10:00", "11:00", true},
		{"13:00", "14:00", "09:00", "11:00", false},
		{"09:00", "11:00", "09:00", "11:00", true},
		{"11:00", "13:00", "09:00", "11:00", false},
	}

	for _, tt := range tests {
		got, err := SlotsOverlap(tt.a1, tt.a2, tt.b1, tt.b2)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s-%s vs %s-%s", tt.a1, tt.a2, tt.b1, tt.b2)

		reversed, err := SlotsOverlap(tt.b1, tt.b2, tt.a1, tt.a2)
		require.NoError(t, err)
		assert.Equal(t, got, reversed, "overlap must be symmetric")
	}
}

func TestSlotsOverlapInvalidClock(t *testing.T) {
	_, err := SlotsOverlap("9am", "11:00", "10:00", "12:00")
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("07:45")
	require.NoError(t, err)
	assert.Equal(t, 465, c.Minutes())
	assert.Equal(t, "07:45", c.String())

	c, err = ParseClock("18:30:00")
	require.NoError(t, err)
	assert.Equal(t, "18:30", c.String())

	for _, bad := range []string{"", "25:00", "12:60", "24:01", "1200"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateSlot(t *testing.T) {
	_, _, err := ValidateSlot("10:00", "12:00")
	assert.NoError(t, err)

	_, _, err = ValidateSlot("12:00", "12:00")
	assert.True(t, apperrors.IsValidation(err))

	_, _, err = ValidateSlot("xx", "12:00")
	assert.True(t, apperrors.IsValidation(err))
}

func TestAddMonthsClamped(t *testing.T) {
	jan31 := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), AddMonthsClamped(jan31, 1))

	jan1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), AddMonthsClamped(jan1, 1))
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), AddMonthsClamped(jan1, 12))
}

func TestDateOf(t *testing.T) {
	ts := time.Date(2025, 3, 9, 17, 4, 5, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), DateOf(ts))

	d, err := ParseDate("2025-03-09")
	require.NoError(t, err)
	assert.Equal(t, DateOf(ts), d)
}
