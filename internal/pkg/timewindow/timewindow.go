// Package timewindow holds the pure time arithmetic used by billing and
// scheduling: cleaning windows between guest stays, wall-clock slot parsing
// and the half-open overlap test used for double-booking detection.
package timewindow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/PropFox/internal/pkg/apperrors"
)

// CheckinBuffer is kept free before the next guest arrives.
const CheckinBuffer = 2 * time.Hour

const minutesPerDay = 24 * 60

// Window is a closed-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration is zero for empty or inverted windows.
func (w Window) Duration() time.Duration {
	if !w.End.After(w.Start) {
		return 0
	}
	return w.End.Sub(w.Start)
}

func (w Window) IsEmpty() bool {
	return w.Duration() == 0
}

// CleaningWindow derives the turnover window between a checkout and the next check-in.
func CleaningWindow(checkout, checkin time.Time) (Window, error) {
	if !checkin.After(checkout) {
		return Window{}, &apperrors.InvalidScheduleError{Checkout: checkout, Checkin: checkin}
	}
	return Window{Start: checkout, End: checkin.Add(-CheckinBuffer)}, nil
}

// Clock is a same-day wall-clock time stored as minutes since midnight.
type Clock int

// ParseClock accepts "HH:MM" or "HH:MM:SS" (seconds are dropped).
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if len(s) == 8 {
		s = s[:5]
	}
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid clock %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid clock %q: out of range", s)
	}
	return Clock(h*60 + m), nil
}

// ClockOf extracts the wall-clock part of t in its own location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) Minutes() int {
	return int(c)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// SlotsOverlap reports whether [startA,endA) and [startB,endB) intersect.
// Touching endpoints are not an overlap.
func SlotsOverlap(startA, endA, startB, endB string) (bool, error) {
	a1, err := ParseClock(startA)
	if err != nil {
		return false, err
	}
	a2, err := ParseClock(endA)
	if err != nil {
		return false, err
	}
	b1, err := ParseClock(startB)
	if err != nil {
		return false, err
	}
	b2, err := ParseClock(endB)
	if err != nil {
		return false, err
	}
	return ClocksOverlap(a1, a2, b1, b2), nil
}

func ClocksOverlap(startA, endA, startB, endB Clock) bool {
	return startA < endB && startB < endA
}

// ValidateSlot checks that start and end parse and start is before end.
func ValidateSlot(start, end string) (Clock, Clock, error) {
	s, err := ParseClock(start)
	if err != nil {
		return 0, 0, apperrors.FieldValidation("start_time", "%v", err)
	}
	e, err := ParseClock(end)
	if err != nil {
		return 0, 0, apperrors.FieldValidation("end_time", "%v", err)
	}
	if s >= e || e > minutesPerDay {
		return 0, 0, apperrors.FieldValidation("end_time", "slot %s-%s must end after it starts on the same day", start, end)
	}
	return s, e, nil
}

// DateOf truncates t to UTC midnight of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD into a UTC midnight date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// AddMonthsClamped adds n months without overflowing into the following month
// (Jan 31 + 1 month = Feb 28/29).
func AddMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
