package finmath

import "time"

// DaysPerYear is the actual/365 denominator.
const DaysPerYear = 365

// civilDay strips the clock and zone so day counts ignore DST shifts.
func civilDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from a to b (negative if b is before a).
func DaysBetween(a, b time.Time) int {
	return int(civilDay(b).Sub(civilDay(a)).Hours() / 24)
}

// YearFrac returns (date2 - date1) in days divided by 365. ok is false when
// either date is missing.
func YearFrac(date1, date2 *time.Time) (float64, bool) {
	if date1 == nil || date2 == nil || date1.IsZero() || date2.IsZero() {
		return 0, false
	}
	return float64(DaysBetween(*date1, *date2)) / DaysPerYear, true
}

// EndOfYear returns December 31 of year, at the end of the day.
func EndOfYear(year int) time.Time {
	return time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)
}

// AddMonths adds n months, clamping to the last day of the target month
// (January 31 plus one month is February 28 or 29).
func AddMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, n, 0)
	lastDay := target.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
