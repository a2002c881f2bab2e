// Package timeutil holds the pure duration and calendar helpers shared by
// the lifecycle, report and export components.
package timeutil

import "time"

// ElapsedSeconds returns the whole seconds between startedAt and endedAt,
// or between startedAt and now for a running entry. Clock skew is clamped
// to zero instead of returning a negative duration.
func ElapsedSeconds(startedAt time.Time, endedAt *time.Time) int64 {
	if endedAt != nil {
		return ElapsedSecondsAt(startedAt, endedAt, time.Time{})
	}
	now := time.Now()
	return ElapsedSecondsAt(startedAt, nil, now)
}

// ElapsedSecondsAt is ElapsedSeconds with an explicit "now" so callers can
// evaluate open entries deterministically.
func ElapsedSecondsAt(startedAt time.Time, endedAt *time.Time, now time.Time) int64 {
	end := now
	if endedAt != nil {
		end = *endedAt
	}
	secs := int64(end.Sub(startedAt) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// DateKey returns the calendar date (YYYY-MM-DD) the instant falls on in
// loc. The key is fixed at read time with the consumer's offset, so the
// same stored instant may bucket differently for different viewers.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// MonthRange returns the half-open interval [first instant of the month,
// first instant of the next month) in loc.
func MonthRange(year, month int, loc *time.Location) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 1, 0)
}
