package techwatch

import (
	"fmt"
	"time"
)

// DateRange is an inclusive day-level window [start, end]. It is an
// immutable value object; equality is value equality.
type DateRange struct {
	start time.Time
	end   time.Time
}

// NewDateRange builds a range from two calendar dates. The time component
// of both arguments is discarded. start must not be after end.
func NewDateRange(start, end time.Time) (DateRange, error) {
	s, e := Day(start), Day(end)
	if s.After(e) {
		return DateRange{}, fmt.Errorf("%w: range start %s is after end %s",
			ErrValidation, s.Format("2006-01-02"), e.Format("2006-01-02"))
	}
	return DateRange{start: s, end: e}, nil
}

// Today returns the single-day range covering the current day.
func Today() DateRange {
	d := Day(time.Now())
	return DateRange{start: d, end: d}
}

// LastNDays returns the range covering the last n days ending today, so
// LastNDays(1) equals Today.
func LastNDays(n int) DateRange {
	return DaysBackFrom(time.Now(), n-1)
}

// DaysBackFrom returns the range [base - daysBack, base]. A daysBack of
// zero yields the single-day range of base.
func DaysBackFrom(base time.Time, daysBack int) DateRange {
	if daysBack < 0 {
		daysBack = 0
	}
	end := Day(base)
	return DateRange{start: end.AddDate(0, 0, -daysBack), end: end}
}

// Start returns the first day of the range.
func (r DateRange) Start() time.Time { return r.start }

// End returns the last day of the range.
func (r DateRange) End() time.Time { return r.end }

// IsZero reports whether the range is the zero value.
func (r DateRange) IsZero() bool { return r.start.IsZero() && r.end.IsZero() }

// Contains reports whether d falls inside the range, boundaries included.
func (r DateRange) Contains(d time.Time) bool {
	day := Day(d)
	if day.IsZero() {
		return false
	}
	return !day.Before(r.start) && !day.After(r.end)
}

// DurationDays returns the number of days covered, at least one.
func (r DateRange) DurationDays() int {
	return int(r.end.Sub(r.start).Hours()/24) + 1
}

// Overlaps reports whether the two ranges share at least one day.
func (r DateRange) Overlaps(other DateRange) bool {
	return !r.start.After(other.end) && !r.end.Before(other.start)
}

// String renders the range as "YYYY-MM-DD..YYYY-MM-DD".
func (r DateRange) String() string {
	return r.start.Format("2006-01-02") + ".." + r.end.Format("2006-01-02")
}
