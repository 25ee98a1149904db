// Package interval provides the date-range arithmetic shared by coverage
// tracking, range recommendation and transfer matching.
//
// Day counts use floor semantics on elapsed time: DayDiff(2024-06-01, 2024-06-30)
// is 29, not 30. Chunk sizing and progress totals both use DayDiff, so ratios
// stay consistent even though the absolute count is one less than a calendar span.
package interval

import (
	"fmt"
	"time"
)

// Day is one day of elapsed time.
const Day = 24 * time.Hour

// DateLayout is the calendar-date format used in logs, CLI output and
// date-only API input.
const DateLayout = "2006-01-02"

// InstantLayout is the API wire format for range bounds. Account ranges carry
// the time of day of their first and last transactions, so bounds must round
// trip at that precision.
const InstantLayout = time.RFC3339

// DateRange is an inclusive [Start, End] interval.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// InvalidRangeError reports a range whose start is after its end.
// It signals a caller programming error, not a data condition.
type InvalidRangeError struct {
	Name  string
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	name := e.Name
	if name == "" {
		name = "date range"
	}
	return fmt.Sprintf("invalid %s: start %s is after end %s",
		name, e.Start.Format(DateLayout), e.End.Format(DateLayout))
}

// New builds a range and validates it.
func New(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// MustNew is New for literals in tests and fixtures. It panics on an invalid range.
func MustNew(start, end time.Time) DateRange {
	r, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

// Validate returns an *InvalidRangeError when Start is after End.
func (r DateRange) Validate() error {
	if r.Start.After(r.End) {
		return &InvalidRangeError{Start: r.Start, End: r.End}
	}
	return nil
}

// ValidateNamed is Validate with the range's role in the error message.
func (r DateRange) ValidateNamed(name string) error {
	if r.Start.After(r.End) {
		return &InvalidRangeError{Name: name, Start: r.Start, End: r.End}
	}
	return nil
}

// Days returns DayDiff(Start, End).
func (r DateRange) Days() int {
	return DayDiff(r.Start, r.End)
}

// Contains reports whether t falls inside the range, inclusive.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Equal compares instants, ignoring location.
func (r DateRange) Equal(o DateRange) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// DayDiff returns floor((b - a) / 24h). It is negative when b is before a.
func DayDiff(a, b time.Time) int {
	d := b.Sub(a)
	days := d / Day
	if d%Day != 0 && d < 0 {
		days--
	}
	return int(days)
}

// Days converts a day count into a duration.
func Days(n int) time.Duration {
	return time.Duration(n) * Day
}

// Clamp limits v to [lo, hi]. A zero lo or hi means no bound on that side.
func Clamp(v, lo, hi time.Time) time.Time {
	if !lo.IsZero() && v.Before(lo) {
		return lo
	}
	if !hi.IsZero() && v.After(hi) {
		return hi
	}
	return v
}

// Max returns the later instant.
func Max(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// Min returns the earlier instant.
func Min(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// Intersect returns the overlap of a and b, or false when they are disjoint.
func Intersect(a, b DateRange) (DateRange, bool) {
	start := Max(a.Start, b.Start)
	end := Min(a.End, b.End)
	if start.After(end) {
		return DateRange{}, false
	}
	return DateRange{Start: start, End: end}, true
}

// Hull returns the smallest range containing both a and b.
func Hull(a, b DateRange) DateRange {
	return DateRange{Start: Min(a.Start, b.Start), End: Max(a.End, b.End)}
}

// Union returns the hull of a and b when they overlap or are at most one day
// apart. Disjoint ranges with a wider gap return false.
func Union(a, b DateRange) (DateRange, bool) {
	if _, gap := Gap(a, b); gap {
		return DateRange{}, false
	}
	return Hull(a, b), true
}

// Gap returns the interval strictly between a and b when they are more than
// one day apart.
func Gap(a, b DateRange) (DateRange, bool) {
	first, second := a, b
	if second.Start.Before(first.Start) {
		first, second = second, first
	}
	if second.Start.Sub(first.End) <= Day {
		return DateRange{}, false
	}
	return DateRange{Start: first.End, End: second.Start}, true
}

// Covers reports whether outer fully contains inner.
func Covers(outer, inner DateRange) bool {
	return !outer.Start.After(inner.Start) && !outer.End.Before(inner.End)
}

// ParseDate parses a 2006-01-02 date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// EndOfDay returns the last second of t's UTC day, the finest precision
// transaction times are stored at.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(Day - time.Second)
}

// ParseBound parses a range bound given as an RFC3339 instant or a
// 2006-01-02 date. A bare date is midnight UTC, or the end of that day when
// end is true, so a date-only range covers both of its days in full.
func ParseBound(s string, end bool) (time.Time, error) {
	if t, err := time.Parse(InstantLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid range bound %q: want 2006-01-02 or RFC3339", s)
	}
	if end {
		return EndOfDay(t), nil
	}
	return t, nil
}

// Parse builds a validated range from two bounds accepted by ParseBound.
func Parse(start, end string) (DateRange, error) {
	s, err := ParseBound(start, false)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseBound(end, true)
	if err != nil {
		return DateRange{}, err
	}
	return New(s, e)
}

// Ptr returns a pointer to a copy of r.
func Ptr(r DateRange) *DateRange {
	return &r
}
