// Package calendar does day-granularity date arithmetic. A "day" is a
// time.Time at midnight in its location; all scheduling works on days.
package calendar

import (
	"fmt"
	"time"
)

// Layout is the storage and wire format for days.
const Layout = "2006-01-02"

// Day truncates t to midnight in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays moves n calendar days from the day containing t.
// AddDate keeps midnight across DST changes where adding 24h would not.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from a to b.
// The result is negative when b is before a.
func DaysBetween(a, b time.Time) int {
	ad, bd := Day(a), Day(b)
	// Compare in UTC so a DST shift cannot shave an hour off the difference.
	au := time.Date(ad.Year(), ad.Month(), ad.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(bd.Year(), bd.Month(), bd.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}

// Before reports whether the day of a is strictly before the day of b.
func Before(a, b time.Time) bool {
	return DaysBetween(a, b) > 0
}

// OnOrBefore reports whether the day of a is the day of b or earlier.
func OnOrBefore(a, b time.Time) bool {
	return DaysBetween(a, b) >= 0
}

func Format(t time.Time) string {
	return t.Format(Layout)
}

// Parse reads a YYYY-MM-DD day in loc. A nil loc means time.Local.
func Parse(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(Layout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse day %q: %w", s, err)
	}
	return t, nil
}

// Clock supplies "today" at the caller's local day boundary.
type Clock interface {
	Today() time.Time
}

// SystemClock reads the wall clock in Location (time.Local when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Today() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return Day(time.Now().In(loc))
}

// FixedClock always reports the same day.
type FixedClock time.Time

func (c FixedClock) Today() time.Time {
	return Day(time.Time(c))
}
