// Package dates converts instants and user supplied strings into calendar
// days. A day is always represented as midnight UTC of that date so that it
// round-trips through a Postgres DATE column unchanged.
package dates

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the wire format for calendar days.
const Layout = "2006-01-02"

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// Day returns the calendar day t falls on when observed in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is Day(now, loc).
func Today(now time.Time, loc *time.Location) time.Time {
	return Day(now, loc)
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseDayOrTimestamp accepts either a plain date or a timestamp. Timestamps
// with an explicit offset are converted into loc before the day is taken;
// timestamps without one are read as wall clock time in loc.
func ParseDayOrTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	if len(s) == len(Layout) {
		return ParseDay(s)
	}
	t, err := ParseTimestamp(s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t, loc), nil
}

// ParseTimestamp parses RFC 3339 or an offset-less local timestamp in loc.
// A bare date is accepted as midnight in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.ParseInLocation(Layout, s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// Format renders a day in wire format.
func Format(day time.Time) string {
	return day.Format(Layout)
}

// Date is a calendar day that marshals as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate wraps a day value.
func NewDate(t time.Time) Date {
	return Date{Time: Day(t, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(Layout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := ParseDayOrTimestamp(s, time.UTC)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}
