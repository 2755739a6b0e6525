package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical text form of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time of day or zone. The zero value is
// IsZero; all valid Dates are stored at UTC midnight so that day arithmetic
// never crosses a DST boundary.
type Date struct {
	t time.Time
}

// NewDate builds a Date, normalizing overflow the way time.Date does
// (e.g. day 0 is the last day of the previous month).
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses the canonical YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// MustParseDate is ParseDate for literals; it panics on bad input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() Weekday      { return WeekdayOf(d.t.Weekday()) }
func (d Date) AddDays(n int) Date    { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) Before(o Date) bool    { return d.t.Before(o.t) }
func (d Date) After(o Date) bool     { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool     { return d.t.Equal(o.t) }
func (d Date) Compare(o Date) int    { return d.t.Compare(o.t) }
func (d Date) String() string        { return d.t.Format(DateLayout) }
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// Time returns the Date as UTC midnight.
func (d Date) Time() time.Time { return d.t }

// DaysSince returns the number of whole days from o to d (negative if d is
// earlier). It works on Unix seconds since time.Duration saturates after
// about 292 years.
func (d Date) DaysSince(o Date) int {
	return int((d.t.Unix() - o.t.Unix()) / 86400)
}

// MinDate and MaxDate return the earlier / later of two dates.
func MinDate(a, b Date) Date {
	if b.Before(a) {
		return b
	}
	return a
}

func MaxDate(a, b Date) Date {
	if b.After(a) {
		return b
	}
	return a
}

func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(strings.TrimSpace(string(b))) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Window is an inclusive range of calendar days.
type Window struct {
	From Date `json:"from"`
	To   Date `json:"to"`
}

// Empty reports whether the window contains no day (To before From).
func (w Window) Empty() bool { return w.To.Before(w.From) }

func (w Window) Contains(d Date) bool {
	return !d.Before(w.From) && !d.After(w.To)
}

// Days returns the number of days in the window, 0 when empty.
func (w Window) Days() int {
	if w.Empty() {
		return 0
	}
	return w.To.DaysSince(w.From) + 1
}

func (w Window) String() string { return w.From.String() + ".." + w.To.String() }
