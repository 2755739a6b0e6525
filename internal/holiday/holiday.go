// Package holiday knows the Italian national non-working days: ten fixed
// dates plus Easter Monday.
package holiday

import (
	"sort"
	"time"

	"gymcal/internal/model"
)

// Holiday is a named non-working day.
type Holiday struct {
	Date model.Date `json:"date"`
	Name string     `json:"name"`
}

type fixed struct {
	month time.Month
	day   int
	name  string
}

var fixedHolidays = []fixed{
	{time.January, 1, "Capodanno"},
	{time.January, 6, "Epifania"},
	{time.April, 25, "Festa della Liberazione"},
	{time.May, 1, "Festa del Lavoro"},
	{time.June, 2, "Festa della Repubblica"},
	{time.August, 15, "Ferragosto"},
	{time.November, 1, "Ognissanti"},
	{time.December, 8, "Immacolata Concezione"},
	{time.December, 25, "Natale"},
	{time.December, 26, "Santo Stefano"},
}

const easterMondayName = "Lunedì dell'Angelo"

// IsHoliday reports whether d is a fixed holiday or Easter Monday of d's year.
func IsHoliday(d model.Date) bool {
	_, ok := Name(d)
	return ok
}

// Name returns the holiday name for d.
func Name(d model.Date) (string, bool) {
	for _, f := range fixedHolidays {
		if d.Month() == f.month && d.Day() == f.day {
			return f.name, true
		}
	}
	if d.Equal(EasterMonday(d.Year())) {
		return easterMondayName, true
	}
	return "", false
}

// Easter returns Easter Sunday of the Gregorian year (Meeus/Jones/Butcher).
// Valid for year >= 1583.
func Easter(year int) model.Date {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return model.NewDate(year, time.Month(month), day)
}

// EasterMonday returns the day after Easter Sunday, the only movable
// national holiday.
func EasterMonday(year int) model.Date {
	return Easter(year).AddDays(1)
}

// ForYear returns the eleven holidays of year sorted by date.
func ForYear(year int) []Holiday {
	out := make([]Holiday, 0, len(fixedHolidays)+1)
	for _, f := range fixedHolidays {
		out = append(out, Holiday{Date: model.NewDate(year, f.month, f.day), Name: f.name})
	}
	out = append(out, Holiday{Date: EasterMonday(year), Name: easterMondayName})
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Between returns the holidays inside w in date order. An empty window
// yields nil.
func Between(w model.Window) []Holiday {
	if w.Empty() {
		return nil
	}
	var out []Holiday
	for y := w.From.Year(); y <= w.To.Year(); y++ {
		for _, h := range ForYear(y) {
			if w.Contains(h.Date) {
				out = append(out, h)
			}
		}
	}
	return out
}
