package agenda

import (
	"time"

	"gymcal/internal/model"
)

// DayWindow covers a single day.
func DayWindow(d model.Date) model.Window {
	return model.Window{From: d, To: d}
}

// StartOfWeek returns the first day of d's week for the given week start.
func StartOfWeek(d model.Date, weekStart time.Weekday) model.Date {
	offset := (int(d.Weekday().TimeWeekday()) - int(weekStart) + 7) % 7
	return d.AddDays(-offset)
}

// MonthWindow covers the full weeks spanning d's month, the grid of a
// month calendar view.
func MonthWindow(d model.Date, weekStart time.Weekday) model.Window {
	first := model.NewDate(d.Year(), d.Month(), 1)
	last := model.NewDate(d.Year(), d.Month()+1, 0)
	return model.Window{
		From: StartOfWeek(first, weekStart),
		To:   StartOfWeek(last, weekStart).AddDays(6),
	}
}

// AgendaWindow covers two weeks starting at the beginning of d's week.
func AgendaWindow(d model.Date, weekStart time.Weekday) model.Window {
	start := StartOfWeek(d, weekStart)
	return model.Window{From: start, To: start.AddDays(13)}
}

// DayBucket holds one day's occurrences.
type DayBucket struct {
	Date        model.Date         `json:"date"`
	Holiday     string             `json:"holiday,omitempty"`
	Occurrences []model.Occurrence `json:"occurrences"`
}

// GroupByDate buckets sorted occurrences by day, one bucket per day of w
// (empty days included) so a calendar grid can be drawn directly.
func GroupByDate(occ []model.Occurrence, w model.Window, holidayName func(model.Date) (string, bool)) []DayBucket {
	if w.Empty() {
		return nil
	}
	byDate := make(map[string][]model.Occurrence)
	for _, o := range occ {
		k := o.Date.String()
		byDate[k] = append(byDate[k], o)
	}

	out := make([]DayBucket, 0, w.Days())
	for d := w.From; !d.After(w.To); d = d.AddDays(1) {
		b := DayBucket{Date: d, Occurrences: byDate[d.String()]}
		if b.Occurrences == nil {
			b.Occurrences = []model.Occurrence{}
		}
		if holidayName != nil {
			if name, ok := holidayName(d); ok {
				b.Holiday = name
			}
		}
		out = append(out, b)
	}
	return out
}

// GymBucket holds one gym's occurrences.
type GymBucket struct {
	Gym         model.Gym          `json:"gym"`
	Occurrences []model.Occurrence `json:"occurrences"`
}

// GroupByGym buckets occurrences per gym, in the order gyms are given.
// Occurrences at gyms not in the list are left out.
func GroupByGym(occ []model.Occurrence, gyms []model.Gym) []GymBucket {
	out := make([]GymBucket, 0, len(gyms))
	idx := make(map[string]int, len(gyms))
	for i, g := range gyms {
		idx[g.ID] = i
		out = append(out, GymBucket{Gym: g, Occurrences: []model.Occurrence{}})
	}
	for _, o := range occ {
		if i, ok := idx[o.GymID]; ok {
			out[i].Occurrences = append(out[i].Occurrences, o)
		}
	}
	return out
}
