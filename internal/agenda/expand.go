package agenda

import (
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"gymcal/internal/holiday"
	appLog "gymcal/internal/log"
	"gymcal/internal/model"
)

// ExpandSchedule turns a weekly schedule into dated training occurrences.
//
//   - The effective window is w intersected with [ValidFrom, ValidTo];
//     empty means no occurrences.
//   - Every day of the effective window is visited once, both ends
//     included. Holidays are skipped.
//   - Each slot of the day's weekday yields one occurrence. Gym names are
//     resolved by id; a deleted gym reads as model.UnknownName.
//
// Occurrence ids are fresh on every call.
func ExpandSchedule(s model.WeeklySchedule, groupName string, gyms []model.Gym, w model.Window) []model.Occurrence {
	eff := model.Window{
		From: model.MaxDate(w.From, s.ValidFrom),
		To:   model.MinDate(w.To, s.ValidTo),
	}
	if eff.Empty() {
		return nil
	}

	names := gymNames(gyms)
	var out []model.Occurrence
	for _, day := range trainingDays(eff) {
		for _, slot := range s.SlotsFor(day.Weekday()) {
			out = append(out, model.Occurrence{
				ID:        uuid.NewString(),
				SourceID:  s.ID,
				SlotID:    slot.ID,
				GroupID:   s.GroupID,
				GroupName: groupName,
				GymID:     slot.GymID,
				GymName:   nameOr(names, slot.GymID),
				Date:      day,
				StartTime: slot.StartTime,
				EndTime:   slot.EndTime,
			})
		}
	}
	return out
}

// ExpandMatch turns a match into its occurrences within w. Holidays are
// not excluded: a match is an explicit commitment.
func ExpandMatch(m model.Match, groupName string, gyms []model.Gym, w model.Window) []model.Occurrence {
	if w.Empty() {
		return nil
	}

	var dates []model.Date
	switch r := m.Recurrence.(type) {
	case model.OneOff:
		if w.Contains(r.Date) {
			dates = []model.Date{r.Date}
		}
	case model.Recurring:
		dates = recurringMatchDays(r, w)
	default:
		return nil
	}

	names := gymNames(gyms)
	out := make([]model.Occurrence, 0, len(dates))
	for _, d := range dates {
		out = append(out, model.Occurrence{
			ID:        uuid.NewString(),
			SourceID:  m.ID,
			GroupID:   m.GroupID,
			GroupName: groupName,
			GymID:     m.GymID,
			GymName:   nameOr(names, m.GymID),
			Date:      d,
			StartTime: m.StartTime,
			EndTime:   m.EndTime,
			IsMatch:   true,
			Opponent:  m.Opponent,
		})
	}
	return out
}

// trainingDays lists every non-holiday day of w. Holidays enter the rule
// set as exclusion dates.
func trainingDays(w model.Window) []model.Date {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: w.From.Time(),
		Until:   w.To.Time(),
	})
	if err != nil {
		appLog.Error("expand: failed to build daily rule", err, "window", w.String())
		return nil
	}

	var set rrule.Set
	set.RRule(r)
	for _, h := range holiday.Between(w) {
		set.ExDate(h.Date.Time())
	}
	return toDates(set.All())
}

// recurringMatchDays returns the days of w ∩ [ValidFrom, ValidTo] falling on
// DayOfWeek whose whole-week distance from ValidFrom is a multiple of the
// interval. The anchor is ValidFrom even when it is not on DayOfWeek.
func recurringMatchDays(r model.Recurring, w model.Window) []model.Date {
	eff := model.Window{
		From: model.MaxDate(w.From, r.ValidFrom),
		To:   model.MinDate(w.To, r.ValidTo),
	}
	if eff.Empty() {
		return nil
	}
	wd, ok := rruleWeekday(r.DayOfWeek)
	if !ok {
		return nil
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   eff.From.Time(),
		Until:     eff.To.Time(),
		Byweekday: []rrule.Weekday{wd},
	})
	if err != nil {
		appLog.Error("expand: failed to build weekly rule", err, "day", string(r.DayOfWeek), "window", eff.String())
		return nil
	}

	interval := r.Interval
	if interval <= 0 {
		interval = 1
	}

	var out []model.Date
	for _, d := range toDates(rule.All()) {
		if weeksSince(d, r.ValidFrom)%interval == 0 {
			out = append(out, d)
		}
	}
	return out
}

// weeksSince counts whole weeks between anchor and d, in either direction.
func weeksSince(d, anchor model.Date) int {
	days := d.DaysSince(anchor)
	if days < 0 {
		days = -days
	}
	return days / 7
}

func rruleWeekday(d model.Weekday) (rrule.Weekday, bool) {
	switch d {
	case model.Monday:
		return rrule.MO, true
	case model.Tuesday:
		return rrule.TU, true
	case model.Wednesday:
		return rrule.WE, true
	case model.Thursday:
		return rrule.TH, true
	case model.Friday:
		return rrule.FR, true
	case model.Saturday:
		return rrule.SA, true
	case model.Sunday:
		return rrule.SU, true
	}
	return rrule.Weekday{}, false
}

func toDates(ts []time.Time) []model.Date {
	out := make([]model.Date, 0, len(ts))
	for _, t := range ts {
		out = append(out, model.DateOf(t))
	}
	return out
}

func gymNames(gyms []model.Gym) map[string]string {
	m := make(map[string]string, len(gyms))
	for _, g := range gyms {
		m[g.ID] = g.Name
	}
	return m
}

func groupNames(groups []model.Group) map[string]string {
	m := make(map[string]string, len(groups))
	for _, g := range groups {
		m[g.ID] = g.Name
	}
	return m
}

func nameOr(names map[string]string, id string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return model.UnknownName
}
