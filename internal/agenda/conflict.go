package agenda

import (
	"gymcal/internal/model"
)

// SlotQuery is a candidate weekly slot to check before it is committed.
type SlotQuery struct {
	Slot      model.TimeSlot
	Day       model.Weekday
	ValidFrom model.Date
	ValidTo   model.Date

	// ExcludeGroupID skips that group's schedule: a group never conflicts
	// with its own training, and a match may override its own group's slot.
	ExcludeGroupID string
}

// FindConflicts returns every slot of another group's schedule that the
// candidate would double-book: same gym, same weekday, overlapping validity
// (closed ranges) and overlapping times (touching slots are fine).
func FindConflicts(q SlotQuery, schedules []model.WeeklySchedule, gyms []model.Gym, groups []model.Group) []model.Conflict {
	gymByID := gymNames(gyms)
	groupByID := groupNames(groups)

	var out []model.Conflict
	for _, s := range schedules {
		if q.ExcludeGroupID != "" && s.GroupID == q.ExcludeGroupID {
			continue
		}
		if !DateRangeOverlap(q.ValidFrom, q.ValidTo, s.ValidFrom, s.ValidTo) {
			continue
		}
		for _, existing := range s.SlotsFor(q.Day) {
			if existing.GymID != q.Slot.GymID {
				continue
			}
			if !TimeOverlap(q.Slot.StartTime, q.Slot.EndTime, existing.StartTime, existing.EndTime) {
				continue
			}
			out = append(out, model.Conflict{
				GroupName: nameOr(groupByID, s.GroupID),
				GymName:   nameOr(gymByID, existing.GymID),
				TimeRange: existing.StartTime + "-" + existing.EndTime,
				DayOfWeek: q.Day.Label(),
			})
		}
	}
	return out
}

// FindAllConflicts checks every slot of a schedule about to be saved and
// groups the conflicts by weekday. Days without conflicts are absent.
func FindAllConflicts(s model.WeeklySchedule, schedules []model.WeeklySchedule, gyms []model.Gym, groups []model.Group, excludeGroupID string) map[model.Weekday][]model.Conflict {
	byDay := make(map[model.Weekday][]model.Conflict)
	for _, day := range model.Weekdays {
		var dayConflicts []model.Conflict
		for _, slot := range s.SlotsFor(day) {
			dayConflicts = append(dayConflicts, FindConflicts(SlotQuery{
				Slot:           slot,
				Day:            day,
				ValidFrom:      s.ValidFrom,
				ValidTo:        s.ValidTo,
				ExcludeGroupID: excludeGroupID,
			}, schedules, gyms, groups)...)
		}
		if len(dayConflicts) > 0 {
			byDay[day] = dayConflicts
		}
	}
	return byDay
}

// Flatten lists grouped conflicts Monday first.
func Flatten(byDay map[model.Weekday][]model.Conflict) []model.Conflict {
	var out []model.Conflict
	for _, day := range model.Weekdays {
		out = append(out, byDay[day]...)
	}
	return out
}

// MatchQuery derives the conflict query of a match. A one-off match checks
// its date's weekday over [date, date]; a recurring one checks its weekday
// over its validity. The match's own group is excluded since overlapping
// its own training is an override, not a double-booking.
func MatchQuery(m model.Match) SlotQuery {
	q := SlotQuery{
		Slot: model.TimeSlot{
			StartTime: m.StartTime,
			EndTime:   m.EndTime,
			GymID:     m.GymID,
		},
		ExcludeGroupID: m.GroupID,
	}
	switch r := m.Recurrence.(type) {
	case model.OneOff:
		q.Day = r.Date.Weekday()
		q.ValidFrom, q.ValidTo = r.Date, r.Date
	case model.Recurring:
		q.Day = r.DayOfWeek
		q.ValidFrom, q.ValidTo = r.ValidFrom, r.ValidTo
	}
	return q
}
