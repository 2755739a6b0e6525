package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	appLog "gymcal/internal/log"
	"gymcal/internal/model"
)

// Fixtures is a set of records written together by SeedIfEmpty.
type Fixtures struct {
	Gyms    []model.Gym
	Groups  []model.Group
	Matches []model.Match
}

// DefaultFixtures returns the demo club: three gyms, five volleyball groups
// and five matches. Schedules run from the first day of today's month to the
// last day of the fifth following month.
func DefaultFixtures(today model.Date) Fixtures {
	marconi := model.Gym{ID: uuid.NewString(), Name: "Palestra Comunale Marconi", Address: "Via Marconi 15, Milano"}
	palaVerde := model.Gym{ID: uuid.NewString(), Name: "PalaVerde", Address: "Viale dello Sport 8, Milano"}
	sanSiro := model.Gym{ID: uuid.NewString(), Name: "Palazzetto San Siro", Address: "Piazza San Siro 3, Milano"}

	validFrom := model.NewDate(today.Year(), today.Month(), 1)
	validTo := model.NewDate(today.Year(), today.Month()+6, 0)

	slot := func(gym model.Gym, start, end string) model.TimeSlot {
		return model.TimeSlot{ID: uuid.NewString(), GymID: gym.ID, StartTime: start, EndTime: end}
	}
	group := func(name string, days map[model.Weekday][]model.TimeSlot) model.Group {
		g := model.Group{ID: uuid.NewString(), Name: name, SportType: "Pallavolo"}
		s := &model.WeeklySchedule{ID: uuid.NewString(), GroupID: g.ID, ValidFrom: validFrom, ValidTo: validTo}
		for _, d := range model.Weekdays {
			s.SetSlots(d, days[d])
		}
		g.Schedule = s
		return g
	}

	under14 := group("Under 14", map[model.Weekday][]model.TimeSlot{
		model.Monday:    {slot(marconi, "17:00", "19:00")},
		model.Wednesday: {slot(marconi, "17:00", "19:00")},
		model.Friday:    {slot(palaVerde, "17:30", "19:30")},
	})
	under16 := group("Under 16", map[model.Weekday][]model.TimeSlot{
		model.Tuesday:  {slot(palaVerde, "18:00", "20:00")},
		model.Thursday: {slot(palaVerde, "18:00", "20:00")},
		model.Saturday: {slot(marconi, "10:00", "12:00")},
	})
	under18 := group("Under 18", map[model.Weekday][]model.TimeSlot{
		model.Monday:    {slot(sanSiro, "19:30", "21:30")},
		model.Wednesday: {slot(sanSiro, "19:30", "21:30")},
		model.Friday:    {slot(sanSiro, "19:00", "21:00")},
	})
	senior := group("Serie C Maschile", map[model.Weekday][]model.TimeSlot{
		model.Tuesday: {
			slot(sanSiro, "09:00", "11:00"),
			slot(sanSiro, "20:00", "22:00"),
		},
		model.Thursday: {slot(sanSiro, "20:00", "22:00")},
	})
	femminile := group("Serie D Femminile", map[model.Weekday][]model.TimeSlot{
		model.Monday:    {slot(palaVerde, "20:00", "22:00")},
		model.Wednesday: {slot(palaVerde, "20:00", "22:00")},
		model.Friday:    {slot(marconi, "20:00", "22:00")},
	})

	nextSaturday := today.AddDays(daysUntil(today.Weekday().TimeWeekday(), time.Saturday))
	nextSunday := nextSaturday.AddDays(1)

	recurring := func(g model.Group, gym model.Gym, day model.Weekday, interval int, start, end string) model.Match {
		return model.Match{
			ID: uuid.NewString(), GroupID: g.ID, GymID: gym.ID,
			StartTime: start, EndTime: end,
			Recurrence: model.Recurring{DayOfWeek: day, ValidFrom: validFrom, ValidTo: validTo, Interval: interval},
		}
	}
	oneOff := func(g model.Group, gym model.Gym, date model.Date, start, end string) model.Match {
		return model.Match{
			ID: uuid.NewString(), GroupID: g.ID, GymID: gym.ID,
			StartTime: start, EndTime: end,
			Recurrence: model.OneOff{Date: date},
		}
	}

	return Fixtures{
		Gyms:   []model.Gym{marconi, palaVerde, sanSiro},
		Groups: []model.Group{under14, under16, under18, senior, femminile},
		Matches: []model.Match{
			recurring(under14, marconi, model.Saturday, 2, "15:00", "17:00"),
			recurring(senior, sanSiro, model.Sunday, 1, "18:00", "20:00"),
			recurring(femminile, palaVerde, model.Saturday, 2, "17:00", "19:00"),
			oneOff(under16, palaVerde, nextSaturday, "14:00", "16:00"),
			oneOff(under18, sanSiro, nextSunday, "16:00", "18:00"),
		},
	}
}

// daysUntil counts days from `from` to the next `to`, 1..7. The same weekday
// yields a full week.
func daysUntil(from, to time.Weekday) int {
	n := (int(to) - int(from) + 7) % 7
	if n == 0 {
		return 7
	}
	return n
}

// SeedIfEmpty writes fx when the store holds no gyms, groups or matches.
// It reports whether anything was written.
func SeedIfEmpty(ctx context.Context, st Store, fx Fixtures) (bool, error) {
	gyms, err := st.ListGyms(ctx)
	if err != nil {
		return false, err
	}
	groups, err := st.ListGroups(ctx)
	if err != nil {
		return false, err
	}
	matches, err := st.ListMatches(ctx)
	if err != nil {
		return false, err
	}
	if len(gyms) > 0 || len(groups) > 0 || len(matches) > 0 {
		return false, nil
	}

	for _, g := range fx.Gyms {
		if _, err := st.AddGym(ctx, g); err != nil {
			return false, fmt.Errorf("seed gym %q: %w", g.Name, err)
		}
	}
	for _, g := range fx.Groups {
		if _, err := st.AddGroup(ctx, g); err != nil {
			return false, fmt.Errorf("seed group %q: %w", g.Name, err)
		}
	}
	for _, m := range fx.Matches {
		if _, err := st.AddMatch(ctx, m); err != nil {
			return false, fmt.Errorf("seed match %s: %w", m.ID, err)
		}
	}

	appLog.Info("store seeded",
		"gyms", len(fx.Gyms),
		"groups", len(fx.Groups),
		"matches", len(fx.Matches),
	)
	return true, nil
}
