package agenda

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gymcal/internal/model"
)

var (
	gymA = model.Gym{ID: "gym-a", Name: "Gym A"}
	gymB = model.Gym{ID: "gym-b", Name: "Gym B"}
)

func d(s string) model.Date { return model.MustParseDate(s) }

func win(from, to string) model.Window { return model.Window{From: d(from), To: d(to)} }

func slot(id, start, end, gymID string) model.TimeSlot {
	return model.TimeSlot{ID: id, StartTime: start, EndTime: end, GymID: gymID}
}

func schedule(groupID, from, to string, day model.Weekday, slots ...model.TimeSlot) model.WeeklySchedule {
	s := model.WeeklySchedule{ID: "sch-" + groupID, GroupID: groupID, ValidFrom: d(from), ValidTo: d(to)}
	s.SetSlots(day, slots)
	return s
}

func dates(occ []model.Occurrence) []string {
	out := make([]string, 0, len(occ))
	for _, o := range occ {
		out = append(out, o.Date.String())
	}
	return out
}

// withoutIDs blanks the per-call ids so two expansions can be compared.
func withoutIDs(occ []model.Occurrence) []model.Occurrence {
	out := make([]model.Occurrence, len(occ))
	for i, o := range occ {
		o.ID = ""
		out[i] = o
	}
	return out
}

func TestTimeOverlap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		s1, e1, s2, e2 string
		want           bool
	}{
		{"touching end to start", "09:00", "10:00", "10:00", "11:00", false},
		{"one minute overlap", "09:00", "10:01", "10:00", "11:00", true},
		{"touching start to end", "10:00", "11:00", "09:00", "10:00", false},
		{"contained", "16:00", "18:00", "16:30", "17:00", true},
		{"identical", "17:00", "19:00", "17:00", "19:00", true},
		{"disjoint", "08:00", "09:00", "20:00", "22:00", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, TimeOverlap(tt.s1, tt.e1, tt.s2, tt.e2))
		})
	}
}

func TestDateRangeOverlap(t *testing.T) {
	t.Parallel()

	require.True(t, DateRangeOverlap(d("2025-01-01"), d("2025-01-10"), d("2025-01-10"), d("2025-02-01")), "touching ranges overlap")
	require.True(t, DateRangeOverlap(d("2025-01-10"), d("2025-02-01"), d("2025-01-01"), d("2025-01-10")))
	require.True(t, DateRangeOverlap(d("2025-01-01"), d("2025-12-31"), d("2025-06-01"), d("2025-06-01")))
	require.False(t, DateRangeOverlap(d("2025-01-01"), d("2025-01-09"), d("2025-01-10"), d("2025-02-01")))
}

func TestMinutes(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, Minutes("00:00"))
	require.Equal(t, 17*60+30, Minutes("17:30"))
	require.Equal(t, 23*60+59, Minutes(" 23:59 "))
}

func TestExpandScheduleClipsToValidity(t *testing.T) {
	t.Parallel()

	// Validity Tue 2025-11-04 .. Mon 2025-11-10, window starts on a Sunday.
	s := schedule("g1", "2025-11-04", "2025-11-10", model.Monday, slot("s1", "10:00", "11:00", gymA.ID))

	occ := ExpandSchedule(s, "Test Group", []model.Gym{gymA}, win("2025-11-02", "2025-11-12"))
	require.Len(t, occ, 1)

	o := occ[0]
	require.Equal(t, "2025-11-10", o.Date.String())
	require.Equal(t, model.Monday, o.Date.Weekday())
	require.Equal(t, "g1", o.GroupID)
	require.Equal(t, "Test Group", o.GroupName)
	require.Equal(t, "Gym A", o.GymName)
	require.Equal(t, "sch-g1", o.SourceID)
	require.False(t, o.IsMatch)
	require.NotEmpty(t, o.ID)
}

func TestExpandScheduleSkipsHolidays(t *testing.T) {
	t.Parallel()

	// Mondays: 2023-12-25 Christmas, 2024-01-01 New Year, 2024-01-08 regular.
	s := schedule("g1", "2023-01-01", "2024-12-31", model.Monday, slot("s1", "17:00", "19:00", gymA.ID))

	occ := ExpandSchedule(s, "G", []model.Gym{gymA}, win("2023-12-25", "2024-01-08"))
	require.Equal(t, []string{"2024-01-08"}, dates(occ))
}

func TestExpandScheduleSkipsEasterMonday(t *testing.T) {
	t.Parallel()

	s := schedule("g1", "2025-01-01", "2025-12-31", model.Monday, slot("s1", "17:00", "19:00", gymA.ID))

	occ := ExpandSchedule(s, "G", []model.Gym{gymA}, win("2025-04-14", "2025-04-28"))
	require.Equal(t, []string{"2025-04-14", "2025-04-28"}, dates(occ))
}

func TestExpandScheduleEveryDayAndSlot(t *testing.T) {
	t.Parallel()

	s := schedule("g1", "2025-11-01", "2025-11-30", model.Tuesday,
		slot("am", "09:00", "11:00", gymA.ID),
		slot("pm", "20:00", "22:00", gymB.ID),
	)
	s.SetSlots(model.Thursday, []model.TimeSlot{slot("th", "20:00", "22:00", gymB.ID)})

	occ := ExpandSchedule(s, "Senior", []model.Gym{gymA, gymB}, win("2025-11-03", "2025-11-09"))
	require.Len(t, occ, 3)
	require.Equal(t, []string{"2025-11-04", "2025-11-04", "2025-11-06"}, dates(occ))
	require.Equal(t, "Gym A", occ[0].GymName)
	require.Equal(t, "Gym B", occ[1].GymName)

	seen := map[string]bool{}
	for _, o := range occ {
		require.False(t, seen[o.ID], "ids must be unique")
		seen[o.ID] = true
	}
}

func TestExpandScheduleUnknownGym(t *testing.T) {
	t.Parallel()

	s := schedule("g1", "2025-11-01", "2025-11-30", model.Monday, slot("s1", "10:00", "11:00", "deleted-gym"))

	occ := ExpandSchedule(s, "G", []model.Gym{gymA}, win("2025-11-03", "2025-11-03"))
	require.Len(t, occ, 1)
	require.Equal(t, model.UnknownName, occ[0].GymName)
	require.Equal(t, "deleted-gym", occ[0].GymID)
}

func TestExpandScheduleEmptyWindows(t *testing.T) {
	t.Parallel()

	s := schedule("g1", "2025-11-01", "2025-11-30", model.Monday, slot("s1", "10:00", "11:00", gymA.ID))

	require.Empty(t, ExpandSchedule(s, "G", nil, win("2025-12-01", "2025-12-31")), "window after validity")
	require.Empty(t, ExpandSchedule(s, "G", nil, win("2025-11-10", "2025-11-03")), "inverted window")
}

func TestExpandMatchOneOff(t *testing.T) {
	t.Parallel()

	m := model.Match{
		ID: "m1", GroupID: "g1", GymID: gymA.ID, Opponent: "Volley Monza",
		StartTime: "18:00", EndTime: "20:00",
		Recurrence: model.OneOff{Date: d("2025-12-15")},
	}

	occ := ExpandMatch(m, "G", []model.Gym{gymA}, win("2025-12-15", "2025-12-15"))
	require.Len(t, occ, 1)
	require.True(t, occ[0].IsMatch)
	require.Equal(t, "Volley Monza", occ[0].Opponent)
	require.Equal(t, "m1", occ[0].SourceID)
	require.Equal(t, "Gym A", occ[0].GymName)

	require.Empty(t, ExpandMatch(m, "G", nil, win("2025-12-16", "2025-12-31")))
	require.Empty(t, ExpandMatch(m, "G", nil, win("2025-12-01", "2025-12-14")))
}

func TestExpandMatchRecurringInterval(t *testing.T) {
	t.Parallel()

	// Anchor 2025-12-06 is a Saturday; every other Saturday from there.
	m := model.Match{
		ID: "m1", GroupID: "g1", GymID: gymA.ID, StartTime: "15:00", EndTime: "17:00",
		Recurrence: model.Recurring{
			DayOfWeek: model.Saturday,
			ValidFrom: d("2025-12-06"),
			ValidTo:   d("2026-02-28"),
			Interval:  2,
		},
	}

	occ := ExpandMatch(m, "G", nil, win("2025-12-01", "2026-01-31"))
	require.Equal(t, []string{"2025-12-06", "2025-12-20", "2026-01-03", "2026-01-17", "2026-01-31"}, dates(occ))
	for _, o := range occ {
		require.Equal(t, model.Saturday, o.Date.Weekday())
		require.Zero(t, weeksSince(o.Date, d("2025-12-06"))%2)
	}
}

func TestExpandMatchRecurringAnchorIsValidFromNotWindow(t *testing.T) {
	t.Parallel()

	m := model.Match{
		ID: "m1", GroupID: "g1", GymID: gymA.ID, StartTime: "15:00", EndTime: "17:00",
		Recurrence: model.Recurring{DayOfWeek: model.Saturday, ValidFrom: d("2025-12-06"), ValidTo: d("2026-02-28"), Interval: 2},
	}

	// The window opens on week 1 of the series; the next occurrence is week 2.
	occ := ExpandMatch(m, "G", nil, win("2025-12-13", "2025-12-31"))
	require.Equal(t, []string{"2025-12-20"}, dates(occ))
}

func TestExpandMatchRecurringAnchorOffWeekday(t *testing.T) {
	t.Parallel()

	// Anchor on a Thursday: the Saturday two days later is week 0.
	m := model.Match{
		ID: "m1", GroupID: "g1", GymID: gymA.ID, StartTime: "15:00", EndTime: "17:00",
		Recurrence: model.Recurring{DayOfWeek: model.Saturday, ValidFrom: d("2025-12-04"), ValidTo: d("2026-01-10"), Interval: 2},
	}

	occ := ExpandMatch(m, "G", nil, win("2025-12-01", "2026-01-31"))
	require.Equal(t, []string{"2025-12-06", "2025-12-20", "2026-01-03"}, dates(occ))
}

func TestWeeksSinceDistantAnchor(t *testing.T) {
	t.Parallel()

	// 118706 days apart, past the range of time.Duration.
	require.Equal(t, 16958, weeksSince(d("2025-01-04"), d("1700-01-02")))
	require.Equal(t, 16958, weeksSince(d("1700-01-02"), d("2025-01-04")))
}

func TestExpandMatchIgnoresHolidays(t *testing.T) {
	t.Parallel()

	m := model.Match{
		ID: "m1", GroupID: "g1", GymID: gymA.ID, StartTime: "10:00", EndTime: "12:00",
		Recurrence: model.Recurring{DayOfWeek: model.Monday, ValidFrom: d("2025-12-01"), ValidTo: d("2025-12-31"), Interval: 1},
	}

	occ := ExpandMatch(m, "G", nil, win("2025-12-08", "2025-12-08"))
	require.Equal(t, []string{"2025-12-08"}, dates(occ), "Immacolata still hosts the match")
}

// A non-positive interval is outside the contract. The current behavior
// (weekly) is pinned here only so a change is noticed, not as a guarantee.
func TestExpandMatchNonPositiveIntervalGarbageIn(t *testing.T) {
	t.Parallel()

	m := model.Match{
		ID: "m1", GroupID: "g1", GymID: gymA.ID, StartTime: "10:00", EndTime: "12:00",
		Recurrence: model.Recurring{DayOfWeek: model.Sunday, ValidFrom: d("2025-11-30"), ValidTo: d("2025-12-31"), Interval: 0},
	}
	require.NotPanics(t, func() {
		require.Len(t, ExpandMatch(m, "G", nil, win("2025-12-01", "2025-12-31")), 4)
	})
}

func TestExpandMatchWithoutRecurrence(t *testing.T) {
	t.Parallel()

	require.Empty(t, ExpandMatch(model.Match{ID: "m"}, "G", nil, win("2025-12-01", "2025-12-31")))
}

func overrideFixture() agendaFixture {
	g := model.Group{ID: "g", Name: "Group G"}
	h := model.Group{ID: "h", Name: "Group H"}
	sg := schedule("g", "2025-12-01", "2025-12-31", model.Monday, slot("sg", "17:00", "19:00", gymA.ID))
	sh := schedule("h", "2025-12-01", "2025-12-31", model.Monday, slot("sh", "17:00", "19:00", gymB.ID))
	g.Schedule, h.Schedule = &sg, &sh

	match := model.Match{
		ID: "m", GroupID: "g", GymID: gymA.ID, Opponent: "Rivals",
		StartTime: "18:00", EndTime: "20:00",
		Recurrence: model.OneOff{Date: d("2025-12-15")},
	}
	return agendaFixture{
		in: Input{
			Schedules: SchedulesOf([]model.Group{g, h}),
			Groups:    []model.Group{g, h},
			Gyms:      []model.Gym{gymA, gymB},
			Matches:   []model.Match{match},
		},
	}
}

type agendaFixture struct {
	in Input
}

func TestMaterializeOverrideScenario(t *testing.T) {
	t.Parallel()
	fx := overrideFixture()

	occ := Materialize(fx.in, win("2025-12-15", "2025-12-15"))
	require.Len(t, occ, 2)

	var matches, trainings []model.Occurrence
	for _, o := range occ {
		if o.IsMatch {
			matches = append(matches, o)
		} else {
			trainings = append(trainings, o)
		}
	}
	require.Len(t, matches, 1)
	require.Equal(t, "g", matches[0].GroupID)
	require.Equal(t, "18:00", matches[0].StartTime)

	// Group G's training is superseded; Group H trains as usual.
	require.Len(t, trainings, 1)
	require.Equal(t, "h", trainings[0].GroupID)
}

func TestMaterializeOverrideOnlyOnMatchDay(t *testing.T) {
	t.Parallel()
	fx := overrideFixture()
	fx.in.Schedules = fx.in.Schedules[:1]

	// Mondays: 1st, 8th (holiday), 15th (match), 22nd, 29th.
	occ := Materialize(fx.in, win("2025-12-01", "2025-12-31"))
	require.Equal(t, []string{"2025-12-01", "2025-12-15", "2025-12-22", "2025-12-29"}, dates(occ))
	require.True(t, occ[1].IsMatch)
}

func TestMaterializeTouchingMatchKeepsTraining(t *testing.T) {
	t.Parallel()
	fx := overrideFixture()
	fx.in.Matches[0].StartTime, fx.in.Matches[0].EndTime = "19:00", "21:00"

	occ := Materialize(fx.in, win("2025-12-15", "2025-12-15"))
	require.Len(t, occ, 3)
	require.False(t, occ[0].IsMatch)
	require.False(t, occ[1].IsMatch)
	require.True(t, occ[2].IsMatch, "19:00 sorts after 17:00")
}

func TestMaterializeDropsDeletedGroups(t *testing.T) {
	t.Parallel()
	fx := overrideFixture()
	fx.in.Groups = fx.in.Groups[1:] // delete Group G

	occ := Materialize(fx.in, win("2025-12-15", "2025-12-15"))
	require.Len(t, occ, 1)
	require.Equal(t, "h", occ[0].GroupID)
}

func TestMaterializeHolidayExcludesTrainingNotMatch(t *testing.T) {
	t.Parallel()

	g := model.Group{ID: "g", Name: "G"}
	s := schedule("g", "2023-09-01", "2024-06-30", model.Monday, slot("s", "17:00", "19:00", gymA.ID))
	m := model.Match{
		ID: "m", GroupID: "g", GymID: gymA.ID, StartTime: "10:00", EndTime: "12:00",
		Recurrence: model.Recurring{DayOfWeek: model.Monday, ValidFrom: d("2023-09-04"), ValidTo: d("2024-06-30"), Interval: 1},
	}
	in := Input{Schedules: []model.WeeklySchedule{s}, Groups: []model.Group{g}, Gyms: []model.Gym{gymA}, Matches: []model.Match{m}}

	occ := Materialize(in, win("2024-01-01", "2024-01-01"))
	require.Len(t, occ, 1)
	require.True(t, occ[0].IsMatch)
}

func TestMaterializeIdempotentAndContained(t *testing.T) {
	t.Parallel()
	fx := overrideFixture()
	w := win("2025-11-20", "2026-01-10")

	first := Materialize(fx.in, w)
	second := Materialize(fx.in, w)
	require.NotEmpty(t, first)
	require.Equal(t, withoutIDs(first), withoutIDs(second))

	for i, o := range first {
		require.True(t, w.Contains(o.Date), o.Date.String())
		if i > 0 {
			prev := first[i-1]
			require.True(t, prev.Date.String() < o.Date.String() ||
				(prev.Date.Equal(o.Date) && prev.StartTime <= o.StartTime))
		}
	}
}

func TestMaterializeEmptyWindow(t *testing.T) {
	t.Parallel()
	fx := overrideFixture()

	occ := Materialize(fx.in, win("2025-12-31", "2025-12-01"))
	require.NotNil(t, occ)
	require.Empty(t, occ)
}

func conflictFixture() ([]model.WeeklySchedule, []model.Gym, []model.Group) {
	x := schedule("x", "2025-12-01", "2025-12-30", model.Wednesday, slot("sx", "16:00", "18:00", gymA.ID))
	groups := []model.Group{{ID: "x", Name: "Group X", Schedule: &x}, {ID: "y", Name: "Group Y"}}
	return SchedulesOf(groups), []model.Gym{gymA, gymB}, groups
}

func TestFindConflictsScenario(t *testing.T) {
	t.Parallel()
	schedules, gyms, groups := conflictFixture()

	got := FindConflicts(SlotQuery{
		Slot:           slot("new", "17:00", "19:00", gymA.ID),
		Day:            model.Wednesday,
		ValidFrom:      d("2025-12-01"),
		ValidTo:        d("2025-12-30"),
		ExcludeGroupID: "y",
	}, schedules, gyms, groups)

	require.Equal(t, []model.Conflict{{
		GroupName: "Group X",
		GymName:   "Gym A",
		TimeRange: "16:00-18:00",
		DayOfWeek: "Wednesday",
	}}, got)
}

func TestFindConflictsSelfExclusion(t *testing.T) {
	t.Parallel()
	schedules, gyms, groups := conflictFixture()

	got := FindConflicts(SlotQuery{
		Slot:           slot("edited", "16:00", "18:00", gymA.ID),
		Day:            model.Wednesday,
		ValidFrom:      d("2025-12-01"),
		ValidTo:        d("2025-12-30"),
		ExcludeGroupID: "x",
	}, schedules, gyms, groups)
	require.Empty(t, got)
}

func TestFindConflictsNoMatch(t *testing.T) {
	t.Parallel()
	schedules, gyms, groups := conflictFixture()

	base := SlotQuery{
		Slot:      slot("new", "17:00", "19:00", gymA.ID),
		Day:       model.Wednesday,
		ValidFrom: d("2025-12-01"),
		ValidTo:   d("2025-12-30"),
	}

	tests := map[string]func(q *SlotQuery){
		"touching times":    func(q *SlotQuery) { q.Slot.StartTime, q.Slot.EndTime = "18:00", "20:00" },
		"other gym":         func(q *SlotQuery) { q.Slot.GymID = gymB.ID },
		"other weekday":     func(q *SlotQuery) { q.Day = model.Thursday },
		"disjoint validity": func(q *SlotQuery) { q.ValidFrom, q.ValidTo = d("2025-12-31"), d("2026-03-31") },
	}
	for name, mutate := range tests {
		mutate := mutate
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			q := base
			mutate(&q)
			require.Empty(t, FindConflicts(q, schedules, gyms, groups))
		})
	}
}

func TestFindConflictsValidityTouchingBoundary(t *testing.T) {
	t.Parallel()
	schedules, gyms, groups := conflictFixture()

	got := FindConflicts(SlotQuery{
		Slot:      slot("new", "17:00", "19:00", gymA.ID),
		Day:       model.Wednesday,
		ValidFrom: d("2025-12-30"),
		ValidTo:   d("2026-03-31"),
	}, schedules, gyms, groups)
	require.Len(t, got, 1)
}

func TestFindConflictsUnknownNames(t *testing.T) {
	t.Parallel()
	schedules, _, _ := conflictFixture()

	got := FindConflicts(SlotQuery{
		Slot:      slot("new", "17:00", "19:00", gymA.ID),
		Day:       model.Wednesday,
		ValidFrom: d("2025-12-01"),
		ValidTo:   d("2025-12-30"),
	}, schedules, nil, nil)
	require.Len(t, got, 1)
	require.Equal(t, model.UnknownName, got[0].GroupName)
	require.Equal(t, model.UnknownName, got[0].GymName)
}

func TestFindAllConflictsGroupsByDay(t *testing.T) {
	t.Parallel()
	schedules, gyms, groups := conflictFixture()

	x := schedules[0]
	x.SetSlots(model.Friday, []model.TimeSlot{slot("fx", "20:00", "22:00", gymB.ID)})
	schedules = []model.WeeklySchedule{x}

	candidate := model.WeeklySchedule{ID: "sy", GroupID: "y", ValidFrom: d("2025-12-15"), ValidTo: d("2026-01-31")}
	candidate.SetSlots(model.Wednesday, []model.TimeSlot{
		slot("w1", "15:00", "16:30", gymA.ID),
		slot("w2", "18:00", "19:00", gymA.ID), // touches, fine
	})
	candidate.SetSlots(model.Friday, []model.TimeSlot{slot("f1", "21:00", "23:00", gymB.ID)})
	candidate.SetSlots(model.Monday, []model.TimeSlot{slot("m1", "16:00", "18:00", gymA.ID)})

	byDay := FindAllConflicts(candidate, schedules, gyms, groups, "y")
	require.Len(t, byDay, 2)
	require.Len(t, byDay[model.Wednesday], 1)
	require.Equal(t, "16:00-18:00", byDay[model.Wednesday][0].TimeRange)
	require.Equal(t, "Friday", byDay[model.Friday][0].DayOfWeek)
	require.NotContains(t, byDay, model.Monday)

	flat := Flatten(byDay)
	require.Len(t, flat, 2)
	require.Equal(t, "Wednesday", flat[0].DayOfWeek)

	// Editing Group X's own schedule against itself is never a conflict.
	require.Empty(t, FindAllConflicts(x, schedules, gyms, groups, "x"))
}

func TestMatchQueryConflicts(t *testing.T) {
	t.Parallel()
	schedules, gyms, groups := conflictFixture()

	// 2025-12-17 is a Wednesday.
	own := model.Match{
		ID: "m1", GroupID: "x", GymID: gymA.ID, StartTime: "17:00", EndTime: "19:00",
		Recurrence: model.OneOff{Date: d("2025-12-17")},
	}
	q := MatchQuery(own)
	require.Equal(t, model.Wednesday, q.Day)
	require.Equal(t, d("2025-12-17"), q.ValidFrom)
	require.Equal(t, d("2025-12-17"), q.ValidTo)
	require.Empty(t, FindConflicts(q, schedules, gyms, groups), "own training is an override")

	other := own
	other.GroupID = "y"
	require.Len(t, FindConflicts(MatchQuery(other), schedules, gyms, groups), 1)

	recurring := model.Match{
		ID: "m2", GroupID: "y", GymID: gymA.ID, StartTime: "15:00", EndTime: "16:30",
		Recurrence: model.Recurring{DayOfWeek: model.Wednesday, ValidFrom: d("2025-12-31"), ValidTo: d("2026-05-31"), Interval: 2},
	}
	require.Empty(t, FindConflicts(MatchQuery(recurring), schedules, gyms, groups), "validity starts after X's")
}
