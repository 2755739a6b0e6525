package agenda

import (
	"sort"

	"gymcal/internal/model"
)

// Input is an immutable snapshot of the records the compositor reads.
type Input struct {
	Schedules []model.WeeklySchedule
	Groups    []model.Group
	Gyms      []model.Gym
	Matches   []model.Match
}

// SchedulesOf collects the weekly schedules attached to groups.
func SchedulesOf(groups []model.Group) []model.WeeklySchedule {
	out := make([]model.WeeklySchedule, 0, len(groups))
	for _, g := range groups {
		if g.Schedule != nil {
			out = append(out, *g.Schedule)
		}
	}
	return out
}

// Materialize expands trainings and matches over w and merges them.
//
// Schedules and matches whose group no longer exists are dropped. A match
// occurrence removes every training occurrence of the same group on the
// same date that overlaps it in time; other groups' trainings are left
// alone. The result is sorted by (date, startTime) and never leaves w.
func Materialize(in Input, w model.Window) []model.Occurrence {
	if w.Empty() {
		return []model.Occurrence{}
	}
	names := groupNames(in.Groups)

	var training []model.Occurrence
	for _, s := range in.Schedules {
		name, ok := names[s.GroupID]
		if !ok {
			continue
		}
		training = append(training, ExpandSchedule(s, name, in.Gyms, w)...)
	}

	var matches []model.Occurrence
	for _, m := range in.Matches {
		name, ok := names[m.GroupID]
		if !ok {
			continue
		}
		matches = append(matches, ExpandMatch(m, name, in.Gyms, w)...)
	}

	out := append(applyOverrides(training, matches), matches...)
	SortOccurrences(out)
	return out
}

type groupDay struct {
	groupID string
	date    string
}

// applyOverrides drops training occurrences superseded by a match of the
// same group on the same date with overlapping times.
func applyOverrides(training, matches []model.Occurrence) []model.Occurrence {
	byKey := make(map[groupDay][]model.Occurrence, len(matches))
	for _, m := range matches {
		k := groupDay{m.GroupID, m.Date.String()}
		byKey[k] = append(byKey[k], m)
	}

	out := make([]model.Occurrence, 0, len(training)+len(matches))
	for _, t := range training {
		if overridden(t, byKey[groupDay{t.GroupID, t.Date.String()}]) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func overridden(t model.Occurrence, matches []model.Occurrence) bool {
	for _, m := range matches {
		if TimeOverlap(m.StartTime, m.EndTime, t.StartTime, t.EndTime) {
			return true
		}
	}
	return false
}

// SortOccurrences orders by date then start time, comparing the canonical
// zero-padded strings. Ties keep their input order.
func SortOccurrences(occ []model.Occurrence) {
	sort.SliceStable(occ, func(i, j int) bool {
		di, dj := occ[i].Date.String(), occ[j].Date.String()
		if di != dj {
			return di < dj
		}
		return occ[i].StartTime < occ[j].StartTime
	})
}
