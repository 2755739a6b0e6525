// Package planner runs the scheduling engine against the record store:
// it snapshots records, materializes agendas and blocks writes that would
// double-book a gym.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gymcal/internal/agenda"
	"gymcal/internal/ics"
	appLog "gymcal/internal/log"
	"gymcal/internal/model"
	"gymcal/internal/store"
)

// ConflictError is returned by SaveGroup and SaveMatch when the candidate
// collides with another group's schedule. Nothing is written.
type ConflictError struct {
	// ByDay is set for schedule checks; matches only fill Conflicts.
	ByDay     map[model.Weekday][]model.Conflict
	Conflicts []model.Conflict
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, c.String())
	}
	return fmt.Sprintf("%d scheduling conflict(s): %s", len(e.Conflicts), strings.Join(parts, "; "))
}

// Options configures a Service.
type Options struct {
	Location     *time.Location
	WeekStart    time.Weekday
	CalendarName string
	Imports      []ImportSource
	Fetcher      FeedFetcher
	Now          func() time.Time
}

// Service is safe for concurrent use as long as its Store is. Conflict
// checks and the writes they guard run under one lock, so two concurrent
// saves cannot both pass the check. Writes made to the Store directly
// bypass it.
type Service struct {
	store        store.Store
	loc          *time.Location
	weekStart    time.Weekday
	calendarName string
	imports      []ImportSource
	fetcher      FeedFetcher
	now          func() time.Time

	// held from conflict check through write
	writeMu sync.Mutex
}

func New(st store.Store, opts Options) *Service {
	s := &Service{
		store:        st,
		loc:          opts.Location,
		weekStart:    opts.WeekStart,
		calendarName: opts.CalendarName,
		imports:      opts.Imports,
		fetcher:      opts.Fetcher,
		now:          opts.Now,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) Store() store.Store            { return s.store }
func (s *Service) Location() *time.Location      { return s.loc }
func (s *Service) WeekStart() time.Weekday       { return s.weekStart }
func (s *Service) ImportSources() []ImportSource { return s.imports }

// Today is the current calendar day in the configured zone.
func (s *Service) Today() model.Date {
	return model.DateOf(s.now().In(s.loc))
}

// Snapshot is a consistent read of every record.
type Snapshot struct {
	Version uint64
	Gyms    []model.Gym
	Groups  []model.Group
	Matches []model.Match
}

// Input hands the snapshot to the engine.
func (sn Snapshot) Input() agenda.Input {
	return agenda.Input{
		Schedules: agenda.SchedulesOf(sn.Groups),
		Groups:    sn.Groups,
		Gyms:      sn.Gyms,
		Matches:   sn.Matches,
	}
}

// Snapshot reads all records. The version is read first so a concurrent
// write can only make the snapshot look older than it is.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	sn := Snapshot{Version: s.store.Version()}
	var err error
	if sn.Gyms, err = s.store.ListGyms(ctx); err != nil {
		return Snapshot{}, err
	}
	if sn.Groups, err = s.store.ListGroups(ctx); err != nil {
		return Snapshot{}, err
	}
	if sn.Matches, err = s.store.ListMatches(ctx); err != nil {
		return Snapshot{}, err
	}
	return sn, nil
}

// Agenda materializes every occurrence inside w.
func (s *Service) Agenda(ctx context.Context, w model.Window) ([]model.Occurrence, error) {
	sn, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	occ := agenda.Materialize(sn.Input(), w)
	appLog.Debug("agenda materialized", "window", w.String(), "count", len(occ), "version", sn.Version)
	return occ, nil
}

// TodayByGym returns today's occurrences bucketed per gym.
func (s *Service) TodayByGym(ctx context.Context) (model.Date, []agenda.GymBucket, error) {
	today := s.Today()
	sn, err := s.Snapshot(ctx)
	if err != nil {
		return today, nil, err
	}
	occ := agenda.Materialize(sn.Input(), agenda.DayWindow(today))
	return today, agenda.GroupByGym(occ, sn.Gyms), nil
}

// Export renders the occurrences of w as an iCalendar feed.
func (s *Service) Export(ctx context.Context, w model.Window) ([]byte, error) {
	occ, err := s.Agenda(ctx, w)
	if err != nil {
		return nil, err
	}
	return ics.Export(occ, ics.ExportOptions{
		Name:     s.calendarName,
		Location: s.loc,
		Now:      s.now(),
	}), nil
}

// CheckSchedule dry-runs a weekly schedule against everybody else's.
// excludeGroupID is the group the schedule belongs to, "" for a new group.
func (s *Service) CheckSchedule(ctx context.Context, sched model.WeeklySchedule, excludeGroupID string) (map[model.Weekday][]model.Conflict, error) {
	sn, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return scheduleConflicts(sn, sched, excludeGroupID), nil
}

// CheckMatch dry-runs a match against the other groups' schedules.
func (s *Service) CheckMatch(ctx context.Context, m model.Match) ([]model.Conflict, error) {
	sn, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return matchConflicts(sn, m), nil
}

func scheduleConflicts(sn Snapshot, sched model.WeeklySchedule, excludeGroupID string) map[model.Weekday][]model.Conflict {
	return agenda.FindAllConflicts(sched, agenda.SchedulesOf(sn.Groups), sn.Gyms, sn.Groups, excludeGroupID)
}

func matchConflicts(sn Snapshot, m model.Match) []model.Conflict {
	out := agenda.FindConflicts(agenda.MatchQuery(m), agenda.SchedulesOf(sn.Groups), sn.Gyms, sn.Groups)
	if out == nil {
		out = []model.Conflict{}
	}
	return out
}

// SaveGroup adds a group without an id and updates one with an id. A
// schedule that collides with another group's aborts the write with a
// *ConflictError.
func (s *Service) SaveGroup(ctx context.Context, g model.Group) (model.Group, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if g.Schedule != nil {
		byDay, err := s.CheckSchedule(ctx, *g.Schedule, g.ID)
		if err != nil {
			return model.Group{}, err
		}
		if len(byDay) > 0 {
			return model.Group{}, &ConflictError{ByDay: byDay, Conflicts: agenda.Flatten(byDay)}
		}
	}

	if g.ID == "" {
		saved, err := s.store.AddGroup(ctx, g)
		if err != nil {
			return model.Group{}, err
		}
		appLog.Info("group added", "id", saved.ID, "name", saved.Name)
		return saved, nil
	}
	saved, err := s.store.UpdateGroup(ctx, g)
	if err != nil {
		return model.Group{}, err
	}
	appLog.Info("group updated", "id", saved.ID, "name", saved.Name)
	return saved, nil
}

// SaveMatch adds or updates a match after checking it against the other
// groups' schedules.
func (s *Service) SaveMatch(ctx context.Context, m model.Match) (model.Match, error) {
	if m.Recurrence == nil {
		return model.Match{}, model.ErrMissingRecurrence
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conflicts, err := s.CheckMatch(ctx, m)
	if err != nil {
		return model.Match{}, err
	}
	if len(conflicts) > 0 {
		return model.Match{}, &ConflictError{Conflicts: conflicts}
	}
	return s.writeMatch(ctx, m)
}

func (s *Service) writeMatch(ctx context.Context, m model.Match) (model.Match, error) {
	if m.ID == "" {
		saved, err := s.store.AddMatch(ctx, m)
		if err != nil {
			return model.Match{}, err
		}
		appLog.Info("match added", "id", saved.ID, "group", saved.GroupID, "type", string(saved.Type()))
		return saved, nil
	}
	saved, err := s.store.UpdateMatch(ctx, m)
	if err != nil {
		return model.Match{}, err
	}
	appLog.Info("match updated", "id", saved.ID, "group", saved.GroupID, "type", string(saved.Type()))
	return saved, nil
}

// DeleteGym removes a gym. Slots and matches still pointing at it render
// with the Unknown gym name.
func (s *Service) DeleteGym(ctx context.Context, id string) error {
	return s.delete(ctx, "gym", id, s.store.DeleteGym)
}

// DeleteGroup removes a group and with it its schedule. Its matches stay
// in the store but no longer materialize.
func (s *Service) DeleteGroup(ctx context.Context, id string) error {
	return s.delete(ctx, "group", id, s.store.DeleteGroup)
}

func (s *Service) DeleteMatch(ctx context.Context, id string) error {
	return s.delete(ctx, "match", id, s.store.DeleteMatch)
}

func (s *Service) delete(ctx context.Context, what, id string, fn func(context.Context, string) error) error {
	if err := fn(ctx, id); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			appLog.Error("delete failed", err, "kind", what, "id", id)
		}
		return err
	}
	appLog.Info("record deleted", "kind", what, "id", id)
	return nil
}
