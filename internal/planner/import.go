package planner

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"gymcal/internal/ics"
	appLog "gymcal/internal/log"
	"gymcal/internal/model"
)

// ErrUnknownImport is returned for an import id that is not configured.
var ErrUnknownImport = errors.New("unknown import")

// ImportSource is an ICS feed whose events become matches of one group at
// one gym.
type ImportSource struct {
	ID      string
	Name    string
	URL     string
	GroupID string
	GymID   string
}

// FeedFetcher downloads an ICS feed. *ics.Fetcher implements it.
type FeedFetcher interface {
	Fetch(ctx context.Context, src ics.Source) (ics.FetchResult, error)
}

// SkippedMatch is a feed event that was not written.
type SkippedMatch struct {
	ExternalUID string           `json:"externalUid"`
	Conflicts   []model.Conflict `json:"conflicts"`
}

// ImportReport summarizes one import run.
type ImportReport struct {
	Source    string         `json:"source"`
	FromCache bool           `json:"fromCache"`
	Added     int            `json:"added"`
	Updated   int            `json:"updated"`
	Unchanged int            `json:"unchanged"`
	Skipped   []SkippedMatch `json:"skipped"`
}

// Import fetches a configured feed and upserts its events as matches keyed
// by their iCalendar UID. Events that would double-book another group are
// skipped and listed in the report; events that disappeared from the feed
// are left alone.
func (s *Service) Import(ctx context.Context, id string) (ImportReport, error) {
	src, ok := s.importSource(id)
	if !ok {
		return ImportReport{}, fmt.Errorf("%w: %q", ErrUnknownImport, id)
	}
	if s.fetcher == nil {
		return ImportReport{}, errors.New("no feed fetcher configured")
	}
	report := ImportReport{Source: src.ID, Skipped: []SkippedMatch{}}

	res, err := s.fetcher.Fetch(ctx, ics.Source{ID: src.ID, URL: src.URL})
	if err != nil {
		return report, fmt.Errorf("fetch %s: %w", src.ID, err)
	}
	report.FromCache = res.FromCache

	candidates, err := ics.ParseMatches(ics.Source{ID: src.ID, URL: src.URL}, res.Body, s.loc)
	if err != nil {
		return report, fmt.Errorf("parse %s: %w", src.ID, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sn, err := s.Snapshot(ctx)
	if err != nil {
		return report, err
	}
	known := make(map[string]model.Match)
	for _, m := range sn.Matches {
		if m.ExternalUID != "" {
			known[m.ExternalUID] = m
		}
	}

	for _, m := range candidates {
		m.GroupID = src.GroupID
		m.GymID = src.GymID

		prev, exists := known[m.ExternalUID]
		if exists {
			m.ID = prev.ID
			if reflect.DeepEqual(prev, m) {
				report.Unchanged++
				continue
			}
		}

		// Only schedules take part in conflict detection, so the snapshot
		// stays valid while matches are written.
		if conflicts := matchConflicts(sn, m); len(conflicts) > 0 {
			report.Skipped = append(report.Skipped, SkippedMatch{ExternalUID: m.ExternalUID, Conflicts: conflicts})
			continue
		}

		if _, err := s.writeMatch(ctx, m); err != nil {
			return report, fmt.Errorf("save %s: %w", m.ExternalUID, err)
		}
		if exists {
			report.Updated++
		} else {
			report.Added++
		}
	}

	appLog.Info("import completed",
		"id", src.ID,
		"from_cache", report.FromCache,
		"added", report.Added,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"skipped", len(report.Skipped),
	)
	return report, nil
}

// ImportAll runs every configured import. A failing feed does not stop the
// others; its error is joined into the returned error.
func (s *Service) ImportAll(ctx context.Context) ([]ImportReport, error) {
	var (
		reports []ImportReport
		errs    []error
	)
	for _, src := range s.imports {
		r, err := s.Import(ctx, src.ID)
		if err != nil {
			appLog.Error("import failed", err, "id", src.ID)
			errs = append(errs, err)
			continue
		}
		reports = append(reports, r)
	}
	return reports, errors.Join(errs...)
}

func (s *Service) importSource(id string) (ImportSource, bool) {
	for _, src := range s.imports {
		if src.ID == id {
			return src, true
		}
	}
	return ImportSource{}, false
}
