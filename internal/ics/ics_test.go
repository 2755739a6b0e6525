package ics

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/require"

	"gymcal/internal/agenda"
	"gymcal/internal/model"
)

func rome(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)
	return loc
}

func calendar(events ...[]string) []byte {
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//league//EN"}
	for _, ev := range events {
		lines = append(lines, "BEGIN:VEVENT")
		lines = append(lines, ev...)
		lines = append(lines, "END:VEVENT")
	}
	lines = append(lines, "END:VCALENDAR")
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func TestExport_RoundTripsThroughParseMatches(t *testing.T) {
	loc := rome(t)
	occ := []model.Occurrence{
		{
			ID: "o1", SourceID: "match-1", GroupID: "g1", GroupName: "Under 14",
			GymID: "gym1", GymName: "PalaVerde",
			Date: model.MustParseDate("2025-12-13"), StartTime: "15:00", EndTime: "17:00",
			IsMatch: true, Opponent: "Volley Monza",
		},
		{
			ID: "o2", SourceID: "sched-1", GroupID: "g1", GroupName: "Under 14",
			GymID: "gym1", GymName: "PalaVerde",
			// DST ends on 2025-10-26 in Rome.
			Date: model.MustParseDate("2025-10-26"), StartTime: "09:30", EndTime: "11:00",
		},
	}

	body := Export(occ, ExportOptions{Name: "gymcal", Location: loc, Now: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)})
	text := string(body)
	require.Contains(t, text, "BEGIN:VCALENDAR")
	require.Contains(t, text, "SUMMARY:Under 14 vs Volley Monza")
	require.Contains(t, text, "LOCATION:PalaVerde")
	require.Contains(t, text, "UID:match-1-20251213-1500@gymcal")
	require.Contains(t, text, "CATEGORIES:TRAINING")

	matches, err := ParseMatches(Source{ID: "self"}, body, loc)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	require.Equal(t, "Volley Monza", matches[0].Opponent)
	require.Equal(t, "15:00", matches[0].StartTime)
	require.Equal(t, "17:00", matches[0].EndTime)
	require.Equal(t, "match-1-20251213-1500@gymcal", matches[0].ExternalUID)
	one, ok := matches[0].Recurrence.(model.OneOff)
	require.True(t, ok)
	require.Equal(t, "2025-12-13", one.Date.String())

	require.Equal(t, "09:30", matches[1].StartTime)
	require.Equal(t, "Under 14", matches[1].Opponent)
}

func TestOccurrenceUID_Stable(t *testing.T) {
	t.Parallel()

	o := model.Occurrence{ID: "random", SourceID: "s1", SlotID: "tue-a", Date: model.MustParseDate("2025-01-07"), StartTime: "17:00"}
	require.Equal(t, "s1-tue-a-20250107-1700@gymcal", OccurrenceUID(o))
	o.ID = "other"
	require.Equal(t, "s1-tue-a-20250107-1700@gymcal", OccurrenceUID(o))

	o.SlotID = ""
	o.GymID, o.EndTime = "gym2", "19:00"
	require.Equal(t, "s1-gym2-1900-20250107-1700@gymcal", OccurrenceUID(o))

	m := model.Occurrence{ID: "other", IsMatch: true, GymID: "gym2", Date: model.MustParseDate("2025-01-07"), StartTime: "17:00"}
	require.Equal(t, "other-20250107-1700@gymcal", OccurrenceUID(m))
}

func TestExport_SameStartSlotsGetDistinctUIDs(t *testing.T) {
	t.Parallel()

	// One group split across two gyms at the same hour.
	gyms := []model.Gym{{ID: "gymA", Name: "PalaVerde"}, {ID: "gymB", Name: "Marconi"}}
	tests := []struct {
		name  string
		slots []model.TimeSlot
	}{
		{"with slot ids", []model.TimeSlot{
			{ID: "a", GymID: "gymA", StartTime: "17:00", EndTime: "19:00"},
			{ID: "b", GymID: "gymB", StartTime: "17:00", EndTime: "19:00"},
		}},
		{"without slot ids", []model.TimeSlot{
			{GymID: "gymA", StartTime: "17:00", EndTime: "19:00"},
			{GymID: "gymB", StartTime: "17:00", EndTime: "19:00"},
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sched := model.WeeklySchedule{
				ID:        "s1",
				GroupID:   "g1",
				ValidFrom: model.MustParseDate("2025-01-01"),
				ValidTo:   model.MustParseDate("2025-01-31"),
				Tuesday:   tt.slots,
			}
			occ := agenda.ExpandSchedule(sched, "Under 16", gyms, model.Window{
				From: model.MustParseDate("2025-01-06"),
				To:   model.MustParseDate("2025-01-19"),
			})
			require.Len(t, occ, 4)

			cal, err := ical.ParseCalendar(bytes.NewReader(Export(occ, ExportOptions{Name: "gymcal", Location: time.UTC})))
			require.NoError(t, err)
			events := cal.Events()
			require.Len(t, events, 4)

			seen := map[string]bool{}
			for _, ev := range events {
				uid := ev.Id()
				require.False(t, seen[uid], "duplicate UID %s", uid)
				seen[uid] = true
			}
		})
	}
}

func TestParseMatches(t *testing.T) {
	loc := rome(t)
	body := calendar(
		[]string{
			"UID:tz@league",
			"SUMMARY:Under 16 vs Pallavolo Bergamo",
			"DTSTART;TZID=Europe/Rome:20251213T150000",
			"DTEND;TZID=Europe/Rome:20251213T170000",
		},
		[]string{
			"UID:floating@league",
			"SUMMARY:Derby",
			"DTSTART:20251214T180000",
			"DTEND:20251214T200000",
		},
		[]string{
			"UID:weekly@league",
			"SUMMARY:Serie C vs Lecco",
			"DTSTART:20251206T140000Z",
			"DTEND:20251206T160000Z",
			"RRULE:FREQ=WEEKLY;INTERVAL=2;BYDAY=SA;UNTIL=20260131T220000Z",
		},
		[]string{
			"UID:allday@league",
			"SUMMARY:Tournament",
			"DTSTART;VALUE=DATE:20251208",
			"DTEND;VALUE=DATE:20251209",
		},
		[]string{
			"UID:cancelled@league",
			"SUMMARY:Called off",
			"STATUS:CANCELLED",
			"DTSTART:20251215T180000",
			"DTEND:20251215T200000",
		},
		[]string{
			"UID:overnight@league",
			"SUMMARY:Night",
			"DTSTART:20251215T230000",
			"DTEND:20251216T010000",
		},
		[]string{
			"UID:monthly@league",
			"SUMMARY:Monthly",
			"DTSTART:20251201T180000",
			"DTEND:20251201T200000",
			"RRULE:FREQ=MONTHLY;UNTIL=20260601T000000Z",
		},
		[]string{
			"UID:noend@league",
			"SUMMARY:Open ended",
			"DTSTART:20251217T180000",
		},
		[]string{
			"SUMMARY:No uid",
			"DTSTART:20251218T180000",
			"DTEND:20251218T200000",
		},
	)

	matches, err := ParseMatches(Source{ID: "league"}, body, loc)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	byUID := map[string]model.Match{}
	for _, m := range matches {
		byUID[m.ExternalUID] = m
	}

	tz := byUID["tz@league"]
	require.Equal(t, "Pallavolo Bergamo", tz.Opponent)
	require.Equal(t, "15:00", tz.StartTime)
	require.Equal(t, "17:00", tz.EndTime)
	require.Equal(t, model.OneOff{Date: model.MustParseDate("2025-12-13")}, tz.Recurrence)

	fl := byUID["floating@league"]
	require.Equal(t, "Derby", fl.Opponent)
	require.Equal(t, "18:00", fl.StartTime)

	wk := byUID["weekly@league"]
	require.Equal(t, "Lecco", wk.Opponent)
	require.Equal(t, "15:00", wk.StartTime)
	require.Equal(t, "17:00", wk.EndTime)
	r, ok := wk.Recurrence.(model.Recurring)
	require.True(t, ok)
	require.Equal(t, model.Saturday, r.DayOfWeek)
	require.Equal(t, 2, r.Interval)
	require.Equal(t, "2025-12-06", r.ValidFrom.String())
	require.Equal(t, "2026-01-31", r.ValidTo.String())
}

func TestParseICS_Errors(t *testing.T) {
	_, err := ParseICS(Source{ID: "x"}, nil, time.UTC)
	require.Error(t, err)
}

func TestOpponentOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Under 14 vs Volley Monza", "Volley Monza"},
		{"Volley Monza", "Volley Monza"},
		{"A vs B vs C", "B vs C"},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, opponentOf(tt.in), tt.in)
	}
}

func TestFetcher_ConditionalRequestAndFallback(t *testing.T) {
	var hits, conditional atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	}))

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "league", URL: srv.URL + "/private/feed.ics?token=secret"}
	ctx := context.Background()

	res, err := f.Fetch(ctx, src)
	require.NoError(t, err)
	require.False(t, res.FromCache)
	require.Contains(t, string(res.Body), "BEGIN:VCALENDAR")

	res, err = f.Fetch(ctx, src)
	require.NoError(t, err)
	require.True(t, res.FromCache)
	require.Equal(t, int32(1), conditional.Load())
	require.Contains(t, string(res.Body), "BEGIN:VCALENDAR")

	srv.Close()
	res, err = f.Fetch(ctx, src)
	require.NoError(t, err)
	require.True(t, res.FromCache)
	require.Equal(t, int32(2), hits.Load())
}

func TestFetcher_ErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	results, errs := f.FetchAll(context.Background(), []Source{
		{ID: "broken", URL: srv.URL},
		{ID: "empty"},
	})
	require.Empty(t, results)
	require.Len(t, errs, 2)
	require.Contains(t, errs[0].Error(), "500")
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://calendar.example.org/...(redacted)",
		redactURL("https://calendar.example.org/private/abc.ics?token=1"))
	require.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
