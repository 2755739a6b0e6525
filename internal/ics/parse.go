package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "gymcal/internal/log"
	"gymcal/internal/model"
)

// ParsedEvent is the normalized representation of a VEVENT. Start and End
// are expressed in the location passed to ParseICS.
type ParsedEvent struct {
	Source Source

	UID         string
	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	Cancelled  bool
	IsOverride bool // carries RECURRENCE-ID
}

// ParseICS parses a single ICS payload into a list of ParsedEvent.
//
//   - Times in UTC or with a TZID are converted into loc; floating times are
//     read as loc wall time.
//   - All-day events are detected from VALUE=DATE or a date-only value.
//   - RRULE is kept raw.
func ParseICS(src Source, body []byte, loc *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(src, ve, loc)
		if perr != nil {
			// Skip the event, keep the rest of the feed.
			appLog.Warn("ics vevent skipped", "id", src.ID, "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		out.Cancelled = strings.EqualFold(strings.TrimSpace(p.Value), "CANCELLED")
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, fmt.Errorf("%s: missing DTSTART", out.UID)
	}
	start, allDay, err := parseICSTime(dtStart.Value, dtStart.ICalParameters, loc)
	if err != nil {
		return out, fmt.Errorf("%s: DTSTART: %w", out.UID, err)
	}
	out.Start = start
	out.AllDay = allDay

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		end, _, err := parseICSTime(dtEnd.Value, dtEnd.ICalParameters, loc)
		if err != nil {
			return out, fmt.Errorf("%s: DTEND: %w", out.UID, err)
		}
		out.End = end
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}
	if p := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); p != nil {
		out.IsOverride = true
	}

	return out, nil
}

// parseICSTime reads a DATE or DATE-TIME value honoring VALUE and TZID.
func parseICSTime(v string, params map[string][]string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	if isDateValue(v, params) {
		t, err := time.ParseInLocation("20060102", v, loc)
		return t, true, err
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t.In(loc), false, err
	}

	in := loc
	if tz := firstParam(params, "TZID"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			in = l
		}
	}
	t, err := time.ParseInLocation("20060102T150405", v, in)
	return t.In(loc), false, err
}

func isDateValue(v string, params map[string][]string) bool {
	if strings.EqualFold(firstParam(params, "VALUE"), "DATE") {
		return true
	}
	return !strings.Contains(v, "T")
}

func firstParam(params map[string][]string, key string) string {
	if vs, ok := params[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// ParseMatches converts a feed into match candidates. Group and gym are
// left for the caller. A timed single event becomes a one-off match; a
// weekly RRULE with UNTIL on the start's weekday becomes a recurring match.
// All-day, cancelled, multi-day and other recurring events are skipped.
func ParseMatches(src Source, body []byte, loc *time.Location) ([]model.Match, error) {
	if loc == nil {
		loc = time.Local
	}
	events, err := ParseICS(src, body, loc)
	if err != nil {
		return nil, err
	}

	out := make([]model.Match, 0, len(events))
	for _, ev := range events {
		m, reason := matchFromEvent(ev, loc)
		if reason != "" {
			appLog.Debug("ics event not imported", "id", src.ID, "uid", ev.UID, "reason", reason)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func matchFromEvent(ev ParsedEvent, loc *time.Location) (model.Match, string) {
	switch {
	case ev.AllDay:
		return model.Match{}, "all-day"
	case ev.Cancelled:
		return model.Match{}, "cancelled"
	case ev.IsOverride:
		return model.Match{}, "recurrence override"
	case ev.End.IsZero():
		return model.Match{}, "no DTEND"
	case !ev.End.After(ev.Start):
		return model.Match{}, "ends before it starts"
	case !model.DateOf(ev.End).Equal(model.DateOf(ev.Start)):
		return model.Match{}, "spans several days"
	}

	m := model.Match{
		Opponent:    opponentOf(ev.Summary),
		StartTime:   ev.Start.Format("15:04"),
		EndTime:     ev.End.Format("15:04"),
		ExternalUID: ev.UID,
	}

	if ev.RawRRule == "" {
		m.Recurrence = model.OneOff{Date: model.DateOf(ev.Start)}
		return m, ""
	}

	r, err := weeklyRecurrence(ev, loc)
	if err != nil {
		return model.Match{}, err.Error()
	}
	m.Recurrence = r
	return m, ""
}

// weeklyRecurrence maps FREQ=WEEKLY;INTERVAL=n;UNTIL=...;[BYDAY=xx] onto a
// recurring match anchored at DTSTART.
func weeklyRecurrence(ev ParsedEvent, loc *time.Location) (model.Recurring, error) {
	opt, err := rrule.StrToROption(ev.RawRRule)
	if err != nil {
		return model.Recurring{}, fmt.Errorf("rrule: %w", err)
	}
	if opt.Freq != rrule.WEEKLY {
		return model.Recurring{}, errors.New("rrule: only WEEKLY is supported")
	}
	if opt.Count > 0 || opt.Until.IsZero() {
		return model.Recurring{}, errors.New("rrule: UNTIL is required")
	}

	day := model.DateOf(ev.Start).Weekday()
	switch len(opt.Byweekday) {
	case 0:
	case 1:
		if model.Weekdays[opt.Byweekday[0].Day()] != day {
			return model.Recurring{}, errors.New("rrule: BYDAY differs from DTSTART weekday")
		}
	default:
		return model.Recurring{}, errors.New("rrule: several BYDAY values")
	}

	interval := opt.Interval
	if interval <= 0 {
		interval = 1
	}
	return model.Recurring{
		DayOfWeek: day,
		ValidFrom: model.DateOf(ev.Start),
		ValidTo:   model.DateOf(opt.Until.In(loc)),
		Interval:  interval,
	}, nil
}

// opponentOf strips the "<group> vs " prefix written by Export.
func opponentOf(summary string) string {
	if i := strings.Index(summary, " vs "); i >= 0 {
		return strings.TrimSpace(summary[i+len(" vs "):])
	}
	return summary
}
