package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"gymcal/internal/agenda"
	"gymcal/internal/model"
)

// ExportOptions controls calendar-level properties of Export.
type ExportOptions struct {
	Name     string
	Location *time.Location // wall-clock zone of slot times; nil means time.Local
	Now      time.Time      // DTSTAMP; zero means time.Now()
}

// Export renders occurrences as a VCALENDAR. UIDs derive from the source
// record, date and start time so repeated exports of the same occurrence
// keep their identity.
func Export(occ []model.Occurrence, opts ExportOptions) []byte {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//gymcal//agenda//EN")
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	cal.SetXWRTimezone(loc.String())

	for _, o := range occ {
		ev := cal.AddEvent(OccurrenceUID(o))
		ev.SetDtStampTime(now)
		ev.SetStartAt(slotTime(o.Date, o.StartTime, loc))
		ev.SetEndAt(slotTime(o.Date, o.EndTime, loc))
		ev.SetSummary(Summary(o))
		ev.SetLocation(o.GymName)
		if o.IsMatch {
			ev.AddProperty(ical.ComponentProperty("CATEGORIES"), "MATCH")
		} else {
			ev.AddProperty(ical.ComponentProperty("CATEGORIES"), "TRAINING")
		}
	}

	return []byte(cal.Serialize())
}

// OccurrenceUID is the stable iCalendar UID of an occurrence. Training
// UIDs carry the slot, since one schedule may hold several slots starting
// at the same time; slots without an id fall back to gym and end time.
func OccurrenceUID(o model.Occurrence) string {
	src := o.SourceID
	if src == "" {
		src = o.ID
	}
	if !o.IsMatch {
		if o.SlotID != "" {
			src += "-" + o.SlotID
		} else {
			src += "-" + o.GymID + "-" + strings.ReplaceAll(o.EndTime, ":", "")
		}
	}
	return fmt.Sprintf("%s-%s-%s@gymcal",
		src,
		strings.ReplaceAll(o.Date.String(), "-", ""),
		strings.ReplaceAll(o.StartTime, ":", ""),
	)
}

// Summary is "Group" for training and "Group vs Opponent" for matches.
func Summary(o model.Occurrence) string {
	if o.IsMatch && o.Opponent != "" {
		return o.GroupName + " vs " + o.Opponent
	}
	return o.GroupName
}

func slotTime(d model.Date, hhmm string, loc *time.Location) time.Time {
	m := agenda.Minutes(hhmm)
	return time.Date(d.Year(), d.Month(), d.Day(), m/60, m%60, 0, 0, loc)
}
