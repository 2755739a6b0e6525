package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gymcal/internal/agenda"
	"gymcal/internal/holiday"
	appLog "gymcal/internal/log"
	"gymcal/internal/model"
)

// maxWindowDays bounds /api/events and /calendar.ics windows.
const maxWindowDays = 400

type eventsKey struct {
	version uint64
	window  string
}

type eventsEntry struct {
	resp      eventsResponse
	updatedAt time.Time
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	View        string             `json:"view"`
	Window      model.Window       `json:"window"`
	WeekStart   string             `json:"weekStart"`
	Occurrences []model.Occurrence `json:"occurrences"`
	Days        []agenda.DayBucket `json:"days"`
}

// resolveWindow reads either from/to or view/date from the query. The view
// defaults to agenda and the date to today.
func (s *Server) resolveWindow(q url.Values) (string, model.Window, error) {
	if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
		f, err := model.ParseDate(from)
		if err != nil {
			return "", model.Window{}, err
		}
		t, err := model.ParseDate(to)
		if err != nil {
			return "", model.Window{}, err
		}
		w := model.Window{From: f, To: t}
		if w.Days() > maxWindowDays {
			return "", model.Window{}, fmt.Errorf("window longer than %d days", maxWindowDays)
		}
		return "range", w, nil
	}

	day := s.planner.Today()
	if v := q.Get("date"); v != "" {
		d, err := model.ParseDate(v)
		if err != nil {
			return "", model.Window{}, err
		}
		day = d
	}

	weekStart := s.planner.WeekStart()
	switch view := q.Get("view"); view {
	case "day":
		return view, agenda.DayWindow(day), nil
	case "month":
		return view, agenda.MonthWindow(day, weekStart), nil
	case "", "agenda":
		return "agenda", agenda.AgendaWindow(day, weekStart), nil
	default:
		return "", model.Window{}, fmt.Errorf("unknown view %q", view)
	}
}

// handleEvents returns materialized occurrences for a window, flat and
// bucketed per day.
//
// GET /api/events?view=day|month|agenda&date=YYYY-MM-DD
// GET /api/events?from=YYYY-MM-DD&to=YYYY-MM-DD
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	view, win, err := s.resolveWindow(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := eventsKey{version: s.planner.Store().Version(), window: view + ":" + win.String()}
	now := time.Now()

	s.eventsMu.RLock()
	entry, ok := s.eventsCache[key]
	s.eventsMu.RUnlock()
	if ok && now.Sub(entry.updatedAt) < s.eventsTTL {
		writeJSON(w, http.StatusOK, entry.resp)
		return
	}

	occ, err := s.planner.Agenda(r.Context(), win)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := eventsResponse{
		View:        view,
		Window:      win,
		WeekStart:   s.cfg.WeekStart,
		Occurrences: occ,
		Days:        agenda.GroupByDate(occ, win, holiday.Name),
	}
	if resp.Days == nil {
		resp.Days = []agenda.DayBucket{}
	}

	s.eventsMu.Lock()
	for k, e := range s.eventsCache {
		if k.version != key.version || now.Sub(e.updatedAt) >= s.eventsTTL {
			delete(s.eventsCache, k)
		}
	}
	s.eventsCache[key] = eventsEntry{resp: resp, updatedAt: now}
	s.eventsMu.Unlock()

	appLog.Debug("api events computed", "view", view, "window", win.String(), "count", len(occ))
	writeJSON(w, http.StatusOK, resp)
}

type todayResponse struct {
	Date    model.Date         `json:"date"`
	Holiday string             `json:"holiday,omitempty"`
	Gyms    []agenda.GymBucket `json:"gyms"`
}

// handleToday is the dashboard feed: today's sessions per gym.
func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	day, buckets, err := s.planner.TodayByGym(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	name, _ := holiday.Name(day)
	writeJSON(w, http.StatusOK, todayResponse{Date: day, Holiday: name, Gyms: buckets})
}

func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	year := s.planner.Today().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1583 || y > 9999 {
			writeError(w, http.StatusBadRequest, "year must be between 1583 and 9999")
			return
		}
		year = y
	}
	writeJSON(w, http.StatusOK, holiday.ForYear(year))
}

// handleCalendarICS serves the iCalendar feed. Without from/to it covers
// today plus the configured horizon.
func (s *Server) handleCalendarICS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var win model.Window
	if q.Get("from") != "" || q.Get("to") != "" {
		var err error
		if _, win, err = s.resolveWindow(q); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		win = s.horizonWindow()
	}

	body, err := s.planner.Export(r.Context(), win)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="gymcal.ics"`)
	_, _ = w.Write(body)
}

func (s *Server) horizonWindow() model.Window {
	today := s.planner.Today()
	return model.Window{From: today, To: today.AddDays(s.cfg.HorizonDays)}
}
