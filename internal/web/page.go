package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"gymcal/internal/agenda"
	"gymcal/internal/holiday"
	appLog "gymcal/internal/log"
	"gymcal/internal/model"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.gohtml"))

type agendaPage struct {
	Title  string
	Window model.Window
	Days   []agendaDay
}

type agendaDay struct {
	Label       string
	Holiday     string
	IsToday     bool
	Occurrences []model.Occurrence
}

// handleAgendaPage renders the two-week agenda for a noticeboard screen.
// The body carries data-ready="true" once rendered, which the capture job
// waits for.
func (s *Server) handleAgendaPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	q.Del("view")
	_, win, err := s.resolveWindow(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	occ, err := s.planner.Agenda(r.Context(), win)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	today := s.planner.Today()
	page := agendaPage{Title: s.cfg.Export.CalendarName, Window: win}
	for _, b := range agenda.GroupByDate(occ, win, holiday.Name) {
		page.Days = append(page.Days, agendaDay{
			Label:       b.Date.Weekday().Label() + " " + b.Date.String(),
			Holiday:     b.Holiday,
			IsToday:     b.Date.Equal(today),
			Occurrences: b.Occurrences,
		})
	}

	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "agenda", page); err != nil {
		appLog.Error("agenda render failed", err)
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
