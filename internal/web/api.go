package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gymcal/internal/agenda"
	"gymcal/internal/model"
)

func (s *Server) handleListGyms(w http.ResponseWriter, r *http.Request) {
	gyms, err := s.planner.Store().ListGyms(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gyms)
}

func (s *Server) handleGetGym(w http.ResponseWriter, r *http.Request) {
	g, err := s.planner.Store().GetGym(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleCreateGym(w http.ResponseWriter, r *http.Request) {
	var req gymRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	g, err := s.planner.Store().AddGym(r.Context(), req.toModel(""))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleUpdateGym(w http.ResponseWriter, r *http.Request) {
	var req gymRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	g, err := s.planner.Store().UpdateGym(r.Context(), req.toModel(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGym(w http.ResponseWriter, r *http.Request) {
	if err := s.planner.DeleteGym(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.planner.Store().ListGroups(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.planner.Store().GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	s.saveGroup(w, r, "", http.StatusCreated)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	s.saveGroup(w, r, chi.URLParam(r, "id"), http.StatusOK)
}

func (s *Server) saveGroup(w http.ResponseWriter, r *http.Request, id string, okStatus int) {
	var req groupRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	g, err := req.toModel(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.planner.SaveGroup(r.Context(), g)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, okStatus, saved)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.planner.DeleteGroup(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.planner.Store().ListMatches(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.planner.Store().GetMatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	s.saveMatch(w, r, "", http.StatusCreated)
}

func (s *Server) handleUpdateMatch(w http.ResponseWriter, r *http.Request) {
	s.saveMatch(w, r, chi.URLParam(r, "id"), http.StatusOK)
}

func (s *Server) saveMatch(w http.ResponseWriter, r *http.Request, id string, okStatus int) {
	var req matchRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	m, err := req.toModel(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.planner.SaveMatch(r.Context(), m)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, okStatus, saved)
}

func (s *Server) handleDeleteMatch(w http.ResponseWriter, r *http.Request) {
	if err := s.planner.DeleteMatch(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type scheduleCheckResponse struct {
	Count     int                                `json:"count"`
	Conflicts map[model.Weekday][]model.Conflict `json:"conflicts"`
}

// handleCheckSchedule dry-runs a weekly schedule, the check a schedule
// editor runs before enabling save.
func (s *Server) handleCheckSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleCheckRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	sched, err := req.Schedule.toModel(req.GroupID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	byDay, err := s.planner.CheckSchedule(r.Context(), sched, req.GroupID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleCheckResponse{Count: len(agenda.Flatten(byDay)), Conflicts: byDay})
}

type matchCheckResponse struct {
	Count     int              `json:"count"`
	Conflicts []model.Conflict `json:"conflicts"`
}

func (s *Server) handleCheckMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	m, err := req.toModel("")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	conflicts, err := s.planner.CheckMatch(r.Context(), m)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchCheckResponse{Count: len(conflicts), Conflicts: conflicts})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	report, err := s.planner.Import(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
