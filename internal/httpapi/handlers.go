package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/parkpulse/parkpulse/internal/model"
	"github.com/parkpulse/parkpulse/internal/persistence"
	"github.com/parkpulse/parkpulse/internal/persistence/postgres"
	"github.com/parkpulse/parkpulse/internal/query"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeError(w, http.StatusNotFound, "not found")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// parseListParams extracts the period, filter, and limit query
// parameters, writing a 400 and returning false on invalid enums.
func parseListParams(w http.ResponseWriter, r *http.Request) (model.Period, model.ParkFilter, int, bool) {
	period := model.PeriodLive
	if raw := r.URL.Query().Get("period"); raw != "" {
		p, err := model.ParsePeriod(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return "", "", 0, false
		}
		period = p
	}

	filter, err := model.ParseParkFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", "", 0, false
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return "", "", 0, false
		}
	}

	return period, filter, limit, true
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func (s *Server) handleParkRankings(w http.ResponseWriter, r *http.Request) {
	period, filter, limit, ok := parseListParams(w, r)
	if !ok {
		return
	}

	rows, err := s.query.ParkRankings(r.Context(), period, filter, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load rankings")
		log.Error().Err(err).Msg("park rankings query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"period":   period,
		"filter":   filter,
		"rankings": rows,
	})
}

func (s *Server) handleRideWaitTimes(w http.ResponseWriter, r *http.Request) {
	period, filter, limit, ok := parseListParams(w, r)
	if !ok {
		return
	}

	rows, err := s.query.RideWaitTimes(r.Context(), period, filter, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load wait times")
		log.Error().Err(err).Msg("wait times query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"period":     period,
		"filter":     filter,
		"wait_times": rows,
	})
}

func (s *Server) handleParkChart(w http.ResponseWriter, r *http.Request) {
	period, _, _, ok := parseListParams(w, r)
	if !ok {
		return
	}

	chart, err := s.query.ParkChart(r.Context(), pathID(r), period)
	if err != nil {
		s.writeQueryError(w, err, "park chart")
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func (s *Server) handleRideChart(w http.ResponseWriter, r *http.Request) {
	period, _, _, ok := parseListParams(w, r)
	if !ok {
		return
	}

	chart, err := s.query.RideChart(r.Context(), pathID(r), period)
	if err != nil {
		s.writeQueryError(w, err, "ride chart")
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func (s *Server) handleParkHeatmap(w http.ResponseWriter, r *http.Request) {
	period, _, _, ok := parseListParams(w, r)
	if !ok {
		return
	}

	hm, err := s.query.ParkHeatmap(r.Context(), pathID(r), period)
	if err != nil {
		s.writeQueryError(w, err, "heatmap")
		return
	}
	writeJSON(w, http.StatusOK, hm)
}

func (s *Server) writeQueryError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, query.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, query.ErrLiveUnsupported):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to load "+what)
		log.Error().Err(err).Str("what", what).Msg("query failed")
	}
}

type createImportRequest struct {
	DestinationUUID string `json:"destination_uuid"`
}

func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	var req createImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DestinationUUID == "" {
		writeError(w, http.StatusBadRequest, "destination_uuid is required")
		return
	}

	// Imports run for hours; start in the background and return the
	// checkpoint immediately.
	go func() {
		if err := s.importer.Run(context.WithoutCancel(r.Context()), req.DestinationUUID); err != nil {
			log.Error().Err(err).Str("destination", req.DestinationUUID).Msg("import failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"destination_uuid": req.DestinationUUID,
		"status":           "started",
	})
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	cps, err := s.repo.Imports.List(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list imports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"imports": cps})
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	cp, err := s.repo.Imports.GetByID(r.Context(), pathID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get import")
		return
	}
	if cp == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

func (s *Server) handlePauseImport(w http.ResponseWriter, r *http.Request) {
	s.importAction(w, r, s.importer.Pause)
}

func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	s.importAction(w, r, s.importer.Cancel)
}

func (s *Server) handleResumeImport(w http.ResponseWriter, r *http.Request) {
	cp, err := s.repo.Imports.GetByID(r.Context(), pathID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get import")
		return
	}
	if cp == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if !cp.Resumable {
		writeError(w, http.StatusConflict, "import is not resumable")
		return
	}

	go func() {
		if err := s.importer.Resume(context.WithoutCancel(r.Context()), cp.DestinationUUID); err != nil {
			log.Error().Err(err).Str("destination", cp.DestinationUUID).Msg("import resume failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"destination_uuid": cp.DestinationUUID,
		"status":           "resuming",
	})
}

func (s *Server) importAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) error) {
	id := pathID(r)
	if err := fn(r.Context(), id); err != nil {
		if errors.Is(err, postgres.ErrIllegalTransition) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cp, err := s.repo.Imports.GetByID(r.Context(), id)
	if err != nil || cp == nil {
		writeError(w, http.StatusInternalServerError, "failed to reload import")
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	rows, err := s.repo.Metrics.Latest(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load storage metrics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tables": rows})
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	counts, err := s.repo.Quality.CountByType(r.Context(), persistence.TimeRange{
		From: now.AddDate(0, 0, -7),
		To:   now,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load quality counts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"last_7_days": counts})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.GetStatus())
}
