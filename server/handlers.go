package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sig-0/centavo/config"
	"github.com/sig-0/centavo/storage"
	"github.com/sig-0/centavo/storage/artifact"
	"github.com/sig-0/centavo/storage/types"
)

var (
	errUnableToFetchRuns = errors.New("unable to fetch runs")
	errUnableToSaveRun   = errors.New("unable to save run")
	errRunFailed         = errors.New("run failed")
	errRunsDisabled      = errors.New("on-demand runs are disabled")

	errInvalidLimit  = errors.New("invalid limit")
	errInvalidOffset = errors.New("invalid offset")
	errInvalidTop    = fmt.Errorf("invalid top (must be 1..%d)", config.MaxTop)
)

// CreateRun runs the pipeline for the top N countries, and saves the run
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, errRunsDisabled)

		return
	}

	top, err := s.parseTop(r.FormValue("top"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	run, err := s.runner.Run(r.Context(), top, s.outputRoot)
	if err != nil {
		s.logger.Error(
			"on-demand run failed",
			"top", top,
			"err", err,
		)

		writeError(w, http.StatusBadGateway, errRunFailed)

		return
	}

	if err = s.storage.SaveRun(r.Context(), run); err != nil {
		s.logger.Error(
			"unable to save run",
			"id", run.ID,
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToSaveRun)

		return
	}

	if isFormPost(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)

		return
	}

	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(
		r.URL.Query().Get("limit"),
		r.URL.Query().Get("offset"),
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	page, err := s.storage.ListRuns(r.Context(), &types.RunQuery{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Debug(
			"unable to fetch runs",
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToFetchRuns)

		return
	}

	if page.Results == nil {
		page.Results = []*types.RunSummary{}
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) LatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.storage.LatestRun(r.Context())

	s.writeRun(w, run, err)
}

func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.storage.Run(r.Context(), chi.URLParam(r, "id"))

	s.writeRun(w, run, err)
}

// RunRowsCSV downloads the rows of a run as CSV
func (s *Server) RunRowsCSV(w http.ResponseWriter, r *http.Request) {
	run, err := s.storage.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeLookupError(w, err)

		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "population_fx_"+run.ID+".csv"),
	)
	w.WriteHeader(http.StatusOK)

	if err = artifact.EncodeCSV(w, run.Rows); err != nil {
		s.logger.Debug(
			"unable to write csv",
			"id", run.ID,
			"err", err,
		)
	}
}

func (s *Server) writeRun(w http.ResponseWriter, run *types.Run, err error) {
	if err != nil {
		s.writeLookupError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, storage.ErrRunNotFound)

		return
	}

	s.logger.Debug(
		"unable to fetch run",
		"err", err,
	)

	writeError(w, http.StatusInternalServerError, errUnableToFetchRuns)
}

// parseTop parses the number of countries of a run
func (s *Server) parseTop(topRaw string) (int, error) {
	v := strings.TrimSpace(topRaw)
	if v == "" {
		return s.config.DefaultTop, nil
	}

	top, err := strconv.Atoi(v)
	if err != nil || top < 1 || top > config.MaxTop {
		return 0, errInvalidTop
	}

	return top, nil
}

// isFormPost reports whether the request was submitted by the dashboard form
func isFormPost(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}

func parseLimitOffset(limitRaw, offsetRaw string) (int32, int64, error) {
	var limit int32

	if v := strings.TrimSpace(limitRaw); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return 0, 0, errInvalidLimit
		}

		limit = int32(n)
	}

	var offset int64

	if v := strings.TrimSpace(offsetRaw); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return 0, 0, errInvalidOffset
		}

		offset = n
	}

	return limit, offset, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // Fine to ignore
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := &ErrorResponse{
		Error: err.Error(),
	}

	writeJSON(w, status, resp)
}
