package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/everstacklabs/brandscope/internal/store"
)

// MaxListLimit caps the number of runs returned by one list request.
const MaxListLimit = 500

type handlers struct {
	store store.Store
}

// Health handles GET /healthz.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxListLimit)
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.fail(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *handlers) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		h.fail(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *handlers) listResults(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, err := h.store.GetRun(r.Context(), runID); err != nil {
		h.fail(w, "get run", err)
		return
	}
	rows, err := h.store.ListResults(r.Context(), runID)
	if err != nil {
		h.fail(w, "list results", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handlers) listSources(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, err := h.store.GetRun(r.Context(), runID); err != nil {
		h.fail(w, "get run", err)
		return
	}
	qs, err := h.store.ListSources(r.Context(), runID)
	if err != nil {
		h.fail(w, "list sources", err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *handlers) fail(w http.ResponseWriter, action string, err error) {
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	zap.L().Error("api: "+action+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
