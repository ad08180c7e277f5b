package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"autopilot/internal/domain"
)

type handlers struct {
	ctl    Controller
	logger *slog.Logger
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"running": h.ctl.Stats().IsRunning,
	})
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Stats())
}

// start accepts an optional ConfigPatch body.
func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	var patch domain.ConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid config patch: "+err.Error())
		return
	}

	// The browser session outlives this request.
	if err := h.ctl.Start(context.WithoutCancel(r.Context()), patch); err != nil {
		h.logger.Error("engine start failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Stats())
}

func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	if err := h.ctl.Stop(); err != nil {
		// The engine is stopped even when releasing the port failed.
		h.logger.Warn("engine stop reported an error", "error", err)
	}
	writeJSON(w, http.StatusOK, h.ctl.Stats())
}

func (h *handlers) opportunities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Opportunities())
}

func (h *handlers) tasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Tasks())
}

func (h *handlers) executeTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	task, err := h.ctl.ExecuteTask(r.Context(), id)
	switch {
	case err == nil, errors.Is(err, domain.ErrExecution):
		// A failed task is a valid outcome: the body carries the error.
		writeJSON(w, http.StatusOK, task)
	case errors.Is(err, domain.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrTaskTerminal), errors.Is(err, domain.ErrTaskRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnknownTaskType):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("task execution failed", "task", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
