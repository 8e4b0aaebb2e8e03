package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/mirrord/internal/api/response"
	"github.com/edvin/mirrord/internal/core"
	"github.com/edvin/mirrord/internal/model"
)

type Job struct {
	svc *core.JobService
}

func NewJob(svc *core.JobService) *Job {
	return &Job{svc: svc}
}

func (h *Job) List(w http.ResponseWriter, r *http.Request) {
	filter := core.JobFilter{
		BackendName: r.URL.Query().Get("backend"),
		Kind:        r.URL.Query().Get("kind"),
	}
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, _ = strconv.Atoi(limitStr)
	}

	jobs, err := h.svc.List(r.Context(), filter, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []model.Job{}
	}
	response.WriteJSON(w, http.StatusOK, jobs)
}

func (h *Job) Get(w http.ResponseWriter, r *http.Request) {
	j, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, j)
}

func (h *Job) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
