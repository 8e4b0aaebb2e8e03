package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/mirrord/internal/api/request"
	"github.com/edvin/mirrord/internal/api/response"
	"github.com/edvin/mirrord/internal/core"
	"github.com/edvin/mirrord/internal/model"
)

type Backend struct {
	svc *core.BackendService
}

func NewBackend(svc *core.BackendService) *Backend {
	return &Backend{svc: svc}
}

func (h *Backend) List(w http.ResponseWriter, r *http.Request) {
	backends, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if backends == nil {
		backends = []model.Backend{}
	}
	response.WriteJSON(w, http.StatusOK, backends)
}

func (h *Backend) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateBackend
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	b := &model.Backend{
		Name:        req.Name,
		DatabaseURL: req.DatabaseURL,
		BucketURL:   req.BucketURL,
		Attributes:  req.Attributes,
	}
	if err := h.svc.Create(r.Context(), b); err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, b)
}

func (h *Backend) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Resolve(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, b)
}

func (h *Backend) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
