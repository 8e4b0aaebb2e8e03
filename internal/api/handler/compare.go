package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/mirrord/internal/api/response"
	"github.com/edvin/mirrord/internal/core"
)

// Compare serves the synchronous divergence reports.
type Compare struct {
	mirrors *core.MirrorService
}

func NewCompare(mirrors *core.MirrorService) *Compare {
	return &Compare{mirrors: mirrors}
}

func (h *Compare) Database(w http.ResponseWriter, r *http.Request) {
	report, err := h.mirrors.CompareDatabase(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, report)
}

func (h *Compare) Files(w http.ResponseWriter, r *http.Request) {
	report, err := h.mirrors.CompareFiles(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, report)
}
