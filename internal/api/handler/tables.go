package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/mirrord/internal/api/request"
	"github.com/edvin/mirrord/internal/api/response"
	"github.com/edvin/mirrord/internal/core"
)

// Tables exposes the remote table listing and mirrored table data.
type Tables struct {
	mirrors *core.MirrorService
}

func NewTables(mirrors *core.MirrorService) *Tables {
	return &Tables{mirrors: mirrors}
}

func (h *Tables) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.mirrors.ListSourceTables(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (h *Tables) Data(w http.ResponseWriter, r *http.Request) {
	p := request.ParsePagination(r)

	page, err := h.mirrors.ReadMirrorPage(r.Context(),
		chi.URLParam(r, "name"), chi.URLParam(r, "table"), p.Page, p.Limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, page)
}
