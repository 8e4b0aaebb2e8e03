package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/mirrord/internal/api/request"
	"github.com/edvin/mirrord/internal/api/response"
	"github.com/edvin/mirrord/internal/core"
	"github.com/edvin/mirrord/internal/model"
)

// Backup starts backup (remote to mirror) and restore (mirror to remote)
// jobs. Both return 202 with the job id; progress is tracked via the jobs
// API.
type Backup struct {
	mirrors *core.MirrorService
}

func NewBackup(mirrors *core.MirrorService) *Backup {
	return &Backup{mirrors: mirrors}
}

func (h *Backup) Start(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, false)
}

func (h *Backup) Restore(w http.ResponseWriter, r *http.Request) {
	h.start(w, r, true)
}

func (h *Backup) start(w http.ResponseWriter, r *http.Request, restore bool) {
	backend := chi.URLParam(r, "name")

	var req request.StartJob
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		jobID string
		err   error
	)
	switch {
	case req.Kind == model.JobKindDatabase && !restore:
		jobID, err = h.mirrors.StartDatabaseBackup(r.Context(), backend, req.Table, false)
	case req.Kind == model.JobKindDatabase && restore:
		jobID, err = h.mirrors.StartDatabaseUpload(r.Context(), backend, req.Table, false)
	case req.Kind == model.JobKindFiles && !restore:
		jobID, err = h.mirrors.StartFilesBackup(r.Context(), backend, false)
	default:
		jobID, err = h.mirrors.StartFilesUpload(r.Context(), backend, false)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJobAccepted(w, jobID)
}
