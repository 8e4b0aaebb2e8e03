package handler

import (
	"net/http"

	"github.com/edvin/mirrord/internal/api/request"
	"github.com/edvin/mirrord/internal/api/response"
	"github.com/edvin/mirrord/internal/scheduler"
)

type Scheduler struct {
	sched *scheduler.Scheduler
}

func NewScheduler(sched *scheduler.Scheduler) *Scheduler {
	return &Scheduler{sched: sched}
}

func (h *Scheduler) Status(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Scheduler) Restart(w http.ResponseWriter, r *http.Request) {
	var req request.RestartScheduler
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := scheduler.Config{
		Database: scheduler.EntryConfig{Spec: req.Database.Spec, Enabled: req.Database.Enabled},
		Files:    scheduler.EntryConfig{Spec: req.Files.Spec, Enabled: req.Files.Enabled},
	}
	if err := h.sched.Restart(cfg); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, h.sched.Status())
}
