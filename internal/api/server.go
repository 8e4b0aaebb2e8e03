package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/edvin/mirrord/internal/api/handler"
	mw "github.com/edvin/mirrord/internal/api/middleware"
	"github.com/edvin/mirrord/internal/core"
	"github.com/edvin/mirrord/internal/scheduler"
)

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	pool     *pgxpool.Pool
	backends *core.BackendService
	jobs     *core.JobService
	mirrors  *core.MirrorService
	sched    *scheduler.Scheduler
}

func NewServer(
	logger zerolog.Logger,
	pool *pgxpool.Pool,
	backends *core.BackendService,
	jobs *core.JobService,
	mirrors *core.MirrorService,
	sched *scheduler.Scheduler,
) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		pool:     pool,
		backends: backends,
		jobs:     jobs,
		mirrors:  mirrors,
		sched:    sched,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Backends
		backend := handler.NewBackend(s.backends)
		r.Get("/backends", backend.List)
		r.Post("/backends", backend.Create)
		r.Get("/backends/{name}", backend.Get)
		r.Delete("/backends/{name}", backend.Delete)

		// Backup and restore jobs
		backup := handler.NewBackup(s.mirrors)
		r.Post("/backends/{name}/jobs", backup.Start)
		r.Post("/backends/{name}/restore", backup.Restore)

		// Remote tables and mirrored data
		tables := handler.NewTables(s.mirrors)
		r.Get("/backends/{name}/tables", tables.List)
		r.Get("/backends/{name}/tables/{table}/data", tables.Data)

		// Divergence reports
		compare := handler.NewCompare(s.mirrors)
		r.Get("/backends/{name}/compare/database", compare.Database)
		r.Get("/backends/{name}/compare/files", compare.Files)

		// Jobs
		job := handler.NewJob(s.jobs)
		r.Get("/jobs", job.List)
		r.Get("/jobs/{id}", job.Get)
		r.Delete("/jobs/{id}", job.Delete)

		// Scheduler
		sched := handler.NewScheduler(s.sched)
		r.Get("/scheduler", sched.Status)
		r.Post("/scheduler/restart", sched.Restart)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["mirror_store"] = err.Error()
		healthy = false
	} else {
		checks["mirror_store"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
