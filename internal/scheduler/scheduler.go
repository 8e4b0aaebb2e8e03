package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/edvin/mirrord/internal/core"
	"github.com/edvin/mirrord/internal/model"
)

// EntryConfig describes one scheduled backup kind.
type EntryConfig struct {
	Spec    string
	Enabled bool
}

// Config holds the cron specs for automatic backups.
type Config struct {
	Database EntryConfig
	Files    EntryConfig
}

// EntryStatus is the externally visible state of one schedule.
type EntryStatus struct {
	Kind    string     `json:"kind"`
	Enabled bool       `json:"enabled"`
	Spec    string     `json:"spec"`
	LastRun *time.Time `json:"last_run,omitempty"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

// Status is the full scheduler report.
type Status struct {
	Running bool          `json:"running"`
	Entries []EntryStatus `json:"entries"`
}

// Scheduler runs automatic backups on cron schedules. A scheduled tick
// starts one job per registered backend of the matching kind; jobs it
// starts are flagged automatic.
type Scheduler struct {
	mirrors  *core.MirrorService
	backends *core.BackendService
	logger   zerolog.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	cfg      Config
	running  bool
	lastRuns map[string]time.Time
	entries  map[string]cron.EntryID
}

// New creates a Scheduler. It does not start any schedules until Start is
// called.
func New(mirrors *core.MirrorService, backends *core.BackendService, cfg Config, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		mirrors:  mirrors,
		backends: backends,
		cfg:      cfg,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		lastRuns: map[string]time.Time{},
		entries:  map[string]cron.EntryID{},
	}
}

// Start installs the enabled schedules and begins running them.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Scheduler) startLocked() error {
	c := cron.New()

	if s.cfg.Database.Enabled {
		id, err := c.AddFunc(s.cfg.Database.Spec, func() { s.runAll(model.JobKindDatabase) })
		if err != nil {
			return err
		}
		s.entries[model.JobKindDatabase] = id
	}
	if s.cfg.Files.Enabled {
		id, err := c.AddFunc(s.cfg.Files.Spec, func() { s.runAll(model.JobKindFiles) })
		if err != nil {
			return err
		}
		s.entries[model.JobKindFiles] = id
	}

	c.Start()
	s.cron = c
	s.running = true
	s.logger.Info().
		Bool("database", s.cfg.Database.Enabled).
		Bool("files", s.cfg.Files.Enabled).
		Msg("scheduler started")
	return nil
}

// Stop halts the schedules and waits for running ticks to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
	}
	s.running = false
	s.entries = map[string]cron.EntryID{}
}

// Restart replaces the schedule configuration and restarts the cron
// entries under it.
func (s *Scheduler) Restart(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.cfg = cfg
	return s.startLocked()
}

// Status reports the current schedules with their last and next run times.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Running: s.running}
	for _, kind := range []string{model.JobKindDatabase, model.JobKindFiles} {
		cfg := s.cfg.Database
		if kind == model.JobKindFiles {
			cfg = s.cfg.Files
		}

		entry := EntryStatus{Kind: kind, Enabled: cfg.Enabled, Spec: cfg.Spec}
		if last, ok := s.lastRuns[kind]; ok {
			t := last
			entry.LastRun = &t
		}
		if id, ok := s.entries[kind]; ok && s.cron != nil {
			next := s.cron.Entry(id).Next
			if !next.IsZero() {
				entry.NextRun = &next
			}
		}
		st.Entries = append(st.Entries, entry)
	}
	return st
}

// runAll starts one automatic job per registered backend of the given
// kind. Backends without the needed configuration are skipped.
func (s *Scheduler) runAll(kind string) {
	s.mu.Lock()
	s.lastRuns[kind] = time.Now()
	s.mu.Unlock()

	ctx := context.Background()
	backends, err := s.backends.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Msg("scheduled run failed to list backends")
		return
	}

	for _, b := range backends {
		var jobID string
		switch kind {
		case model.JobKindDatabase:
			if b.DatabaseURL == nil || *b.DatabaseURL == "" {
				continue
			}
			jobID, err = s.mirrors.StartDatabaseBackup(ctx, b.Name, "", true)
		case model.JobKindFiles:
			if b.BucketURL == nil || *b.BucketURL == "" {
				continue
			}
			jobID, err = s.mirrors.StartFilesBackup(ctx, b.Name, true)
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("backend", b.Name).Str("kind", kind).Msg("scheduled backup failed to start")
			continue
		}
		s.logger.Info().Str("backend", b.Name).Str("kind", kind).Str("job", jobID).Msg("scheduled backup started")
	}
}
