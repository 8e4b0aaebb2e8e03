package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/mirrord/internal/api"
	"github.com/edvin/mirrord/internal/bucket"
	"github.com/edvin/mirrord/internal/config"
	"github.com/edvin/mirrord/internal/core"
	"github.com/edvin/mirrord/internal/db"
	"github.com/edvin/mirrord/internal/logging"
	"github.com/edvin/mirrord/internal/metrics"
	"github.com/edvin/mirrord/internal/mirror"
	"github.com/edvin/mirrord/internal/scheduler"
	"github.com/edvin/mirrord/internal/source"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mirror store")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	backends := core.NewBackendService(pool)
	jobs := core.NewJobService(pool)
	inspector := source.NewInspector(logger)
	manager := mirror.NewManager(pool, logger)
	reconciler := mirror.NewReconciler(pool, logger)
	bucketClient := bucket.NewClient(logger)
	compare := core.NewCompareService(inspector, manager, logger)
	mirrors := core.NewMirrorService(
		backends, jobs, inspector, manager, reconciler, bucketClient, compare,
		cfg.FileBackupRoot, logger,
	)

	sched := scheduler.New(mirrors, backends, scheduler.Config{
		Database: scheduler.EntryConfig{Spec: cfg.DatabaseBackupCron, Enabled: cfg.DatabaseBackupEnabled},
		Files:    scheduler.EntryConfig{Spec: cfg.FilesBackupCron, Enabled: cfg.FilesBackupEnabled},
	}, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	go sweepLoop(ctx, logger, jobs, cfg.JobRetentionDays)

	metricsServer := metrics.NewServer(cfg.MetricsListenAddr)
	go func() {
		logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("metrics server failed")
		}
	}()

	srv := api.NewServer(logger, pool, backends, jobs, mirrors, sched)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)
}

// sweepLoop removes terminal jobs past the retention window, once at
// startup and then daily.
func sweepLoop(ctx context.Context, logger zerolog.Logger, jobs *core.JobService, retentionDays int) {
	sweep := func() {
		n, err := jobs.SweepExpired(ctx, retentionDays)
		if err != nil {
			logger.Error().Err(err).Msg("job sweep failed")
			return
		}
		if n > 0 {
			logger.Info().Int64("removed", n).Msg("swept expired jobs")
		}
	}

	sweep()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
