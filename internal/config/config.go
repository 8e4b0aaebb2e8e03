package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// DatabaseURL points at the local mirror store.
	DatabaseURL       string
	HTTPListenAddr    string
	MetricsListenAddr string
	// FileBackupRoot is the local directory under which bucket mirrors are
	// kept, one subdirectory per backend.
	FileBackupRoot   string
	LogLevel         string
	JobRetentionDays int

	// Scheduled backups. A cron spec with its enable flag off is kept in
	// config but not installed.
	DatabaseBackupCron    string
	DatabaseBackupEnabled bool
	FilesBackupCron       string
	FilesBackupEnabled    bool
}

func Load() (*Config, error) {
	retention, err := getEnvInt("JOB_RETENTION_DAYS", 30)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		HTTPListenAddr:        getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsListenAddr:     getEnv("METRICS_LISTEN_ADDR", ":9090"),
		FileBackupRoot:        getEnv("FILE_BACKUP_ROOT", "/var/lib/mirrord/files"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		JobRetentionDays:      retention,
		DatabaseBackupCron:    getEnv("DATABASE_BACKUP_CRON", "0 3 * * *"),
		DatabaseBackupEnabled: getEnvBool("DATABASE_BACKUP_ENABLED", false),
		FilesBackupCron:       getEnv("FILES_BACKUP_CRON", "30 3 * * *"),
		FilesBackupEnabled:    getEnvBool("FILES_BACKUP_ENABLED", false),
	}

	return cfg, nil
}

// Validate checks that every field the server needs is present.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.HTTPListenAddr == "" {
		missing = append(missing, "HTTP_LISTEN_ADDR")
	}
	if c.FileBackupRoot == "" {
		missing = append(missing, "FILE_BACKUP_ROOT")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	if c.JobRetentionDays <= 0 {
		return fmt.Errorf("JOB_RETENTION_DAYS must be positive, got %d", c.JobRetentionDays)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
