package core

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/edvin/mirrord/internal/bucket"
	"github.com/edvin/mirrord/internal/metrics"
	"github.com/edvin/mirrord/internal/mirror"
	"github.com/edvin/mirrord/internal/model"
	"github.com/edvin/mirrord/internal/source"
)

// pageSize bounds memory per reconciliation page. Pages are fetched
// sequentially: the offset is position-based, so page N+1 is only read
// after page N is fully reconciled.
const pageSize = 500

// MirrorService orchestrates backup and upload jobs. Start methods
// validate configuration, create a processing job, and dispatch the work
// to a background goroutine; callers observe progress through the
// JobService only. Every background path writes a terminal status, even on
// panic.
type MirrorService struct {
	backends   *BackendService
	jobs       *JobService
	inspector  *source.Inspector
	mirror     *mirror.Manager
	reconciler *mirror.Reconciler
	bucket     *bucket.Client
	compare    *CompareService
	fileRoot   string
	logger     zerolog.Logger
}

// NewMirrorService creates a MirrorService. fileRoot is the local root
// under which file mirrors are stored, one subdirectory per backend.
func NewMirrorService(
	backends *BackendService,
	jobs *JobService,
	inspector *source.Inspector,
	mirrorMgr *mirror.Manager,
	reconciler *mirror.Reconciler,
	bucketClient *bucket.Client,
	compare *CompareService,
	fileRoot string,
	logger zerolog.Logger,
) *MirrorService {
	return &MirrorService{
		backends:   backends,
		jobs:       jobs,
		inspector:  inspector,
		mirror:     mirrorMgr,
		reconciler: reconciler,
		bucket:     bucketClient,
		compare:    compare,
		fileRoot:   fileRoot,
		logger:     logger.With().Str("component", "mirror-service").Logger(),
	}
}

// resolveDatabaseBackend resolves a backend and requires its database URL.
func (s *MirrorService) resolveDatabaseBackend(ctx context.Context, name string) (*model.Backend, error) {
	b, err := s.backends.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	if b.DatabaseURL == nil || *b.DatabaseURL == "" {
		return nil, fmt.Errorf("%w: backend %s has no database url", ErrNotConfigured, name)
	}
	return b, nil
}

// resolveBucketBackend resolves a backend and requires its bucket URL.
func (s *MirrorService) resolveBucketBackend(ctx context.Context, name string) (*model.Backend, error) {
	b, err := s.backends.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	if b.BucketURL == nil || *b.BucketURL == "" {
		return nil, fmt.Errorf("%w: backend %s has no bucket url", ErrNotConfigured, name)
	}
	return b, nil
}

func (s *MirrorService) createJob(ctx context.Context, backend, kind, table string, automatic bool) (string, error) {
	jobID := NewJobID(backend, kind, table)
	patch := JobPatch{
		Status:      model.JobStatusProcessing,
		Kind:        kind,
		BackendName: backend,
		IsAutomatic: &automatic,
	}
	if table != "" {
		patch.TableName = &table
	}
	if _, err := s.jobs.SetStatus(ctx, jobID, patch); err != nil {
		return "", err
	}
	metrics.JobsStarted.WithLabelValues(kind).Inc()
	return jobID, nil
}

// launch runs fn detached and guarantees a terminal job status: a returned
// error or a panic both mark the job failed.
func (s *MirrorService) launch(jobID, kind string, fn func(ctx context.Context) (any, error)) {
	go func() {
		ctx := context.Background()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Str("job", jobID).Interface("panic", r).Msg("background job panicked")
				s.markFailed(ctx, jobID, kind, fmt.Errorf("internal error: %v", r))
			}
		}()

		result, err := fn(ctx)
		if err != nil {
			s.markFailed(ctx, jobID, kind, err)
			return
		}

		progress := 100
		message := "finished"
		if _, err := s.jobs.SetStatus(ctx, jobID, JobPatch{
			Status:   model.JobStatusCompleted,
			Progress: &progress,
			Message:  &message,
			Result:   result,
		}); err != nil {
			s.logger.Error().Err(err).Str("job", jobID).Msg("failed to record job completion")
			return
		}
		metrics.JobsCompleted.WithLabelValues(kind).Inc()
	}()
}

func (s *MirrorService) markFailed(ctx context.Context, jobID, kind string, cause error) {
	msg := cause.Error()
	if _, err := s.jobs.SetStatus(ctx, jobID, JobPatch{
		Status: model.JobStatusFailed,
		Error:  &msg,
	}); err != nil {
		s.logger.Error().Err(err).Str("job", jobID).Msg("failed to record job failure")
		return
	}
	metrics.JobsFailed.WithLabelValues(kind).Inc()
}

// StartDatabaseBackup starts an asynchronous remote-to-mirror database
// backup and returns the job id immediately. An empty tableName backs up
// every remote table.
func (s *MirrorService) StartDatabaseBackup(ctx context.Context, backendName, tableName string, automatic bool) (string, error) {
	b, err := s.resolveDatabaseBackend(ctx, backendName)
	if err != nil {
		return "", err
	}

	jobID, err := s.createJob(ctx, backendName, model.JobKindDatabase, tableName, automatic)
	if err != nil {
		return "", err
	}

	s.launch(jobID, model.JobKindDatabase, func(ctx context.Context) (any, error) {
		return s.runDatabaseBackup(ctx, b, jobID, tableName)
	})
	return jobID, nil
}

func (s *MirrorService) runDatabaseBackup(ctx context.Context, b *model.Backend, jobID, tableName string) (any, error) {
	db, err := s.inspector.Connect(ctx, *b.DatabaseURL)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	tables, err := s.jobTables(ctx, db, tableName)
	if err != nil {
		return nil, err
	}

	result := model.DatabaseBackupResult{Tables: []model.TableBackupResult{}}
	for i, table := range tables {
		tr, err := s.backupTable(ctx, db, b.Name, table)
		if err != nil {
			// A schema failure aborts this table only.
			s.logger.Warn().Err(err).Str("table", table).Str("job", jobID).Msg("table backup failed")
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", table, err))
			continue
		}
		result.Tables = append(result.Tables, tr)

		progress := (i + 1) * 100 / len(tables)
		message := fmt.Sprintf("backed up table %s", table)
		if _, err := s.jobs.SetStatus(ctx, jobID, JobPatch{Progress: &progress, Message: &message}); err != nil {
			s.logger.Warn().Err(err).Str("job", jobID).Msg("progress update failed")
		}
	}
	return result, nil
}

func (s *MirrorService) jobTables(ctx context.Context, db *sql.DB, tableName string) ([]string, error) {
	if tableName != "" {
		return []string{tableName}, nil
	}
	tables, err := s.inspector.ListTables(ctx, db)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("source has no tables")
	}
	return tables, nil
}

func (s *MirrorService) backupTable(ctx context.Context, db *sql.DB, backendName, table string) (model.TableBackupResult, error) {
	tr := model.TableBackupResult{Table: table}

	cols, err := s.inspector.ListColumns(ctx, db, table)
	if err != nil {
		return tr, err
	}
	mirrorName, err := mirror.TableName(backendName, table)
	if err != nil {
		return tr, err
	}
	if _, err := s.mirror.EnsureTable(ctx, mirrorName, cols); err != nil {
		return tr, err
	}

	for offset := 0; ; {
		rows, err := s.inspector.FetchPage(ctx, db, table, offset, pageSize)
		if err != nil {
			return tr, err
		}
		if len(rows) == 0 {
			break
		}

		counts, err := s.reconciler.ReconcileBackup(ctx, mirrorName, cols, rows)
		if err != nil {
			return tr, err
		}
		tr.Inserted += counts.Inserted
		tr.Skipped += counts.Skipped
		metrics.RowsInserted.Add(float64(counts.Inserted))
		metrics.RowsSkipped.Add(float64(counts.Skipped))

		if len(rows) < pageSize {
			break
		}
		offset += len(rows)
	}
	return tr, nil
}

// StartDatabaseUpload starts an asynchronous mirror-to-remote upload and
// returns the job id immediately. The mirror is the source of truth on
// this path: conflicting remote rows are overwritten.
func (s *MirrorService) StartDatabaseUpload(ctx context.Context, backendName, tableName string, automatic bool) (string, error) {
	b, err := s.resolveDatabaseBackend(ctx, backendName)
	if err != nil {
		return "", err
	}

	jobID, err := s.createJob(ctx, backendName, model.JobKindDatabase, tableName, automatic)
	if err != nil {
		return "", err
	}

	s.launch(jobID, model.JobKindDatabase, func(ctx context.Context) (any, error) {
		return s.runDatabaseUpload(ctx, b, jobID, tableName)
	})
	return jobID, nil
}

func (s *MirrorService) runDatabaseUpload(ctx context.Context, b *model.Backend, jobID, tableName string) (any, error) {
	remote, err := s.inspector.Connect(ctx, *b.DatabaseURL)
	if err != nil {
		return nil, err
	}
	defer remote.Close()

	var mirrorNames []string
	if tableName != "" {
		name, err := mirror.TableName(b.Name, tableName)
		if err != nil {
			return nil, err
		}
		mirrorNames = []string{name}
	} else {
		all, err := s.mirror.ListTables(ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range all {
			if mirror.SourceTable(b.Name, m) != "" {
				mirrorNames = append(mirrorNames, m)
			}
		}
		if len(mirrorNames) == 0 {
			return nil, fmt.Errorf("backend %s has no mirror tables", b.Name)
		}
	}

	result := model.DatabaseUploadResult{Tables: []model.TableUploadResult{}}
	for i, mirrorName := range mirrorNames {
		table := mirror.SourceTable(b.Name, mirrorName)
		tr, err := s.uploadTable(ctx, remote, table, mirrorName)
		if err != nil {
			s.logger.Warn().Err(err).Str("table", table).Str("job", jobID).Msg("table upload failed")
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", table, err))
			continue
		}
		result.Tables = append(result.Tables, tr)

		progress := (i + 1) * 100 / len(mirrorNames)
		message := fmt.Sprintf("uploaded table %s", table)
		if _, err := s.jobs.SetStatus(ctx, jobID, JobPatch{Progress: &progress, Message: &message}); err != nil {
			s.logger.Warn().Err(err).Str("job", jobID).Msg("progress update failed")
		}
	}
	return result, nil
}

func (s *MirrorService) uploadTable(ctx context.Context, remote *sql.DB, table, mirrorName string) (model.TableUploadResult, error) {
	tr := model.TableUploadResult{Table: table, Errors: map[string]string{}}

	pk, err := s.inspector.PrimaryKey(ctx, remote, table)
	if err != nil {
		return tr, err
	}
	if pk == "" {
		pk = "id"
	}

	for offset := 0; ; {
		rows, err := s.mirror.FetchPage(ctx, mirrorName, offset, pageSize)
		if err != nil {
			return tr, err
		}
		if len(rows) == 0 {
			break
		}

		counts, err := s.reconciler.ReconcileUpload(ctx, remote, table, pk, rows)
		if err != nil {
			return tr, err
		}
		tr.Uploaded += counts.Uploaded
		tr.Matched += counts.Matched
		for k, v := range counts.Errors {
			tr.Errors[k] = v
		}
		metrics.RowsUploaded.Add(float64(counts.Uploaded))

		if len(rows) < pageSize {
			break
		}
		offset += len(rows)
	}
	return tr, nil
}

// StartFilesBackup starts an asynchronous bucket-to-local file backup.
func (s *MirrorService) StartFilesBackup(ctx context.Context, backendName string, automatic bool) (string, error) {
	b, err := s.resolveBucketBackend(ctx, backendName)
	if err != nil {
		return "", err
	}

	jobID, err := s.createJob(ctx, backendName, model.JobKindFiles, "", automatic)
	if err != nil {
		return "", err
	}

	s.launch(jobID, model.JobKindFiles, func(ctx context.Context) (any, error) {
		return s.bucket.Download(ctx, *b.BucketURL, b.Attributes, s.localFileRoot(backendName))
	})
	return jobID, nil
}

// StartFilesUpload starts an asynchronous local-to-bucket file upload.
// Object-store credentials are required up front; without them no job is
// created.
func (s *MirrorService) StartFilesUpload(ctx context.Context, backendName string, automatic bool) (string, error) {
	b, err := s.resolveBucketBackend(ctx, backendName)
	if err != nil {
		return "", err
	}
	if !bucket.HasCredentials(b.Attributes) {
		return "", fmt.Errorf("%w: backend %s has no bucket credentials", ErrNotConfigured, backendName)
	}

	jobID, err := s.createJob(ctx, backendName, model.JobKindFiles, "", automatic)
	if err != nil {
		return "", err
	}

	s.launch(jobID, model.JobKindFiles, func(ctx context.Context) (any, error) {
		return s.bucket.Upload(ctx, s.localFileRoot(backendName), *b.BucketURL, b.Attributes)
	})
	return jobID, nil
}

func (s *MirrorService) localFileRoot(backendName string) string {
	return filepath.Join(s.fileRoot, backendName)
}

// CompareDatabase builds the synchronous table divergence report for a
// backend.
func (s *MirrorService) CompareDatabase(ctx context.Context, backendName string) (model.DatabaseComparison, error) {
	b, err := s.resolveDatabaseBackend(ctx, backendName)
	if err != nil {
		return model.DatabaseComparison{}, err
	}

	remote, err := s.inspector.Connect(ctx, *b.DatabaseURL)
	if err != nil {
		return model.DatabaseComparison{}, err
	}
	defer remote.Close()

	return s.compare.CompareDatabase(ctx, remote, backendName)
}

// CompareFiles builds the synchronous file divergence report for a backend.
func (s *MirrorService) CompareFiles(ctx context.Context, backendName string) (model.FileComparison, error) {
	b, err := s.resolveBucketBackend(ctx, backendName)
	if err != nil {
		return model.FileComparison{}, err
	}
	return s.bucket.Compare(ctx, *b.BucketURL, b.Attributes, s.localFileRoot(backendName))
}
