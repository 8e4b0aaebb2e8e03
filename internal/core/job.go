package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/edvin/mirrord/internal/model"
)

// DefaultListLimit caps job listings when the caller supplies no limit.
const DefaultListLimit = 50

// JobService persists the per-job state machine: processing -> completed or
// failed, both terminal. Jobs are updated in place, never recreated.
type JobService struct {
	db DB
}

// NewJobService creates a JobService.
func NewJobService(db DB) *JobService {
	return &JobService{db: db}
}

// NewJobID generates a job identifier from the backend name, operation
// kind, optional table, and the current time. A short random suffix keeps
// ids unique when two jobs start within the same millisecond.
func NewJobID(backend, kind, table string) string {
	parts := []string{backend, kind}
	if table != "" {
		parts = append(parts, table)
	}
	parts = append(parts,
		fmt.Sprintf("%d", time.Now().UnixMilli()),
		uuid.NewString()[:8],
	)
	return strings.Join(parts, "-")
}

// JobPatch is a sparse update: nil/empty fields are left untouched.
type JobPatch struct {
	Status      string
	Kind        string
	BackendName string
	TableName   *string
	Progress    *int
	Message     *string
	Result      any
	Error       *string
	IsAutomatic *bool
}

// SetStatus upserts a job record. Creating a new record requires Kind and
// BackendName in the patch; a patch to a nonexistent job lacking these is a
// hard failure that leaves no partial record behind. Existing records get a
// sparse update and an advanced update timestamp. Completed and failed are
// final: a terminal job never changes status again.
func (s *JobService) SetStatus(ctx context.Context, id string, p JobPatch) (*model.Job, error) {
	existing, err := s.Get(ctx, id)
	if errors.Is(err, ErrJobNotFound) {
		return s.create(ctx, id, p)
	}
	if err != nil {
		return nil, err
	}
	if existing.Terminal() && p.Status != "" && p.Status != existing.Status {
		return nil, fmt.Errorf("update job %s: status %s is final", id, existing.Status)
	}
	return s.update(ctx, id, p)
}

func (s *JobService) create(ctx context.Context, id string, p JobPatch) (*model.Job, error) {
	if p.Kind == "" || p.BackendName == "" {
		return nil, fmt.Errorf("create job %s: kind and backend name are required", id)
	}

	status := p.Status
	if status == "" {
		status = model.JobStatusProcessing
	}
	progress := 0
	if p.Progress != nil {
		progress = *p.Progress
	}
	message := ""
	if p.Message != nil {
		message = *p.Message
	}
	automatic := false
	if p.IsAutomatic != nil {
		automatic = *p.IsAutomatic
	}
	result, err := marshalResult(p.Result)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO jobs (id, status, kind, backend_name, table_name, progress, message, result, error, is_automatic, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`,
		id, status, p.Kind, p.BackendName, p.TableName, progress, message, result, p.Error, automatic)
	if err != nil {
		return nil, fmt.Errorf("create job %s: %w", id, err)
	}
	return s.Get(ctx, id)
}

func (s *JobService) update(ctx context.Context, id string, p JobPatch) (*model.Job, error) {
	sets := []string{"updated_at = now()"}
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if p.Status != "" {
		add("status", p.Status)
	}
	if p.Kind != "" {
		add("kind", p.Kind)
	}
	if p.BackendName != "" {
		add("backend_name", p.BackendName)
	}
	if p.TableName != nil {
		add("table_name", *p.TableName)
	}
	if p.Progress != nil {
		add("progress", *p.Progress)
	}
	if p.Message != nil {
		add("message", *p.Message)
	}
	if p.Result != nil {
		result, err := marshalResult(p.Result)
		if err != nil {
			return nil, err
		}
		add("result", result)
	}
	if p.Error != nil {
		add("error", *p.Error)
	}
	if p.IsAutomatic != nil {
		add("is_automatic", *p.IsAutomatic)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE jobs SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update job %s: %w", id, err)
	}
	return s.Get(ctx, id)
}

func marshalResult(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode job result: %w", err)
	}
	return b, nil
}

// Get returns the job with the given id.
func (s *JobService) Get(ctx context.Context, id string) (*model.Job, error) {
	var (
		j      model.Job
		result []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, status, kind, backend_name, table_name, progress, message, result, error, is_automatic, created_at, updated_at
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.Status, &j.Kind, &j.BackendName, &j.TableName, &j.Progress,
		&j.Message, &result, &j.Error, &j.IsAutomatic, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	j.Result = result
	return &j, nil
}

// JobFilter narrows a job listing.
type JobFilter struct {
	BackendName string
	Kind        string
}

// List returns jobs newest-first, capped at limit (DefaultListLimit when
// limit is not positive).
func (s *JobService) List(ctx context.Context, filter JobFilter, limit int) ([]model.Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT id, status, kind, backend_name, table_name, progress, message, result, error, is_automatic, created_at, updated_at FROM jobs`
	var (
		conds []string
		args  []any
	)
	if filter.BackendName != "" {
		args = append(args, filter.BackendName)
		conds = append(conds, fmt.Sprintf("backend_name = $%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		conds = append(conds, fmt.Sprintf("kind = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var (
			j      model.Job
			result []byte
		)
		if err := rows.Scan(&j.ID, &j.Status, &j.Kind, &j.BackendName, &j.TableName, &j.Progress,
			&j.Message, &result, &j.Error, &j.IsAutomatic, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.Result = result
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Delete removes a job record. It does not stop in-flight work; it only
// removes the tracking entry.
func (s *JobService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}

// SweepExpired deletes terminal jobs older than the retention window.
// Processing jobs are never swept.
func (s *JobService) SweepExpired(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	tag, err := s.db.Exec(ctx,
		`DELETE FROM jobs WHERE status IN ($1, $2) AND updated_at < $3`,
		model.JobStatusCompleted, model.JobStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep expired jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
