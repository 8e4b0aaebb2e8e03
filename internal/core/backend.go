package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/mirrord/internal/model"
)

// BackendService resolves backend registrations from the local store. The
// core treats a registration as an immutable lookup keyed by name; the
// write path exists for setup tooling and tests.
type BackendService struct {
	db DB
}

// NewBackendService creates a BackendService.
func NewBackendService(db DB) *BackendService {
	return &BackendService{db: db}
}

// Resolve returns the backend registered under name.
func (s *BackendService) Resolve(ctx context.Context, name string) (*model.Backend, error) {
	var (
		b     model.Backend
		attrs []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT name, database_url, bucket_url, attributes, created_at, updated_at
		 FROM backends WHERE name = $1`, name,
	).Scan(&b.Name, &b.DatabaseURL, &b.BucketURL, &attrs, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBackendNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve backend %s: %w", name, err)
	}

	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &b.Attributes); err != nil {
			return nil, fmt.Errorf("decode backend attributes: %w", err)
		}
	}
	return &b, nil
}

// List returns all registered backends, alphabetically by name.
func (s *BackendService) List(ctx context.Context) ([]model.Backend, error) {
	rows, err := s.db.Query(ctx,
		`SELECT name, database_url, bucket_url, attributes, created_at, updated_at
		 FROM backends ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list backends: %w", err)
	}
	defer rows.Close()

	var backends []model.Backend
	for rows.Next() {
		var (
			b     model.Backend
			attrs []byte
		)
		if err := rows.Scan(&b.Name, &b.DatabaseURL, &b.BucketURL, &attrs, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan backend: %w", err)
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &b.Attributes); err != nil {
				return nil, fmt.Errorf("decode backend attributes: %w", err)
			}
		}
		backends = append(backends, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backends: %w", err)
	}
	return backends, nil
}

// Create registers a backend.
func (s *BackendService) Create(ctx context.Context, b *model.Backend) error {
	attrs, err := json.Marshal(b.Attributes)
	if err != nil {
		return fmt.Errorf("encode backend attributes: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO backends (name, database_url, bucket_url, attributes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, now(), now())`,
		b.Name, b.DatabaseURL, b.BucketURL, attrs)
	if err != nil {
		return fmt.Errorf("create backend %s: %w", b.Name, err)
	}
	return nil
}

// Delete removes a backend registration.
func (s *BackendService) Delete(ctx context.Context, name string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM backends WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete backend %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrBackendNotFound, name)
	}
	return nil
}
