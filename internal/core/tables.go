package core

import (
	"context"

	"github.com/edvin/mirrord/internal/mirror"
	"github.com/edvin/mirrord/internal/model"
)

// ListSourceTables lists the backend's remote tables synchronously.
func (s *MirrorService) ListSourceTables(ctx context.Context, backendName string) ([]string, error) {
	b, err := s.resolveDatabaseBackend(ctx, backendName)
	if err != nil {
		return nil, err
	}

	remote, err := s.inspector.Connect(ctx, *b.DatabaseURL)
	if err != nil {
		return nil, err
	}
	defer remote.Close()

	return s.inspector.ListTables(ctx, remote)
}

// ReadMirrorPage reads one page of mirrored table data.
func (s *MirrorService) ReadMirrorPage(ctx context.Context, backendName, table string, page, limit int) (*model.TablePage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	mirrorName, err := mirror.TableName(backendName, table)
	if err != nil {
		return nil, err
	}

	total := s.mirror.CountRows(ctx, mirrorName)
	rows, err := s.mirror.FetchPage(ctx, mirrorName, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []model.Row{}
	}

	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}
	return &model.TablePage{
		Data:       rows,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}
