package mirror

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/mirrord/internal/model"
	"github.com/edvin/mirrord/internal/source"
)

// Manager creates and reads mirror tables in the local store. A mirror
// table's column set is a sanitized copy of the source's columns plus the
// bookkeeping timestamps; schema drift on the source is not retroactively
// applied.
type Manager struct {
	db     DB
	logger zerolog.Logger
}

// NewManager creates a Manager.
func NewManager(db DB, logger zerolog.Logger) *Manager {
	return &Manager{
		db:     db,
		logger: logger.With().Str("component", "mirror-manager").Logger(),
	}
}

// EnsureTable creates the mirror table for the given source columns if it
// does not exist yet. Returns whether this call caused first creation.
// Reconciliation behavior never branches on this; it is logged only.
func (m *Manager) EnsureTable(ctx context.Context, mirrorTable string, cols []model.Column) (bool, error) {
	mirrorTable, err := source.SanitizeIdent(mirrorTable)
	if err != nil {
		return false, err
	}

	exists, err := m.tableExists(ctx, mirrorTable)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	ddl, err := buildCreateTable(mirrorTable, cols)
	if err != nil {
		return false, err
	}
	if _, err := m.db.Exec(ctx, ddl); err != nil {
		return false, fmt.Errorf("create mirror table %s: %w", mirrorTable, err)
	}

	m.logger.Info().Str("table", mirrorTable).Msg("created mirror table")
	return true, nil
}

func (m *Manager) tableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := m.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM information_schema.tables
		   WHERE table_schema = current_schema() AND table_name = $1
		 )`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check mirror table %s: %w", table, err)
	}
	return exists, nil
}

// buildCreateTable derives the mirror DDL from discovered source columns.
// A surrogate identity column is added only when the source has no
// case-insensitive "id" column.
func buildCreateTable(mirrorTable string, cols []model.Column) (string, error) {
	var defs []string

	if !HasIDColumn(cols) {
		defs = append(defs, `"id" BIGSERIAL PRIMARY KEY`)
	}

	for _, c := range cols {
		quoted, err := source.QuoteIdent(c.Name)
		if err != nil {
			return "", fmt.Errorf("column name: %w", err)
		}
		def := quoted + " " + mapColumnType(c.Type)
		if strings.EqualFold(c.Name, "id") {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}

	defs = append(defs,
		`"`+CreatedAtColumn+`" TIMESTAMPTZ NOT NULL DEFAULT now()`,
		`"`+UpdatedAtColumn+`" TIMESTAMPTZ NOT NULL DEFAULT now()`,
	)

	return fmt.Sprintf(`CREATE TABLE "%s" (%s)`, mirrorTable, strings.Join(defs, ", ")), nil
}

// HasIDColumn reports whether the column set has an "id"-shaped column.
func HasIDColumn(cols []model.Column) bool {
	for _, c := range cols {
		if strings.EqualFold(c.Name, "id") {
			return true
		}
	}
	return false
}

// mapColumnType reduces a source column type to the mirror's fixed target
// vocabulary.
func mapColumnType(srcType string) string {
	t := strings.ToLower(srcType)
	switch {
	case strings.Contains(t, "int"):
		return "BIGINT"
	case strings.Contains(t, "numeric"), strings.Contains(t, "decimal"),
		strings.Contains(t, "real"), strings.Contains(t, "double"),
		strings.Contains(t, "float"), strings.Contains(t, "money"):
		return "NUMERIC"
	case strings.Contains(t, "bool"):
		return "BOOLEAN"
	case strings.Contains(t, "timestamp"), strings.Contains(t, "datetime"):
		return "TIMESTAMPTZ"
	case t == "date":
		return "DATE"
	default:
		return "TEXT"
	}
}

// ListTables returns all mirror tables in the local store, alphabetically.
func (m *Manager) ListTables(ctx context.Context) ([]string, error) {
	rows, err := m.db.Query(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_name LIKE $1
		 ORDER BY table_name`, TablePrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("list mirror tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan mirror table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mirror tables: %w", err)
	}
	return tables, nil
}

// Columns returns ordinal-ordered column metadata for a mirror table,
// including the bookkeeping columns.
func (m *Manager) Columns(ctx context.Context, mirrorTable string) ([]model.Column, error) {
	mirrorTable, err := source.SanitizeIdent(mirrorTable)
	if err != nil {
		return nil, err
	}

	rows, err := m.db.Query(ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		 WHERE table_schema = current_schema() AND table_name = $1
		 ORDER BY ordinal_position`, mirrorTable)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", mirrorTable, err)
	}
	defer rows.Close()

	var cols []model.Column
	for rows.Next() {
		var c model.Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return cols, nil
}

// CountRows returns the row count of a mirror table, 0 on any failure.
func (m *Manager) CountRows(ctx context.Context, mirrorTable string) int {
	quoted, err := source.QuoteIdent(mirrorTable)
	if err != nil {
		return 0
	}
	var count int
	if err := m.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+quoted).Scan(&count); err != nil {
		m.logger.Debug().Err(err).Str("table", mirrorTable).Msg("mirror row count failed")
		return 0
	}
	return count
}

// FetchPage reads one offset-based page of mirror rows as maps. The ctid
// ordering keeps sequential offsets stable across pages.
func (m *Manager) FetchPage(ctx context.Context, mirrorTable string, offset, limit int) ([]model.Row, error) {
	quoted, err := source.QuoteIdent(mirrorTable)
	if err != nil {
		return nil, err
	}

	rows, err := m.db.Query(ctx,
		fmt.Sprintf("SELECT * FROM %s ORDER BY ctid OFFSET $1 LIMIT $2", quoted), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch page of %s: %w", mirrorTable, err)
	}
	defer rows.Close()

	var out []model.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		row := make(model.Row, len(values))
		for i, fd := range rows.FieldDescriptions() {
			row[fd.Name] = NormalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows of %s: %w", mirrorTable, err)
	}
	return out, nil
}

// ListKeys returns every value of the given mirror column as text.
func (m *Manager) ListKeys(ctx context.Context, mirrorTable, column string) ([]any, error) {
	quotedTable, err := source.QuoteIdent(mirrorTable)
	if err != nil {
		return nil, err
	}
	quotedCol, err := source.QuoteIdent(column)
	if err != nil {
		return nil, err
	}

	rows, err := m.db.Query(ctx, fmt.Sprintf("SELECT %s FROM %s", quotedCol, quotedTable))
	if err != nil {
		return nil, fmt.Errorf("list keys of %s: %w", mirrorTable, err)
	}
	defer rows.Close()

	var keys []any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read key value: %w", err)
		}
		if len(values) > 0 {
			keys = append(keys, NormalizeValue(values[0]))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys of %s: %w", mirrorTable, err)
	}
	return keys, nil
}
