package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/edvin/mirrord/internal/model"
)

// Inspector discovers schema metadata and reads row pages from an external
// relational source, given only a connection string. All generated
// statements go through the identifier allow-list.
type Inspector struct {
	logger       zerolog.Logger
	queryTimeout time.Duration
}

// NewInspector creates an Inspector.
func NewInspector(logger zerolog.Logger) *Inspector {
	return &Inspector{
		logger:       logger.With().Str("component", "inspector").Logger(),
		queryTimeout: 30 * time.Second,
	}
}

// Connect opens and pings a source database.
func (i *Inspector) Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, i.queryTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping source: %w", err)
	}
	return db, nil
}

// ListTables returns all base tables in the source's default schema,
// alphabetically ordered.
func (i *Inspector) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		 ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// ListColumns returns ordinal-ordered column metadata for a table.
func (i *Inspector) ListColumns(ctx context.Context, db *sql.DB, table string) ([]model.Column, error) {
	table, err := SanitizeIdent(table)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		 WHERE table_schema = current_schema() AND table_name = $1
		 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("list columns for %s: %w", table, err)
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
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s has no columns", table)
	}
	return cols, nil
}

// CountRows returns the row count of a table. Counts feed progress
// estimation only, so any failure yields 0 instead of an error.
func (i *Inspector) CountRows(ctx context.Context, db *sql.DB, table string) int {
	quoted, err := QuoteIdent(table)
	if err != nil {
		return 0
	}
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoted).Scan(&count); err != nil {
		i.logger.Debug().Err(err).Str("table", table).Msg("row count failed")
		return 0
	}
	return count
}

// PrimaryKey returns the table's primary key column, or "" when the table
// has none (or a composite key, which is treated the same way).
func (i *Inspector) PrimaryKey(ctx context.Context, db *sql.DB, table string) (string, error) {
	table, err := SanitizeIdent(table)
	if err != nil {
		return "", err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT kcu.column_name
		 FROM information_schema.table_constraints tc
		 JOIN information_schema.key_column_usage kcu
		   ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		 WHERE tc.constraint_type = 'PRIMARY KEY'
		   AND tc.table_schema = current_schema()
		   AND tc.table_name = $1
		 ORDER BY kcu.ordinal_position`, table)
	if err != nil {
		return "", fmt.Errorf("introspect primary key for %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", fmt.Errorf("scan key column: %w", err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate key columns: %w", err)
	}
	if len(cols) != 1 {
		return "", nil
	}
	return cols[0], nil
}

// FetchPage reads one offset-based page of rows from a table. Pages must be
// consumed sequentially: the offset is position-based, and the physical
// ctid ordering keeps it stable across pages even when the planner would
// otherwise pick a different scan order.
func (i *Inspector) FetchPage(ctx context.Context, db *sql.DB, table string, offset, limit int) ([]model.Row, error) {
	quoted, err := QuoteIdent(table)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT * FROM %s ORDER BY ctid OFFSET $1 LIMIT $2", quoted), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch page of %s: %w", table, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// ListKeys returns every value of the given column, used for missing-record
// set differencing.
func (i *Inspector) ListKeys(ctx context.Context, db *sql.DB, table, column string) ([]any, error) {
	quotedTable, err := QuoteIdent(table)
	if err != nil {
		return nil, err
	}
	quotedCol, err := QuoteIdent(column)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", quotedCol, quotedTable))
	if err != nil {
		return nil, fmt.Errorf("list keys of %s: %w", table, err)
	}
	defer rows.Close()

	var keys []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, normalizeScanned(v))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

// FetchByKeys reads full rows whose key column matches one of keys, capped
// at limit.
func (i *Inspector) FetchByKeys(ctx context.Context, db *sql.DB, table, column string, keys []any, limit int) ([]model.Row, error) {
	quotedTable, err := QuoteIdent(table)
	if err != nil {
		return nil, err
	}
	quotedCol, err := QuoteIdent(column)
	if err != nil {
		return nil, err
	}
	if len(keys) > limit {
		keys = keys[:limit]
	}

	textKeys := make([]string, len(keys))
	for idx, k := range keys {
		textKeys[idx] = fmt.Sprint(k)
	}

	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT * FROM %s WHERE %s::text = ANY($1)", quotedTable, quotedCol),
		pq.Array(textKeys))
	if err != nil {
		return nil, fmt.Errorf("fetch rows by key from %s: %w", table, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// scanRows converts sql.Rows with unknown columns into map rows.
func scanRows(rows *sql.Rows) ([]model.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []model.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(model.Row, len(cols))
		for i, name := range cols {
			row[name] = normalizeScanned(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// normalizeScanned converts driver byte slices into strings so row values
// compare and serialize predictably.
func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
