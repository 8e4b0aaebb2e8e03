package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/edvin/mirrord/internal/model"
	"github.com/edvin/mirrord/internal/source"
)

// uploadBatchSize is the number of rows classified per existence query on
// the upload path.
const uploadBatchSize = 100

// BackupCounts is the outcome of reconciling one page of source rows into
// the mirror.
type BackupCounts struct {
	Inserted int
	Skipped  int
}

// UploadCounts is the outcome of pushing mirror rows back to a remote
// table. Errors is keyed by the failing row's primary-key value.
type UploadCounts struct {
	Uploaded int
	Matched  int
	Errors   map[string]string
}

// Reconciler makes per-row insert/skip/overwrite decisions. Backup never
// overwrites local data once present; upload always overwrites remote data
// on conflict.
type Reconciler struct {
	db     DB
	logger zerolog.Logger
}

// NewReconciler creates a Reconciler over the mirror store.
func NewReconciler(db DB, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		db:     db,
		logger: logger.With().Str("component", "reconciler").Logger(),
	}
}

// ReconcileBackup inserts each source row into the mirror table unless a row
// with the same identity is already present. Identity is the "id" column
// when the source exposes one, otherwise equality across all provided
// columns with IS NULL semantics. A duplicate-key violation counts as a
// skip; any other row-level error is logged and the row is dropped from
// both counts without aborting the batch.
func (r *Reconciler) ReconcileBackup(ctx context.Context, mirrorTable string, cols []model.Column, rows []model.Row) (BackupCounts, error) {
	var counts BackupCounts

	quotedTable, err := source.QuoteIdent(mirrorTable)
	if err != nil {
		return counts, err
	}

	byID := HasIDColumn(cols)

	for _, row := range rows {
		exists, err := r.rowExists(ctx, quotedTable, cols, row, byID)
		if err != nil {
			r.logger.Warn().Err(err).Str("table", mirrorTable).Msg("row existence check failed")
			continue
		}
		if exists {
			counts.Skipped++
			continue
		}

		if err := r.insertRow(ctx, quotedTable, cols, row); err != nil {
			if isDuplicateKey(err) {
				counts.Skipped++
				continue
			}
			r.logger.Warn().Err(err).Str("table", mirrorTable).Msg("row insert failed")
			continue
		}
		counts.Inserted++
	}

	return counts, nil
}

func (r *Reconciler) rowExists(ctx context.Context, quotedTable string, cols []model.Column, row model.Row, byID bool) (bool, error) {
	var (
		conds []string
		args  []any
	)

	if byID {
		quoted, err := source.QuoteIdent(idColumnName(cols))
		if err != nil {
			return false, err
		}
		conds = append(conds, fmt.Sprintf("%s = $1", quoted))
		args = append(args, row[idColumnName(cols)])
	} else {
		for _, c := range cols {
			quoted, err := source.QuoteIdent(c.Name)
			if err != nil {
				return false, err
			}
			v, ok := row[c.Name]
			if !ok || v == nil {
				conds = append(conds, quoted+" IS NULL")
				continue
			}
			args = append(args, v)
			conds = append(conds, fmt.Sprintf("%s = $%d", quoted, len(args)))
		}
	}

	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s)",
		quotedTable, strings.Join(conds, " AND "))

	var exists bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check row existence: %w", err)
	}
	return exists, nil
}

func (r *Reconciler) insertRow(ctx context.Context, quotedTable string, cols []model.Column, row model.Row) error {
	var (
		names        []string
		placeholders []string
		args         []any
	)
	for _, c := range cols {
		quoted, err := source.QuoteIdent(c.Name)
		if err != nil {
			return err
		}
		names = append(names, quoted)
		args = append(args, row[c.Name])
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quotedTable, strings.Join(names, ", "), strings.Join(placeholders, ", "))

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert row: %w", err)
	}
	return nil
}

func idColumnName(cols []model.Column) string {
	for _, c := range cols {
		if strings.EqualFold(c.Name, "id") {
			return c.Name
		}
	}
	return "id"
}

func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// ReconcileUpload pushes mirror rows into a remote table. Bookkeeping
// columns are stripped first. New rows are inserted; primary-key conflicts
// overwrite every non-key column with the mirror's values. Rows are
// classified as matched or uploaded via key-presence checks in 100-row
// batches; a per-row failure is captured into Errors and processing
// continues.
func (r *Reconciler) ReconcileUpload(ctx context.Context, remote *sql.DB, table, pk string, rows []model.Row) (UploadCounts, error) {
	counts := UploadCounts{Errors: map[string]string{}}

	quotedTable, err := source.QuoteIdent(table)
	if err != nil {
		return counts, err
	}
	quotedPK, err := source.QuoteIdent(pk)
	if err != nil {
		return counts, err
	}

	stripped := make([]model.Row, 0, len(rows))
	for _, row := range rows {
		clean := make(model.Row, len(row))
		for k, v := range row {
			if IsBookkeepingColumn(k) {
				continue
			}
			clean[k] = v
		}
		stripped = append(stripped, clean)
	}

	for start := 0; start < len(stripped); start += uploadBatchSize {
		end := min(start+uploadBatchSize, len(stripped))
		batch := stripped[start:end]

		existing, err := r.existingKeys(ctx, remote, quotedTable, quotedPK, pk, batch)
		if err != nil {
			return counts, err
		}

		for _, row := range batch {
			keyText := rowKeyText(row, pk)
			if err := upsertRemoteRow(ctx, remote, quotedTable, pk, quotedPK, row); err != nil {
				counts.Errors[keyText] = err.Error()
				continue
			}
			if existing[keyText] {
				counts.Matched++
			} else {
				counts.Uploaded++
			}
		}
	}

	return counts, nil
}

// existingKeys returns the set of batch keys already present remotely,
// compared as text to sidestep driver type mismatches.
func (r *Reconciler) existingKeys(ctx context.Context, remote *sql.DB, quotedTable, quotedPK, pk string, batch []model.Row) (map[string]bool, error) {
	keys := make([]string, 0, len(batch))
	for _, row := range batch {
		if v, ok := row[pk]; ok && v != nil {
			keys = append(keys, fmt.Sprint(v))
		}
	}
	existing := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return existing, nil
	}

	query := fmt.Sprintf("SELECT %s::text FROM %s WHERE %s::text = ANY($1)",
		quotedPK, quotedTable, quotedPK)
	rows, err := remote.QueryContext(ctx, query, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("check remote keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan remote key: %w", err)
		}
		existing[k] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate remote keys: %w", err)
	}
	return existing, nil
}

func upsertRemoteRow(ctx context.Context, remote *sql.DB, quotedTable, pk, quotedPK string, row model.Row) error {
	names := make([]string, 0, len(row))
	for k := range row {
		names = append(names, k)
	}
	sort.Strings(names)

	var (
		quotedNames  []string
		placeholders []string
		updates      []string
		args         []any
	)
	for _, name := range names {
		quoted, err := source.QuoteIdent(name)
		if err != nil {
			return err
		}
		quotedNames = append(quotedNames, quoted)
		args = append(args, row[name])
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		if !strings.EqualFold(name, pk) {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", quoted, quoted))
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		quotedTable, strings.Join(quotedNames, ", "), strings.Join(placeholders, ", "), quotedPK)
	if len(updates) > 0 {
		query += "DO UPDATE SET " + strings.Join(updates, ", ")
	} else {
		query += "DO NOTHING"
	}

	if _, err := remote.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert row: %w", err)
	}
	return nil
}

func rowKeyText(row model.Row, pk string) string {
	if v, ok := row[pk]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return "unknown"
}
