package core

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/mirrord/internal/mirror"
	"github.com/edvin/mirrord/internal/model"
	"github.com/edvin/mirrord/internal/source"
)

// missingRecordsCap bounds how many full missing rows a report carries.
// MissingRecordsCount always reports the true total.
const missingRecordsCap = 100

// internalTables are engine-owned tables excluded from comparison on both
// sides, directly or behind any number of mirror-name prefixes.
var internalTables = map[string]bool{
	"jobs":             true,
	"backends":         true,
	"goose_db_version": true,
}

// CompareService computes read-only divergence reports between a backend's
// remote database and its local mirror.
type CompareService struct {
	inspector *source.Inspector
	mirror    *mirror.Manager
	logger    zerolog.Logger
}

// NewCompareService creates a CompareService.
func NewCompareService(inspector *source.Inspector, mirrorMgr *mirror.Manager, logger zerolog.Logger) *CompareService {
	return &CompareService{
		inspector: inspector,
		mirror:    mirrorMgr,
		logger:    logger.With().Str("component", "comparator").Logger(),
	}
}

// isInternalTable reports whether a table name is engine-internal, after
// repeatedly stripping the mirror prefix and backend namespace.
func isInternalTable(name, backend string) bool {
	for {
		if internalTables[name] {
			return true
		}
		stripped := strings.TrimPrefix(name, mirror.TablePrefix)
		if stripped == name {
			return false
		}
		name = strings.TrimPrefix(stripped, backend+"_")
	}
}

// computeProgress derives backup progress as a 0-100 percentage. Progress
// reaches 100 only when the mirror holds at least as many rows as the
// remote; an incomplete mirror caps at 99 no matter how rounding falls.
func computeProgress(mirrorCount, remoteCount int) int {
	if remoteCount == 0 {
		if mirrorCount > 0 {
			return 100
		}
		return 0
	}
	if mirrorCount >= remoteCount {
		return 100
	}
	p := int(math.Round(float64(mirrorCount) / float64(remoteCount) * 100))
	if p > 99 {
		p = 99
	}
	return p
}

// classifyTable maps counts to a comparison status.
func classifyTable(mirrorCount, progress int) string {
	switch {
	case mirrorCount == 0:
		return model.TableNotBackedUp
	case progress >= 100:
		return model.TableFullyBackedUp
	default:
		return model.TablePartiallyBackedUp
	}
}

// CompareDatabase builds the full mirror-vs-remote table report for one
// backend. remote must be an open connection to the backend's database.
func (s *CompareService) CompareDatabase(ctx context.Context, remote *sql.DB, backend string) (model.DatabaseComparison, error) {
	report := model.DatabaseComparison{Backend: backend, Tables: []model.TableComparison{}}

	remoteTables, err := s.inspector.ListTables(ctx, remote)
	if err != nil {
		return report, fmt.Errorf("list remote tables: %w", err)
	}

	mirrorTables, err := s.mirror.ListTables(ctx)
	if err != nil {
		return report, fmt.Errorf("list mirror tables: %w", err)
	}
	mirrorSet := map[string]bool{}
	for _, m := range mirrorTables {
		mirrorSet[m] = true
	}

	remoteSet := map[string]bool{}
	for _, t := range remoteTables {
		remoteSet[t] = true
	}

	for _, table := range remoteTables {
		if isInternalTable(table, backend) {
			continue
		}
		cmp, err := s.compareTable(ctx, remote, backend, table, mirrorSet)
		if err != nil {
			s.logger.Warn().Err(err).Str("table", table).Msg("table comparison failed")
			continue
		}
		report.Tables = append(report.Tables, cmp)
	}

	// Mirror tables with no remote counterpart.
	for _, m := range mirrorTables {
		table := mirror.SourceTable(backend, m)
		if table == "" || remoteSet[table] || isInternalTable(table, backend) {
			continue
		}
		report.Tables = append(report.Tables, model.TableComparison{
			Table:       table,
			Status:      model.TableMissingInRemote,
			MirrorCount: s.mirror.CountRows(ctx, m),
		})
	}

	return report, nil
}

func (s *CompareService) compareTable(ctx context.Context, remote *sql.DB, backend, table string, mirrorSet map[string]bool) (model.TableComparison, error) {
	cmp := model.TableComparison{Table: table}

	remoteCount := s.inspector.CountRows(ctx, remote, table)
	cmp.RemoteCount = remoteCount

	mirrorName, err := mirror.TableName(backend, table)
	if err != nil {
		return cmp, err
	}

	if !mirrorSet[mirrorName] {
		cmp.Status = model.TableNotBackedUp
		cmp.MissingRecordsCount = remoteCount
		return cmp, nil
	}

	mirrorCount := s.mirror.CountRows(ctx, mirrorName)
	cmp.MirrorCount = mirrorCount
	cmp.Progress = computeProgress(mirrorCount, remoteCount)
	cmp.Status = classifyTable(mirrorCount, cmp.Progress)

	if mirrorCount < remoteCount {
		if err := s.fillMissingRecords(ctx, remote, table, mirrorName, &cmp); err != nil {
			// Counts stand on their own; the record detail is best-effort.
			s.logger.Warn().Err(err).Str("table", table).Msg("missing-record detail failed")
			cmp.MissingRecordsCount = remoteCount - mirrorCount
		}
	}
	return cmp, nil
}

// fillMissingRecords set-differences remote and mirror identity values and
// fetches full rows for up to the first missingRecordsCap missing ones.
func (s *CompareService) fillMissingRecords(ctx context.Context, remote *sql.DB, table, mirrorName string, cmp *model.TableComparison) error {
	idCol, err := s.identityColumn(ctx, remote, table)
	if err != nil {
		return err
	}
	if idCol == "" {
		// Without a usable identity column only the count is reported.
		cmp.MissingRecordsCount = cmp.RemoteCount - cmp.MirrorCount
		return nil
	}

	remoteKeys, err := s.inspector.ListKeys(ctx, remote, table, idCol)
	if err != nil {
		return err
	}
	mirrorKeys, err := s.mirror.ListKeys(ctx, mirrorName, idCol)
	if err != nil {
		return err
	}

	mirrored := make(map[string]bool, len(mirrorKeys))
	for _, k := range mirrorKeys {
		mirrored[fmt.Sprint(k)] = true
	}

	var missing []any
	for _, k := range remoteKeys {
		if !mirrored[fmt.Sprint(k)] {
			missing = append(missing, k)
		}
	}
	cmp.MissingRecordsCount = len(missing)
	if len(missing) == 0 {
		return nil
	}

	rows, err := s.inspector.FetchByKeys(ctx, remote, table, idCol, missing, missingRecordsCap)
	if err != nil {
		return err
	}
	for i := range rows {
		for k, v := range rows[i] {
			rows[i][k] = mirror.NormalizeValue(v)
		}
	}
	cmp.MissingRecords = rows
	return nil
}

// identityColumn picks the column used for missing-record differencing:
// the primary key when one exists, else an "id" column, else "".
func (s *CompareService) identityColumn(ctx context.Context, remote *sql.DB, table string) (string, error) {
	pk, err := s.inspector.PrimaryKey(ctx, remote, table)
	if err != nil {
		return "", err
	}
	if pk != "" {
		return pk, nil
	}
	cols, err := s.inspector.ListColumns(ctx, remote, table)
	if err != nil {
		return "", err
	}
	for _, c := range cols {
		if strings.EqualFold(c.Name, "id") {
			return c.Name, nil
		}
	}
	return "", nil
}
