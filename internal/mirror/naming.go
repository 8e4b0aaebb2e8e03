package mirror

import (
	"fmt"
	"strings"

	"github.com/edvin/mirrord/internal/source"
)

// TablePrefix marks every mirror table in the local store.
const TablePrefix = "mirror_"

// Bookkeeping columns added to every mirror table.
const (
	CreatedAtColumn = "mirror_created_at"
	UpdatedAtColumn = "mirror_updated_at"
)

// TableName derives the local mirror table name for a backend's source
// table. Mirror tables are namespaced by backend so that two backends
// mirroring same-named tables never collide.
func TableName(backend, table string) (string, error) {
	b, err := source.SanitizeIdent(backend)
	if err != nil {
		return "", fmt.Errorf("backend name: %w", err)
	}
	t, err := source.SanitizeIdent(table)
	if err != nil {
		return "", fmt.Errorf("table name: %w", err)
	}
	return TablePrefix + b + "_" + t, nil
}

// SourceTable extracts the source table name from a namespaced mirror table
// name, or returns "" if the name does not belong to the given backend.
func SourceTable(backend, mirrorTable string) string {
	prefix := TablePrefix + backend + "_"
	if !strings.HasPrefix(mirrorTable, prefix) {
		return ""
	}
	return strings.TrimPrefix(mirrorTable, prefix)
}

// IsBookkeepingColumn reports whether a column is mirror-maintained rather
// than copied from the source.
func IsBookkeepingColumn(name string) bool {
	return name == CreatedAtColumn || name == UpdatedAtColumn
}
