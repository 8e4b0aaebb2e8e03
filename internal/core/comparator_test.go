package core

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/mirrord/internal/mirror"
	"github.com/edvin/mirrord/internal/model"
	"github.com/edvin/mirrord/internal/source"
)

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name        string
		mirrorCount int
		remoteCount int
		want        int
	}{
		{"both empty", 0, 0, 0},
		{"remote empty mirror populated", 5, 0, 100},
		{"nothing mirrored", 0, 200, 0},
		{"half mirrored", 50, 100, 50},
		{"rounds to nearest", 1, 3, 33},
		{"rounds up", 2, 3, 67},
		{"almost complete never rounds to 100", 999, 1000, 99},
		{"single missing row", 99, 100, 99},
		{"mirror ahead of remote capped", 150, 100, 100},
		{"complete", 100, 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, computeProgress(tt.mirrorCount, tt.remoteCount))
		})
	}
}

func TestClassifyTable(t *testing.T) {
	assert.Equal(t, model.TableNotBackedUp, classifyTable(0, 0))
	assert.Equal(t, model.TableNotBackedUp, classifyTable(0, 100))
	assert.Equal(t, model.TablePartiallyBackedUp, classifyTable(10, 50))
	assert.Equal(t, model.TablePartiallyBackedUp, classifyTable(999, computeProgress(999, 1000)))
	assert.Equal(t, model.TableFullyBackedUp, classifyTable(100, 100))
}

func TestFillMissingRecordsCapsDetail(t *testing.T) {
	remote, rmock, err := sqlmock.New()
	require.NoError(t, err)
	defer remote.Close()

	rmock.ExpectQuery("SELECT kcu.column_name").
		WithArgs("events").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id"))

	remoteKeys := sqlmock.NewRows([]string{"id"})
	for i := 1; i <= 150; i++ {
		remoteKeys.AddRow(int64(i))
	}
	rmock.ExpectQuery(`SELECT "id" FROM "events"`).WillReturnRows(remoteKeys)

	// The key list handed to the source is already capped, so only that
	// many rows come back.
	fetched := sqlmock.NewRows([]string{"id", "payload"})
	for i := 1; i <= missingRecordsCap; i++ {
		fetched.AddRow(int64(i), []byte("payload"))
	}
	rmock.ExpectQuery(`SELECT \* FROM "events" WHERE "id"::text = ANY\(\$1\)`).
		WillReturnRows(fetched)

	// Mirror side holds none of the identities.
	mirrorDB := new(mockDB)
	mirrorDB.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return(newEmptyMockRows(), nil)

	svc := NewCompareService(
		source.NewInspector(zerolog.Nop()),
		mirror.NewManager(mirrorDB, zerolog.Nop()),
		zerolog.Nop(),
	)

	cmp := model.TableComparison{Table: "events", RemoteCount: 150}
	require.NoError(t, svc.fillMissingRecords(context.Background(), remote, "events", "mirror_prod_events", &cmp))

	// The count reports every missing identity; the record detail is
	// bounded.
	assert.Equal(t, 150, cmp.MissingRecordsCount)
	assert.Len(t, cmp.MissingRecords, missingRecordsCap)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestIsInternalTable(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		backend string
		want    bool
	}{
		{"jobs table", "jobs", "prod", true},
		{"backends table", "backends", "prod", true},
		{"migration table", "goose_db_version", "prod", true},
		{"plain user table", "users", "prod", false},
		{"mirrored internal table", "mirror_prod_jobs", "prod", true},
		{"doubly mirrored internal table", "mirror_prod_mirror_prod_jobs", "prod", true},
		{"mirrored user table", "mirror_prod_users", "prod", false},
		{"other backend namespace", "mirror_staging_jobs", "prod", false},
		{"jobs-prefixed user table", "jobs_archive", "prod", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isInternalTable(tt.table, tt.backend))
		})
	}
}
