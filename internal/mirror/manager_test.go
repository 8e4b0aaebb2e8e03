package mirror

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/mirrord/internal/model"
)

func TestTableName(t *testing.T) {
	name, err := TableName("prod", "widgets")
	require.NoError(t, err)
	assert.Equal(t, "mirror_prod_widgets", name)

	_, err = TableName("prod; DROP", "widgets")
	require.Error(t, err)

	_, err = TableName("prod", `widgets"`)
	require.Error(t, err)
}

func TestSourceTable(t *testing.T) {
	assert.Equal(t, "widgets", SourceTable("prod", "mirror_prod_widgets"))
	assert.Equal(t, "", SourceTable("prod", "mirror_staging_widgets"))
	assert.Equal(t, "", SourceTable("prod", "jobs"))
}

func TestMapColumnType(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"integer", "BIGINT"},
		{"bigint", "BIGINT"},
		{"smallint", "BIGINT"},
		{"numeric", "NUMERIC"},
		{"double precision", "NUMERIC"},
		{"real", "NUMERIC"},
		{"boolean", "BOOLEAN"},
		{"timestamp with time zone", "TIMESTAMPTZ"},
		{"timestamp without time zone", "TIMESTAMPTZ"},
		{"date", "DATE"},
		{"character varying", "TEXT"},
		{"text", "TEXT"},
		{"jsonb", "TEXT"},
		{"uuid", "TEXT"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, mapColumnType(tt.src))
		})
	}
}

func TestBuildCreateTable_WithSourceID(t *testing.T) {
	ddl, err := buildCreateTable("mirror_prod_widgets", []model.Column{
		{Name: "id", Type: "integer"},
		{Name: "name", Type: "text"},
	})
	require.NoError(t, err)

	assert.Contains(t, ddl, `CREATE TABLE "mirror_prod_widgets"`)
	assert.Contains(t, ddl, `"id" BIGINT PRIMARY KEY`)
	assert.Contains(t, ddl, `"name" TEXT`)
	assert.Contains(t, ddl, `"mirror_created_at" TIMESTAMPTZ NOT NULL DEFAULT now()`)
	assert.Contains(t, ddl, `"mirror_updated_at" TIMESTAMPTZ NOT NULL DEFAULT now()`)
	assert.NotContains(t, ddl, "BIGSERIAL")
}

func TestBuildCreateTable_SurrogateID(t *testing.T) {
	ddl, err := buildCreateTable("mirror_prod_logs", []model.Column{
		{Name: "message", Type: "text"},
		{Name: "level", Type: "integer"},
	})
	require.NoError(t, err)

	assert.Contains(t, ddl, `"id" BIGSERIAL PRIMARY KEY`)
	assert.Contains(t, ddl, `"message" TEXT`)
	assert.Contains(t, ddl, `"level" BIGINT`)
}

func TestManager_EnsureTable_CreatesOnce(t *testing.T) {
	db := &mockDB{}
	m := NewManager(db, zerolog.Nop())
	ctx := context.Background()
	cols := []model.Column{{Name: "id", Type: "integer"}, {Name: "name", Type: "text"}}

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(boolRow(false)).Once()
	db.On("Exec", ctx, mock.MatchedBy(func(sql string) bool {
		return len(sql) > 12 && sql[:12] == "CREATE TABLE"
	}), mock.Anything).Return(pgconn.CommandTag{}, nil).Once()

	created, err := m.EnsureTable(ctx, "mirror_prod_widgets", cols)
	require.NoError(t, err)
	assert.True(t, created)
	db.AssertExpectations(t)
}

func TestManager_EnsureTable_Idempotent(t *testing.T) {
	db := &mockDB{}
	m := NewManager(db, zerolog.Nop())
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(boolRow(true)).Once()

	created, err := m.EnsureTable(ctx, "mirror_prod_widgets", []model.Column{{Name: "id", Type: "integer"}})
	require.NoError(t, err)
	assert.False(t, created)
	// No CREATE TABLE issued.
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_EnsureTable_UnsafeName(t *testing.T) {
	m := NewManager(&mockDB{}, zerolog.Nop())

	_, err := m.EnsureTable(context.Background(), `mirror_x"; DROP TABLE jobs; --`, nil)
	require.Error(t, err)
}
