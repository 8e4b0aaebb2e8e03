package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func backendRow(name string, dbURL, bucketURL *string, attrs map[string]string) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = name
		*(dest[1].(**string)) = dbURL
		*(dest[2].(**string)) = bucketURL
		if attrs != nil {
			b, _ := json.Marshal(attrs)
			*(dest[3].(*[]byte)) = b
		}
		return nil
	}}
}

func TestResolveBackend(t *testing.T) {
	db := new(mockDB)
	svc := NewBackendService(db)

	dbURL := "postgres://remote:5432/app"
	db.On("QueryRow", mock.Anything, mock.Anything, []any{"prod"}).
		Return(backendRow("prod", &dbURL, nil, map[string]string{"region": "eu-north-1"}))

	b, err := svc.Resolve(context.Background(), "prod")
	require.NoError(t, err)
	assert.Equal(t, "prod", b.Name)
	require.NotNil(t, b.DatabaseURL)
	assert.Equal(t, dbURL, *b.DatabaseURL)
	assert.Nil(t, b.BucketURL)
	assert.Equal(t, "eu-north-1", b.Attributes["region"])
}

func TestResolveBackendNotFound(t *testing.T) {
	db := new(mockDB)
	svc := NewBackendService(db)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})

	_, err := svc.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrBackendNotFound)
}

func TestDeleteBackendNotFound(t *testing.T) {
	db := new(mockDB)
	svc := NewBackendService(db)

	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	err := svc.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrBackendNotFound)
}
