package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/edvin/mirrord/internal/core"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestBackendGetNotFound(t *testing.T) {
	db := new(mockDB)
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})

	h := NewBackend(core.NewBackendService(db))

	r := withURLParam(httptest.NewRequest("GET", "/api/v1/backends/ghost", nil), "name", "ghost")
	w := httptest.NewRecorder()
	h.Get(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "backend not found")
}

func TestBackendCreateRejectsBadName(t *testing.T) {
	h := NewBackend(core.NewBackendService(new(mockDB)))

	r := httptest.NewRequest("POST", "/api/v1/backends", strings.NewReader(`{"name":"Not A Slug"}`))
	w := httptest.NewRecorder()
	h.Create(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation error")
}

func TestJobGetNotFound(t *testing.T) {
	db := new(mockDB)
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})

	h := NewJob(core.NewJobService(db))

	r := withURLParam(httptest.NewRequest("GET", "/api/v1/jobs/missing", nil), "id", "missing")
	w := httptest.NewRecorder()
	h.Get(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBackupStartRejectsUnknownKind(t *testing.T) {
	h := NewBackup(nil)

	r := withURLParam(
		httptest.NewRequest("POST", "/api/v1/backends/prod/backup", strings.NewReader(`{"kind":"tapes"}`)),
		"name", "prod")
	w := httptest.NewRecorder()
	h.Start(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
