package core

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/mirrord/internal/model"
)

func TestNewJobIDFormat(t *testing.T) {
	id := NewJobID("prod", model.JobKindDatabase, "users")
	assert.Regexp(t, regexp.MustCompile(`^prod-database-users-\d+-[0-9a-f-]{8}$`), id)

	id = NewJobID("prod", model.JobKindFiles, "")
	assert.Regexp(t, regexp.MustCompile(`^prod-files-\d+-[0-9a-f-]{8}$`), id)
}

func TestNewJobIDUnique(t *testing.T) {
	a := NewJobID("prod", model.JobKindDatabase, "")
	b := NewJobID("prod", model.JobKindDatabase, "")
	assert.NotEqual(t, a, b)
}

func jobRow(j model.Job) *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = j.ID
		*(dest[1].(*string)) = j.Status
		*(dest[2].(*string)) = j.Kind
		*(dest[3].(*string)) = j.BackendName
		*(dest[4].(**string)) = j.TableName
		*(dest[5].(*int)) = j.Progress
		*(dest[6].(*string)) = j.Message
		*(dest[7].(*[]byte)) = j.Result
		*(dest[8].(**string)) = j.Error
		*(dest[9].(*bool)) = j.IsAutomatic
		return nil
	}}
}

func noJobRow() *mockRow {
	return &mockRow{scanFunc: func(dest ...any) error {
		return pgx.ErrNoRows
	}}
}

func TestSetStatusCreatesMissingJob(t *testing.T) {
	db := new(mockDB)
	svc := NewJobService(db)

	// First Get misses, insert succeeds, second Get returns the record.
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(noJobRow()).Once()
	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.HasPrefix(strings.TrimSpace(sql), "INSERT INTO jobs")
	}), mock.Anything).Return(pgconn.CommandTag{}, nil).Once()
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(jobRow(model.Job{
			ID:          "prod-database-123-abcd1234",
			Status:      model.JobStatusProcessing,
			Kind:        model.JobKindDatabase,
			BackendName: "prod",
		})).Once()

	j, err := svc.SetStatus(context.Background(), "prod-database-123-abcd1234", JobPatch{
		Status:      model.JobStatusProcessing,
		Kind:        model.JobKindDatabase,
		BackendName: "prod",
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusProcessing, j.Status)
	db.AssertExpectations(t)
}

func TestSetStatusCreateRequiresKindAndBackend(t *testing.T) {
	db := new(mockDB)
	svc := NewJobService(db)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(noJobRow())

	progress := 50
	_, err := svc.SetStatus(context.Background(), "orphan-job", JobPatch{Progress: &progress})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kind and backend name are required")

	// No partial record may be written.
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetStatusSparseUpdate(t *testing.T) {
	db := new(mockDB)
	svc := NewJobService(db)

	existing := model.Job{
		ID:          "prod-database-123-abcd1234",
		Status:      model.JobStatusProcessing,
		Kind:        model.JobKindDatabase,
		BackendName: "prod",
	}
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(jobRow(existing))

	var capturedSQL string
	var capturedArgs []any
	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		capturedSQL = sql
		return strings.HasPrefix(sql, "UPDATE jobs SET")
	}), mock.MatchedBy(func(args []any) bool {
		capturedArgs = args
		return true
	})).Return(pgconn.CommandTag{}, nil)

	progress := 40
	message := "backed up table users"
	_, err := svc.SetStatus(context.Background(), existing.ID, JobPatch{
		Progress: &progress,
		Message:  &message,
	})
	require.NoError(t, err)

	assert.Contains(t, capturedSQL, "updated_at = now()")
	assert.Contains(t, capturedSQL, "progress = $1")
	assert.Contains(t, capturedSQL, "message = $2")
	assert.NotContains(t, capturedSQL, "status =")
	assert.NotContains(t, capturedSQL, "error =")
	require.Len(t, capturedArgs, 3)
	assert.Equal(t, 40, capturedArgs[0])
	assert.Equal(t, "backed up table users", capturedArgs[1])
	assert.Equal(t, existing.ID, capturedArgs[2])
}

func TestSetStatusRejectsTerminalTransition(t *testing.T) {
	db := new(mockDB)
	svc := NewJobService(db)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(jobRow(model.Job{
			ID:          "prod-database-123-abcd1234",
			Status:      model.JobStatusCompleted,
			Kind:        model.JobKindDatabase,
			BackendName: "prod",
		}))

	_, err := svc.SetStatus(context.Background(), "prod-database-123-abcd1234", JobPatch{
		Status: model.JobStatusProcessing,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is final")

	// A terminal record is never rewritten.
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetJobNotFound(t *testing.T) {
	db := new(mockDB)
	svc := NewJobService(db)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(noJobRow())

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestDeleteJobNotFound(t *testing.T) {
	db := new(mockDB)
	svc := NewJobService(db)

	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	err := svc.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestListJobsAppliesFilter(t *testing.T) {
	db := new(mockDB)
	svc := NewJobService(db)

	var capturedSQL string
	var capturedArgs []any
	db.On("Query", mock.Anything, mock.MatchedBy(func(sql string) bool {
		capturedSQL = sql
		return true
	}), mock.MatchedBy(func(args []any) bool {
		capturedArgs = args
		return true
	})).Return(newEmptyMockRows(), nil)

	_, err := svc.List(context.Background(), JobFilter{BackendName: "prod", Kind: model.JobKindFiles}, 0)
	require.NoError(t, err)

	assert.Contains(t, capturedSQL, "backend_name = $1")
	assert.Contains(t, capturedSQL, "kind = $2")
	assert.Contains(t, capturedSQL, "ORDER BY created_at DESC LIMIT $3")
	assert.Equal(t, []any{"prod", model.JobKindFiles, DefaultListLimit}, capturedArgs)
}

func TestSweepExpiredOnlyTerminalJobs(t *testing.T) {
	db := new(mockDB)
	svc := NewJobService(db)

	var capturedSQL string
	var capturedArgs []any
	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		capturedSQL = sql
		return true
	}), mock.MatchedBy(func(args []any) bool {
		capturedArgs = args
		return true
	})).Return(pgconn.NewCommandTag("DELETE 3"), nil)

	n, err := svc.SweepExpired(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	assert.Contains(t, capturedSQL, "status IN ($1, $2)")
	assert.Contains(t, capturedSQL, "updated_at < $3")
	require.Len(t, capturedArgs, 3)
	assert.Equal(t, model.JobStatusCompleted, capturedArgs[0])
	assert.Equal(t, model.JobStatusFailed, capturedArgs[1])
}

func TestJobTerminal(t *testing.T) {
	assert.False(t, (&model.Job{Status: model.JobStatusProcessing}).Terminal())
	assert.True(t, (&model.Job{Status: model.JobStatusCompleted}).Terminal())
	assert.True(t, (&model.Job{Status: model.JobStatusFailed}).Terminal())
}
