package model

import (
	"encoding/json"
	"time"
)

// Job statuses. A job is created as processing and transitions exactly once
// to completed or failed.
const (
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job kinds.
const (
	JobKindDatabase = "database"
	JobKindFiles    = "files"
)

// Job is one tracked asynchronous unit of backup or upload work.
type Job struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Kind        string          `json:"kind"`
	BackendName string          `json:"backend_name"`
	TableName   *string         `json:"table_name,omitempty"`
	Progress    int             `json:"progress"`
	Message     string          `json:"message,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       *string         `json:"error,omitempty"`
	IsAutomatic bool            `json:"is_automatic"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
