package request

// StartJob starts a backup or restore job for a backend.
type StartJob struct {
	Kind  string `json:"kind" validate:"required,oneof=database files"`
	Table string `json:"table,omitempty"`
}
