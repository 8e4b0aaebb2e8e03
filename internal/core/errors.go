package core

import "errors"

var (
	// ErrBackendNotFound means no backend is registered under the name.
	ErrBackendNotFound = errors.New("backend not found")

	// ErrNotConfigured means the backend exists but lacks the connection
	// field the requested operation needs.
	ErrNotConfigured = errors.New("backend not configured")

	// ErrJobNotFound means no job record exists for the id.
	ErrJobNotFound = errors.New("job not found")
)
