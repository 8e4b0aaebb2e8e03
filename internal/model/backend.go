package model

import "time"

// Backend is a named remote source: a database connection, a bucket URL, or
// both. Attributes carry opaque connection material (region, access keys).
type Backend struct {
	Name        string            `json:"name"`
	DatabaseURL *string           `json:"database_url,omitempty"`
	BucketURL   *string           `json:"bucket_url,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
