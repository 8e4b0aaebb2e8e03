package request

// CreateBackend registers a remote backend.
type CreateBackend struct {
	Name        string            `json:"name" validate:"required,slug"`
	DatabaseURL *string           `json:"database_url,omitempty"`
	BucketURL   *string           `json:"bucket_url,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}
