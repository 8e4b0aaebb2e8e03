package model

// TableBackupResult is the per-table outcome of a database backup job.
type TableBackupResult struct {
	Table    string `json:"table"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
}

// DatabaseBackupResult is the result payload of a completed database backup
// job. Errors holds per-table failures that did not abort the job.
type DatabaseBackupResult struct {
	Tables []TableBackupResult `json:"tables"`
	Errors []string            `json:"errors,omitempty"`
}

// TableUploadResult is the per-table outcome of a database upload job.
type TableUploadResult struct {
	Table    string            `json:"table"`
	Uploaded int               `json:"uploaded"`
	Matched  int               `json:"matched"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// DatabaseUploadResult is the result payload of a completed database upload
// job.
type DatabaseUploadResult struct {
	Tables []TableUploadResult `json:"tables"`
	Errors []string            `json:"errors,omitempty"`
}

// FileBackupResult is the result payload of a files backup job.
type FileBackupResult struct {
	TotalFiles      int      `json:"total_files"`
	DownloadedFiles int      `json:"downloaded_files"`
	SkippedFiles    int      `json:"skipped_files"`
	Errors          []string `json:"errors,omitempty"`
}

// FileUploadResult is the result payload of a files upload job.
type FileUploadResult struct {
	TotalFiles    int      `json:"total_files"`
	UploadedFiles int      `json:"uploaded_files"`
	MatchedFiles  int      `json:"matched_files"`
	Errors        []string `json:"errors,omitempty"`
}

// Table comparison statuses.
const (
	TableFullyBackedUp     = "fully_backed_up"
	TablePartiallyBackedUp = "partially_backed_up"
	TableNotBackedUp       = "not_backed_up"
	TableMissingInRemote   = "missing_in_remote"
)

// TableComparison is the divergence report for a single table.
type TableComparison struct {
	Table               string `json:"table"`
	Status              string `json:"status"`
	RemoteCount         int    `json:"remote_count"`
	MirrorCount         int    `json:"mirror_count"`
	Progress            int    `json:"progress"`
	MissingRecordsCount int    `json:"missing_records_count"`
	MissingRecords      []Row  `json:"missing_records,omitempty"`
}

// DatabaseComparison is the full mirror-vs-remote report for a backend.
type DatabaseComparison struct {
	Backend string            `json:"backend"`
	Tables  []TableComparison `json:"tables"`
}

// FileComparison partitions the union of remote and local file sets.
// Equality is size-only; contents are not hashed.
type FileComparison struct {
	MissingInLocal  []FileInfo `json:"missing_in_local"`
	MissingInBucket []FileInfo `json:"missing_in_bucket"`
	Different       []FileInfo `json:"different"`
	Matching        []FileInfo `json:"matching"`
}
