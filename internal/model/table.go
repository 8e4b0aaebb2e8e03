package model

// Column describes one column of a source or mirror table.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Row is a single record keyed by column name.
type Row map[string]any

// TablePage is one page of table data for the synchronous read path.
type TablePage struct {
	Data       []Row `json:"data"`
	Total      int   `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}
