package model

import "time"

// FileInfo describes a single file, whether it lives in a bucket listing or
// on local disk. Key is the slash-delimited logical path.
type FileInfo struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified,omitzero"`
}

// Folder is a node of a recursive folder tree. Child folders are keyed by
// path segment.
type Folder struct {
	Name    string             `json:"name"`
	Path    string             `json:"path"`
	Files   []FileInfo         `json:"files"`
	Folders map[string]*Folder `json:"folders"`
}

// NewFolder creates an empty folder node.
func NewFolder(name, path string) *Folder {
	return &Folder{
		Name:    name,
		Path:    path,
		Files:   []FileInfo{},
		Folders: map[string]*Folder{},
	}
}
