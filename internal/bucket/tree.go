package bucket

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/edvin/mirrord/internal/model"
)

// addFile inserts a file into the folder tree, creating intermediate
// folders keyed by path segment.
func addFile(root *model.Folder, key string, size int64, mod time.Time) {
	segments := strings.Split(key, "/")
	node := root
	for i := 0; i < len(segments)-1; i++ {
		seg := segments[i]
		child, ok := node.Folders[seg]
		if !ok {
			path := strings.Join(segments[:i+1], "/")
			child = model.NewFolder(seg, path)
			node.Folders[seg] = child
		}
		node = child
	}
	node.Files = append(node.Files, model.FileInfo{
		Key:          key,
		Name:         segments[len(segments)-1],
		Size:         size,
		LastModified: mod,
	})
}

// Flatten reduces a folder tree to a path-keyed file map.
func Flatten(root *model.Folder) map[string]model.FileInfo {
	out := map[string]model.FileInfo{}
	var walk func(f *model.Folder)
	walk = func(f *model.Folder) {
		for _, file := range f.Files {
			out[file.Key] = file
		}
		for _, name := range sortedFolderNames(f) {
			walk(f.Folders[name])
		}
	}
	walk(root)
	return out
}

func sortedFolderNames(f *model.Folder) []string {
	names := make([]string, 0, len(f.Folders))
	for name := range f.Folders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListLocal builds a folder tree from a local directory. A missing root
// yields an empty tree.
func (c *Client) ListLocal(localRoot string) (*model.Folder, error) {
	root := model.NewFolder("", "")

	if _, err := os.Stat(localRoot); os.IsNotExist(err) {
		return root, nil
	}

	err := filepath.WalkDir(localRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localRoot, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		addFile(root, filepath.ToSlash(rel), info.Size(), info.ModTime())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}
