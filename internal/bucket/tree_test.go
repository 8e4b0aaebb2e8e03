package bucket

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/mirrord/internal/model"
)

func TestAddFile_BuildsNestedTree(t *testing.T) {
	root := model.NewFolder("", "")
	now := time.Now()

	addFile(root, "docs/reports/q1.pdf", 100, now)
	addFile(root, "docs/readme.md", 10, now)
	addFile(root, "logo.png", 5, now)

	require.Len(t, root.Files, 1)
	assert.Equal(t, "logo.png", root.Files[0].Name)

	docs := root.Folders["docs"]
	require.NotNil(t, docs)
	assert.Equal(t, "docs", docs.Path)
	require.Len(t, docs.Files, 1)
	assert.Equal(t, "docs/readme.md", docs.Files[0].Key)

	reports := docs.Folders["reports"]
	require.NotNil(t, reports)
	assert.Equal(t, "docs/reports", reports.Path)
	require.Len(t, reports.Files, 1)
	assert.Equal(t, "q1.pdf", reports.Files[0].Name)
	assert.Equal(t, int64(100), reports.Files[0].Size)
}

func TestFlatten(t *testing.T) {
	root := model.NewFolder("", "")
	addFile(root, "a/b/c.txt", 1, time.Time{})
	addFile(root, "a/d.txt", 2, time.Time{})
	addFile(root, "e.txt", 3, time.Time{})

	flat := Flatten(root)
	require.Len(t, flat, 3)
	assert.Equal(t, int64(1), flat["a/b/c.txt"].Size)
	assert.Equal(t, int64(2), flat["a/d.txt"].Size)
	assert.Equal(t, int64(3), flat["e.txt"].Size)
}

func TestListLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("hi"), 0o644))

	c := NewClient(zerolog.Nop())
	tree, err := c.ListLocal(dir)
	require.NoError(t, err)

	flat := Flatten(tree)
	require.Len(t, flat, 2)
	assert.Equal(t, int64(5), flat["docs/a.txt"].Size)
	assert.Equal(t, "a.txt", flat["docs/a.txt"].Name)
	assert.Equal(t, int64(2), flat["b.txt"].Size)
}

func TestListLocal_MissingRootIsEmpty(t *testing.T) {
	c := NewClient(zerolog.Nop())
	tree, err := c.ListLocal(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, Flatten(tree))
}
