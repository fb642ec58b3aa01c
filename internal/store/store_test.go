package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/chartform/internal/values"
)

func TestLoadMissingFileYieldsEmptyTree(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "values.yaml"))

	tree, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.Empty(t, tree)
}

func TestLoadParseFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, []byte("image: [unclosed"), 0o644))

	_, err := New(path).Load()
	assert.Error(t, err)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	s := New(path)

	tree := values.Tree{
		"image":        map[string]any{"repository": "nginx", "tag": "1.0"},
		"replicas":     3,
		"environments": []any{"dev", "staging"},
	}
	require.NoError(t, s.Save(tree))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, tree, loaded)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "values.yaml", entries[0].Name())
}

func TestUpdateReadModifyWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	s := New(path)
	require.NoError(t, s.Save(values.Tree{"replicas": 1}))

	next, err := s.Update(func(tree values.Tree) (values.Tree, error) {
		tree["replicas"] = 5
		return tree, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, next["replicas"])

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, loaded["replicas"])
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	tree, err := New(path).Load()
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.Empty(t, tree)
}
