// Package store persists the values document to disk as YAML.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/bnema/chartform/internal/values"
)

const filePerm = 0o644

// Store owns a values.yaml file. Load and Save are serialized by a mutex so
// concurrent API requests cannot interleave a read and a write-back and lose
// an update.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a store for the values document at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the location of the values document.
func (s *Store) Path() string {
	return s.path
}

// Load reads and parses the values document. A missing file yields an empty
// tree, matching an unconfigured chart; a parse failure is surfaced to the
// caller because nothing downstream can proceed without the tree.
func (s *Store) Load() (values.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (values.Tree, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return values.Tree{}, nil
		}
		return nil, fmt.Errorf("read values file: %w", err)
	}

	var tree values.Tree
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse values file: %w", err)
	}
	if tree == nil {
		tree = values.Tree{}
	}
	return tree, nil
}

// Save writes tree back to the values file. The write goes through a temp
// file in the same directory plus a rename, so readers never see a torn
// document.
func (s *Store) Save(tree values.Tree) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(tree)
}

func (s *Store) save(tree values.Tree) error {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".values-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp values file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write values file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close values file: %w", err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod values file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace values file: %w", err)
	}
	return nil
}

// Update runs fn against the current tree and persists its result while
// holding the store lock, giving callers a read-modify-write without a race
// against other requests.
func (s *Store) Update(fn func(values.Tree) (values.Tree, error)) (values.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, err := s.load()
	if err != nil {
		return nil, err
	}
	next, err := fn(tree)
	if err != nil {
		return nil, err
	}
	if err := s.save(next); err != nil {
		return nil, err
	}
	return next, nil
}
