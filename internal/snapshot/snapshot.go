// Package snapshot persists the last known state of every tracked domain.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// Store loads and saves one JSON document per kind. Last writer wins.
type Store interface {
	// Load decodes the stored document into v. found is false when nothing
	// was saved yet; v is left untouched then.
	Load(ctx context.Context, kind string, v any) (found bool, err error)
	Save(ctx context.Context, kind string, v any) error
}

// FileStore keeps each kind in status.<kind>.json under Dir.
type FileStore struct {
	Dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

// Path returns the file backing kind.
func (s *FileStore) Path(kind string) string {
	return filepath.Join(s.Dir, "status."+kind+".json")
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context, kind string, v any) (bool, error) {
	data, err := os.ReadFile(s.Path(kind))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read snapshot %s: %w", kind, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode snapshot %s: %w", kind, err)
	}
	return true, nil
}

// Save implements Store. The file is replaced atomically.
func (s *FileStore) Save(_ context.Context, kind string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", kind, err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".status."+kind+".*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot %s: %w", kind, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot %s: %w", kind, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(kind)); err != nil {
		return fmt.Errorf("replace snapshot %s: %w", kind, err)
	}
	return nil
}

// Backend is the document storage a DBStore writes through.
type Backend interface {
	LoadSnapshot(ctx context.Context, kind string) ([]byte, bool, error)
	SaveSnapshot(ctx context.Context, kind string, data []byte) error
}

// DBStore keeps snapshots in the stats database.
type DBStore struct {
	backend Backend
}

// NewDBStore wraps a database backend.
func NewDBStore(b Backend) *DBStore {
	return &DBStore{backend: b}
}

// Load implements Store.
func (s *DBStore) Load(ctx context.Context, kind string, v any) (bool, error) {
	data, ok, err := s.backend.LoadSnapshot(ctx, kind)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode snapshot %s: %w", kind, err)
	}
	return true, nil
}

// Save implements Store.
func (s *DBStore) Save(ctx context.Context, kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", kind, err)
	}
	return s.backend.SaveSnapshot(ctx, kind, data)
}
