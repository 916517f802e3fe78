// Package storage implements the durable record store: named JSON
// collections on disk, one file per concern, each with an adjacent
// backup snapshot of the last-known-good value.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// RecordStore persists named collections as JSON files under a data
// directory. Saves are atomic from the caller's point of view: the new
// value is written to a temp file and renamed over the primary, and the
// previous primary is kept as <name>.json.bak for corruption recovery.
type RecordStore struct {
	dir    string
	logger *zap.Logger

	mu sync.Mutex
}

// NewRecordStore creates the data directory if needed and returns a store.
func NewRecordStore(dir string, logger *zap.Logger) (*RecordStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}
	return &RecordStore{dir: dir, logger: logger}, nil
}

// Dir returns the data directory the store writes under.
func (s *RecordStore) Dir() string {
	return s.dir
}

func (s *RecordStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *RecordStore) backupPath(name string) string {
	return filepath.Join(s.dir, name+".json.bak")
}

// Load reads a collection into v. A missing file leaves v untouched so
// the caller's default applies. A corrupted primary is recovered from the
// backup snapshot; only when both are unreadable does Load fail.
func (s *RecordStore) Load(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading collection %s: %w", name, err)
	}

	if err := json.Unmarshal(data, v); err == nil {
		return nil
	}

	s.logger.Warn("primary collection file corrupted, recovering from backup",
		zap.String("collection", name))

	backup, berr := os.ReadFile(s.backupPath(name))
	if berr != nil {
		return fmt.Errorf("collection %s corrupted and backup unreadable: %w", name, berr)
	}
	if err := json.Unmarshal(backup, v); err != nil {
		return fmt.Errorf("collection %s corrupted and backup corrupted: %w", name, err)
	}

	// Put the recovered value back in place so the next load is clean.
	if err := os.WriteFile(s.path(name), backup, 0o644); err != nil {
		s.logger.Error("failed to restore primary from backup",
			zap.String("collection", name), zap.Error(err))
	}

	return nil
}

// Save serializes v and replaces the collection. The previous primary
// becomes the backup snapshot before the rename, so a crash mid-save
// never loses the last-known-good value.
func (s *RecordStore) Save(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding collection %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing collection %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file for %s: %w", name, err)
	}

	primary := s.path(name)
	if _, err := os.Stat(primary); err == nil {
		if err := os.Rename(primary, s.backupPath(name)); err != nil {
			os.Remove(tmpName)
			return fmt.Errorf("rotating backup for %s: %w", name, err)
		}
	}

	if err := os.Rename(tmpName, primary); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing collection %s: %w", name, err)
	}

	return nil
}
