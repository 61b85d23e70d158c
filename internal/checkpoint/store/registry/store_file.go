// Package registry persists driver records keyed by their issued code.
//
// The JSON document on disk is a single object mapping code to record. The
// store keeps the authoritative copy in memory behind one mutex and flushes
// the whole document atomically on every mutation, so readers never observe
// a torn write and concurrent issues cannot lose updates.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"truckgate/internal/checkpoint/models"
	"truckgate/pkg/platform/fsutil"
	"truckgate/pkg/platform/sentinel"
)

const filePerm = 0o644

// FileStore is the file-backed registry.
type FileStore struct {
	path string

	mu      sync.RWMutex
	drivers map[string]models.DriverRecord
}

// Open loads the registry document at path, creating an empty one if it does
// not exist yet. A document that cannot be decoded is reported as
// sentinel.ErrCorrupt and left untouched.
func Open(path string) (*FileStore, error) {
	if err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}

	s := &FileStore{path: path, drivers: make(map[string]models.DriverRecord)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.flush(s.drivers); err != nil {
			return nil, fmt.Errorf("initialize registry: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}

	drivers, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode registry %s: %w", path, err)
	}
	s.drivers = drivers
	return s, nil
}

func decode(data []byte) (map[string]models.DriverRecord, error) {
	var drivers map[string]models.DriverRecord
	if err := json.Unmarshal(data, &drivers); err != nil {
		return nil, fmt.Errorf("%w: %w", sentinel.ErrCorrupt, err)
	}
	if drivers == nil {
		drivers = make(map[string]models.DriverRecord)
	}
	for code, rec := range drivers {
		if rec.Code != code {
			return nil, fmt.Errorf("%w: record under %q carries code %q", sentinel.ErrCorrupt, code, rec.Code)
		}
	}
	return drivers, nil
}

// Path returns the location of the registry document.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns a copy of every record keyed by code.
func (s *FileStore) Load(_ context.Context) (map[string]models.DriverRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.DriverRecord, len(s.drivers))
	for code, rec := range s.drivers {
		out[code] = rec
	}
	return out, nil
}

// Find returns the record issued under code.
func (s *FileStore) Find(_ context.Context, code string) (models.DriverRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.drivers[code]; ok {
		return rec, nil
	}
	return models.DriverRecord{}, sentinel.ErrNotFound
}

// Exists reports whether code has been issued.
func (s *FileStore) Exists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.drivers[code]
	return ok, nil
}

// Count returns the number of registered drivers.
func (s *FileStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.drivers), nil
}

// Insert adds a new record. An existing code is rejected with
// sentinel.ErrConflict. The record is visible only after the document has
// been flushed.
func (s *FileStore) Insert(_ context.Context, rec models.DriverRecord) error {
	if rec.Code == "" {
		return fmt.Errorf("insert driver: empty code")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drivers[rec.Code]; ok {
		return fmt.Errorf("insert driver %s: %w", rec.Code, sentinel.ErrConflict)
	}

	s.drivers[rec.Code] = rec
	if err := s.flush(s.drivers); err != nil {
		delete(s.drivers, rec.Code)
		return fmt.Errorf("insert driver %s: %w", rec.Code, err)
	}
	return nil
}

// Save replaces the entire mapping. Keys must match each record's code.
func (s *FileStore) Save(_ context.Context, drivers map[string]models.DriverRecord) error {
	next := make(map[string]models.DriverRecord, len(drivers))
	for code, rec := range drivers {
		if rec.Code != code {
			return fmt.Errorf("save registry: record under %q carries code %q", code, rec.Code)
		}
		next[code] = rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flush(next); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	s.drivers = next
	return nil
}

// flush must be called with s.mu held for writing, or before s is shared.
func (s *FileStore) flush(drivers map[string]models.DriverRecord) error {
	data, err := json.MarshalIndent(drivers, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	return fsutil.AtomicWrite(s.path, data, filePerm)
}
