// Package entrylog persists the append-only log of validation attempts.
//
// Every entry is written twice: as an element of a JSON array document and
// as a row of a CSV file. Both representations are owned by one critical
// section and must agree row for row; a store that can no longer guarantee
// that refuses further appends with sentinel.ErrDiverged.
package entrylog

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"truckgate/internal/checkpoint/models"
	"truckgate/pkg/platform/fsutil"
	"truckgate/pkg/platform/sentinel"
)

const filePerm = 0o644

// Header is the first row of the tabular log.
var Header = []string{"timestamp", "driver_name", "qr_code", "status", "notes"}

// FileStore is the dual-representation entry log.
type FileStore struct {
	jsonPath string
	csvPath  string

	mu       sync.RWMutex
	entries  []models.LogEntry
	csvSize  int64
	diverged bool
}

// Open loads both representations, initializing whichever is missing, and
// fails with sentinel.ErrDiverged if they disagree.
func Open(jsonPath, csvPath string) (*FileStore, error) {
	for _, p := range []string{jsonPath, csvPath} {
		if err := fsutil.EnsureDir(filepath.Dir(p)); err != nil {
			return nil, err
		}
	}

	fromJSON, jsonFound, err := readJSON(jsonPath)
	if err != nil {
		return nil, err
	}
	fromCSV, csvFound, err := readCSV(csvPath)
	if err != nil {
		return nil, err
	}
	if err := compare(fromJSON, fromCSV); err != nil {
		return nil, fmt.Errorf("open entry log: %w", err)
	}

	s := &FileStore{jsonPath: jsonPath, csvPath: csvPath, entries: fromJSON}
	if !jsonFound {
		if err := s.writeJSON(fromJSON); err != nil {
			return nil, fmt.Errorf("initialize entry log: %w", err)
		}
	}
	if !csvFound {
		if err := initCSV(csvPath); err != nil {
			return nil, fmt.Errorf("initialize entry log: %w", err)
		}
	}

	info, err := os.Stat(csvPath)
	if err != nil {
		return nil, fmt.Errorf("stat entry log: %w", err)
	}
	s.csvSize = info.Size()
	return s, nil
}

// LoadAll returns every entry in insertion order.
func (s *FileStore) LoadAll(_ context.Context) ([]models.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.LogEntry{}, s.entries...), nil
}

// Recent returns at most limit entries, most recent first.
func (s *FileStore) Recent(_ context.Context, limit int) ([]models.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]models.LogEntry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// Stats aggregates outcome counts over the whole log.
func (s *FileStore) Stats(_ context.Context) (models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats models.Stats
	for _, e := range s.entries {
		stats.Add(e)
	}
	return stats, nil
}

// Append records one entry in both representations. The CSV row is appended
// first; if the JSON rewrite then fails the row is truncated away again. When
// that rollback also fails the store is marked diverged.
func (s *FileStore) Append(_ context.Context, entry models.LogEntry) error {
	if !entry.Status.IsValid() {
		return fmt.Errorf("append entry: unknown status %q", entry.Status)
	}
	entry = sanitize(entry)

	row, err := encodeRow(entry)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.diverged {
		return fmt.Errorf("append entry: %w", sentinel.ErrDiverged)
	}

	if err := s.appendCSV(row); err != nil {
		return s.rollback(fmt.Errorf("append entry csv: %w", err))
	}

	next := make([]models.LogEntry, len(s.entries), len(s.entries)+1)
	copy(next, s.entries)
	next = append(next, entry)
	if err := s.writeJSON(next); err != nil {
		return s.rollback(fmt.Errorf("append entry json: %w", err))
	}

	s.entries = next
	s.csvSize += int64(len(row))
	return nil
}

// CopyCSV streams the tabular log to w.
func (s *FileStore) CopyCSV(_ context.Context, w io.Writer) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.csvPath)
	if err != nil {
		return 0, fmt.Errorf("open entry log csv: %w", err)
	}
	defer f.Close()
	return io.Copy(w, io.LimitReader(f, s.csvSize))
}

// Verify re-reads both files and checks they agree with each other and with
// the in-memory log.
func (s *FileStore) Verify(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.diverged {
		return sentinel.ErrDiverged
	}
	fromJSON, _, err := readJSON(s.jsonPath)
	if err != nil {
		return err
	}
	fromCSV, _, err := readCSV(s.csvPath)
	if err != nil {
		return err
	}
	if err := compare(fromJSON, fromCSV); err != nil {
		return err
	}
	return compare(s.entries, fromJSON)
}

func (s *FileStore) appendCSV(row []byte) error {
	f, err := os.OpenFile(s.csvPath, os.O_WRONLY|os.O_APPEND, filePerm)
	if err != nil {
		return err
	}
	if _, err := f.Write(row); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// truncateFile is swapped out by tests to simulate a failed rollback.
var truncateFile = os.Truncate

// rollback must be called with s.mu held.
func (s *FileStore) rollback(cause error) error {
	if err := truncateFile(s.csvPath, s.csvSize); err != nil {
		s.diverged = true
		return fmt.Errorf("%w: %w (rollback failed: %v)", sentinel.ErrDiverged, cause, err)
	}
	return cause
}

func (s *FileStore) writeJSON(entries []models.LogEntry) error {
	if entries == nil {
		entries = []models.LogEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entry log: %w", err)
	}
	return fsutil.AtomicWrite(s.jsonPath, data, filePerm)
}

func readJSON(path string) ([]models.LogEntry, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read entry log %s: %w", path, err)
	}
	var entries []models.LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, true, fmt.Errorf("decode entry log %s: %w: %w", path, sentinel.ErrCorrupt, err)
	}
	return entries, true, nil
}

func readCSV(path string) ([]models.LogEntry, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read entry log %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, false, nil
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, true, fmt.Errorf("decode entry log %s: %w: %w", path, sentinel.ErrCorrupt, err)
	}
	if len(records) == 0 || !slices.Equal(records[0], Header) {
		return nil, true, fmt.Errorf("decode entry log %s: %w: missing header", path, sentinel.ErrCorrupt)
	}

	entries := make([]models.LogEntry, 0, len(records)-1)
	for i, rec := range records[1:] {
		entry, err := decodeRow(rec)
		if err != nil {
			return nil, true, fmt.Errorf("decode entry log %s row %d: %w: %w", path, i+2, sentinel.ErrCorrupt, err)
		}
		entries = append(entries, entry)
	}
	return entries, true, nil
}

func initCSV(path string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return fsutil.AtomicWrite(path, buf.Bytes(), filePerm)
}

func encodeRow(e models.LogEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{
		e.Timestamp.Format(time.RFC3339Nano),
		e.DriverName,
		e.QRCode,
		string(e.Status),
		e.Notes,
	}); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRow(rec []string) (models.LogEntry, error) {
	if len(rec) != len(Header) {
		return models.LogEntry{}, fmt.Errorf("expected %d fields, got %d", len(Header), len(rec))
	}
	ts, err := time.Parse(time.RFC3339Nano, rec[0])
	if err != nil {
		return models.LogEntry{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return models.LogEntry{
		Timestamp:  ts,
		DriverName: rec[1],
		QRCode:     rec[2],
		Status:     models.Outcome(rec[3]),
		Notes:      rec[4],
	}, nil
}

func compare(a, b []models.LogEntry) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d structured entries vs %d tabular rows", sentinel.ErrDiverged, len(a), len(b))
	}
	for i := range a {
		if !sameEntry(a[i], b[i]) {
			return fmt.Errorf("%w: entry %d differs", sentinel.ErrDiverged, i)
		}
	}
	return nil
}

func sameEntry(a, b models.LogEntry) bool {
	return a.Timestamp.Equal(b.Timestamp) &&
		a.DriverName == b.DriverName &&
		a.QRCode == b.QRCode &&
		a.Status == b.Status &&
		a.Notes == b.Notes
}

// sanitize makes an entry representable identically in both files: CSV
// readers fold carriage returns inside quoted fields and JSON replaces
// invalid UTF-8.
func sanitize(e models.LogEntry) models.LogEntry {
	e.Timestamp = e.Timestamp.UTC()
	e.DriverName = cleanText(e.DriverName)
	e.QRCode = cleanText(e.QRCode)
	e.Notes = cleanText(e.Notes)
	return e
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func cleanText(s string) string {
	return newlines.Replace(strings.ToValidUTF8(s, "\uFFFD"))
}
