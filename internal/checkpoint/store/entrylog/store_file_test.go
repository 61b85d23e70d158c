package entrylog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"truckgate/internal/checkpoint/models"
	"truckgate/pkg/platform/sentinel"
)

type EntryLogSuite struct {
	suite.Suite
	jsonPath string
	csvPath  string
	store    *FileStore
	ctx      context.Context
	base     time.Time
}

func TestEntryLogSuite(t *testing.T) {
	suite.Run(t, new(EntryLogSuite))
}

func (s *EntryLogSuite) SetupTest() {
	dir := s.T().TempDir()
	s.jsonPath = filepath.Join(dir, "entry_logs.json")
	s.csvPath = filepath.Join(dir, "entry_logs.csv")
	store, err := Open(s.jsonPath, s.csvPath)
	s.Require().NoError(err)
	s.store = store
	s.ctx = context.Background()
	s.base = time.Date(2025, 7, 4, 6, 0, 0, 123456789, time.UTC)
}

func (s *EntryLogSuite) entry(i int, status models.Outcome) models.LogEntry {
	return models.LogEntry{
		Timestamp:  s.base.Add(time.Duration(i) * time.Minute),
		DriverName: fmt.Sprintf("Driver %d", i),
		QRCode:     fmt.Sprintf("code-%d", i),
		Status:     status,
		Notes:      "issued at 2025-07-01T00:00:00Z",
	}
}

// TestInitialization verifies missing files are created with the header row.
func (s *EntryLogSuite) TestInitialization() {
	data, err := os.ReadFile(s.csvPath)
	s.Require().NoError(err)
	s.Equal("timestamp,driver_name,qr_code,status,notes\n", string(data))

	data, err = os.ReadFile(s.jsonPath)
	s.Require().NoError(err)
	s.JSONEq(`[]`, string(data))

	all, err := s.store.LoadAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

// TestRoundTrip verifies N appends yield N entries in order in both files.
func (s *EntryLogSuite) TestRoundTrip() {
	const n = 7
	var appended []models.LogEntry
	for i := 0; i < n; i++ {
		e := s.entry(i, models.OutcomeValid)
		s.Require().NoError(s.store.Append(s.ctx, e))
		appended = append(appended, e)
	}

	all, err := s.store.LoadAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, n)
	for i := range appended {
		s.True(sameEntry(appended[i], all[i]), "entry %d", i)
	}

	fromJSON, _, err := readJSON(s.jsonPath)
	s.Require().NoError(err)
	fromCSV, _, err := readCSV(s.csvPath)
	s.Require().NoError(err)
	s.Require().Len(fromJSON, n)
	s.Require().Len(fromCSV, n)
	for i := 0; i < n; i++ {
		s.True(sameEntry(fromJSON[i], fromCSV[i]), "row %d", i)
		s.True(sameEntry(appended[i], fromCSV[i]), "row %d", i)
	}

	s.NoError(s.store.Verify(s.ctx))

	s.Run("reopen sees the same log", func() {
		reopened, err := Open(s.jsonPath, s.csvPath)
		s.Require().NoError(err)
		again, err := reopened.LoadAll(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(again, n)
		for i := range again {
			s.True(sameEntry(all[i], again[i]))
		}
	})
}

// TestReadsAreIdempotent verifies two reads without an append are identical.
func (s *EntryLogSuite) TestReadsAreIdempotent() {
	s.Require().NoError(s.store.Append(s.ctx, s.entry(1, models.OutcomeInvalid)))

	first, err := s.store.LoadAll(s.ctx)
	s.Require().NoError(err)
	second, err := s.store.LoadAll(s.ctx)
	s.Require().NoError(err)
	s.Equal(first, second)
}

// TestRecentAndStats verifies the read side used by GET /logs.
func (s *EntryLogSuite) TestRecentAndStats() {
	statuses := []models.Outcome{models.OutcomeValid, models.OutcomeInvalid, models.OutcomeSystemError, models.OutcomeValid}
	for i, st := range statuses {
		s.Require().NoError(s.store.Append(s.ctx, s.entry(i, st)))
	}

	recent, err := s.store.Recent(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal("code-3", recent[0].QRCode)
	s.Equal("code-2", recent[1].QRCode)

	all, err := s.store.Recent(s.ctx, 0)
	s.Require().NoError(err)
	s.Len(all, 4)

	stats, err := s.store.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.Stats{Total: 4, Valid: 2, Invalid: 2, SystemErrors: 1}, stats)
}

// TestAwkwardText verifies text that CSV or JSON would rewrite stays consistent.
func (s *EntryLogSuite) TestAwkwardText() {
	e := models.LogEntry{
		Timestamp:  s.base,
		DriverName: "O'Brien, \"Big\" Jim",
		QRCode:     "line1\r\nline2\rline3\xff",
		Status:     models.OutcomeInvalid,
		Notes:      "  leading space, trailing comma,",
	}
	s.Require().NoError(s.store.Append(s.ctx, e))
	s.Require().NoError(s.store.Verify(s.ctx))

	all, err := s.store.LoadAll(s.ctx)
	s.Require().NoError(err)
	s.Equal("line1\nline2\nline3\uFFFD", all[0].QRCode)
	s.Equal(e.DriverName, all[0].DriverName)

	_, err = Open(s.jsonPath, s.csvPath)
	s.NoError(err)
}

// TestRejectsUnknownStatus verifies only the fixed outcome labels are stored.
func (s *EntryLogSuite) TestRejectsUnknownStatus() {
	err := s.store.Append(s.ctx, s.entry(0, models.Outcome("Entrada válida")))
	s.Require().Error(err)
	all, _ := s.store.LoadAll(s.ctx)
	s.Empty(all)
}

// TestCopyCSV verifies the export streams the tabular file.
func (s *EntryLogSuite) TestCopyCSV() {
	s.Require().NoError(s.store.Append(s.ctx, s.entry(0, models.OutcomeValid)))

	var buf bytes.Buffer
	n, err := s.store.CopyCSV(s.ctx, &buf)
	s.Require().NoError(err)
	s.EqualValues(buf.Len(), n)

	records, err := csv.NewReader(&buf).ReadAll()
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(Header, records[0])
	s.Equal([]string{"2025-07-04T06:00:00.123456789Z", "Driver 0", "code-0", "VALID", "issued at 2025-07-01T00:00:00Z"}, records[1])
}

// TestConcurrentAppends verifies the critical section keeps both files aligned.
func (s *EntryLogSuite) TestConcurrentAppends() {
	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.NoError(s.store.Append(s.ctx, s.entry(i, models.OutcomeInvalid)))
		}(i)
	}
	wg.Wait()

	all, err := s.store.LoadAll(s.ctx)
	s.Require().NoError(err)
	s.Len(all, n)
	s.NoError(s.store.Verify(s.ctx))
}

func TestAppendRollsBackCSVWhenJSONWriteFails(t *testing.T) {
	jsonDir := t.TempDir()
	csvDir := t.TempDir()
	jsonPath := filepath.Join(jsonDir, "logs", "entry_logs.json")
	csvPath := filepath.Join(csvDir, "entry_logs.csv")
	store, err := Open(jsonPath, csvPath)
	require.NoError(t, err)

	before, err := os.ReadFile(csvPath)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(filepath.Dir(jsonPath)))

	err = store.Append(context.Background(), models.LogEntry{Timestamp: time.Now(), QRCode: "x", Status: models.OutcomeInvalid})
	require.Error(t, err)
	assert.False(t, errors.Is(err, sentinel.ErrDiverged))

	after, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	all, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)

	// The store stays usable once the directory is back.
	require.NoError(t, os.MkdirAll(filepath.Dir(jsonPath), 0o755))
	require.NoError(t, store.Append(context.Background(), models.LogEntry{Timestamp: time.Now(), QRCode: "y", Status: models.OutcomeValid}))
	require.NoError(t, store.Verify(context.Background()))
}

func TestFailedRollbackMarksStoreDiverged(t *testing.T) {
	jsonPath := filepath.Join(t.TempDir(), "logs", "entry_logs.json")
	csvPath := filepath.Join(t.TempDir(), "entry_logs.csv")
	store, err := Open(jsonPath, csvPath)
	require.NoError(t, err)

	orig := truncateFile
	truncateFile = func(string, int64) error { return errors.New("read-only filesystem") }
	t.Cleanup(func() { truncateFile = orig })

	require.NoError(t, os.RemoveAll(filepath.Dir(jsonPath)))

	err = store.Append(context.Background(), models.LogEntry{Timestamp: time.Now(), QRCode: "x", Status: models.OutcomeInvalid})
	require.ErrorIs(t, err, sentinel.ErrDiverged)

	require.NoError(t, os.MkdirAll(filepath.Dir(jsonPath), 0o755))
	err = store.Append(context.Background(), models.LogEntry{Timestamp: time.Now(), QRCode: "y", Status: models.OutcomeValid})
	require.ErrorIs(t, err, sentinel.ErrDiverged)
	require.ErrorIs(t, store.Verify(context.Background()), sentinel.ErrDiverged)
}

func TestOpenDetectsDivergence(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "entry_logs.json")
	csvPath := filepath.Join(dir, "entry_logs.csv")

	doc := `[{"timestamp":"2025-01-01T00:00:00Z","driver_name":"Ana","qr_code":"c1","status":"VALID","notes":""}]`
	require.NoError(t, os.WriteFile(jsonPath, []byte(doc), 0o644))
	require.NoError(t, os.WriteFile(csvPath, []byte(strings.Join(Header, ",")+"\n"), 0o644))

	_, err := Open(jsonPath, csvPath)
	require.ErrorIs(t, err, sentinel.ErrDiverged)

	t.Run("field mismatch", func(t *testing.T) {
		row := "2025-01-01T00:00:00Z,Ana,c1,INVALID,\n"
		require.NoError(t, os.WriteFile(csvPath, []byte(strings.Join(Header, ",")+"\n"+row), 0o644))
		_, err := Open(jsonPath, csvPath)
		require.ErrorIs(t, err, sentinel.ErrDiverged)
	})

	t.Run("matching files open", func(t *testing.T) {
		row := "2025-01-01T00:00:00Z,Ana,c1,VALID,\n"
		require.NoError(t, os.WriteFile(csvPath, []byte(strings.Join(Header, ",")+"\n"+row), 0o644))
		store, err := Open(jsonPath, csvPath)
		require.NoError(t, err)
		all, err := store.LoadAll(context.Background())
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "Ana", all[0].DriverName)
	})
}

func TestOpenCorruptFiles(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		dir := t.TempDir()
		jsonPath := filepath.Join(dir, "entry_logs.json")
		require.NoError(t, os.WriteFile(jsonPath, []byte("[{"), 0o644))
		_, err := Open(jsonPath, filepath.Join(dir, "entry_logs.csv"))
		require.ErrorIs(t, err, sentinel.ErrCorrupt)
	})

	t.Run("csv header", func(t *testing.T) {
		dir := t.TempDir()
		csvPath := filepath.Join(dir, "entry_logs.csv")
		require.NoError(t, os.WriteFile(csvPath, []byte("a,b\n"), 0o644))
		_, err := Open(filepath.Join(dir, "entry_logs.json"), csvPath)
		require.ErrorIs(t, err, sentinel.ErrCorrupt)
	})

	t.Run("csv timestamp", func(t *testing.T) {
		dir := t.TempDir()
		csvPath := filepath.Join(dir, "entry_logs.csv")
		body := strings.Join(Header, ",") + "\nyesterday,Ana,c1,VALID,\n"
		require.NoError(t, os.WriteFile(csvPath, []byte(body), 0o644))
		_, err := Open(filepath.Join(dir, "entry_logs.json"), csvPath)
		require.ErrorIs(t, err, sentinel.ErrCorrupt)
	})
}
