package remote

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/iammatthias/office-space/pkg/sensors"
)

// newTestDB creates a collector-shaped SQLite database and returns its path.
func newTestDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sensor_data.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open test db: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE bme280_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		pressure REAL,
		temperature REAL,
		humidity REAL
	)`)
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	return path
}

func insertTemperature(t *testing.T, path string, ts time.Time, value interface{}) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open test db: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(
		"INSERT INTO bme280_data (timestamp, temperature) VALUES (?, ?)",
		formatTime(ts), value)
	if err != nil {
		t.Fatalf("Failed to insert row: %v", err)
	}
}

func TestFetchAscendingPagination(t *testing.T) {
	path := newTestDB(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		insertTemperature(t, path, base.Add(time.Duration(i)*time.Minute), 20.0+float64(i))
	}

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	// First page from the beginning of time
	page1, err := store.Fetch(ctx, "temperature", Query{Limit: 2})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(page1))
	}
	if !page1[0].Timestamp.Equal(base) {
		t.Errorf("Expected first row at %v, got %v", base, page1[0].Timestamp)
	}

	// Cursor continues after the last seen timestamp
	page2, err := store.Fetch(ctx, "temperature", Query{After: page1[1].Timestamp, Limit: 2})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(page2) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(page2))
	}
	if page2[0].Value != 22.0 {
		t.Errorf("Expected value 22.0, got %f", page2[0].Value)
	}

	// Short final page signals "no more data"
	page3, err := store.Fetch(ctx, "temperature", Query{After: page2[1].Timestamp, Limit: 2})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(page3) != 1 {
		t.Errorf("Expected 1 row on final page, got %d", len(page3))
	}
}

func TestFetchBackwardReturnsAscending(t *testing.T) {
	path := newTestDB(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		insertTemperature(t, path, base.Add(time.Duration(i)*time.Minute), 20.0+float64(i))
	}

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	// Page backward from minute 4: expect minutes 1..3, still ascending
	rows, err := store.Fetch(context.Background(), "temperature", Query{
		Before: base.Add(4 * time.Minute),
		Limit:  3,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}

	for i := 1; i < len(rows); i++ {
		if !rows[i-1].Timestamp.Before(rows[i].Timestamp) {
			t.Errorf("Rows not ascending at index %d", i)
		}
	}
	if !rows[0].Timestamp.Equal(base.Add(time.Minute)) {
		t.Errorf("Expected earliest row at minute 1, got %v", rows[0].Timestamp)
	}
}

func TestFetchSkipsNullValues(t *testing.T) {
	path := newTestDB(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	insertTemperature(t, path, base, 20.0)
	insertTemperature(t, path, base.Add(time.Minute), nil)
	insertTemperature(t, path, base.Add(2*time.Minute), 22.0)

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	rows, err := store.Fetch(context.Background(), "temperature", Query{Limit: 10})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("Expected 2 rows after skipping NULL, got %d", len(rows))
	}
}

func TestFetchBackfillsSkippedRows(t *testing.T) {
	path := newTestDB(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// A NULL row inside the first page must not shrink the page below the
	// limit while usable rows remain: a short page means "no more data".
	insertTemperature(t, path, base, 20.0)
	insertTemperature(t, path, base.Add(time.Minute), nil)
	insertTemperature(t, path, base.Add(2*time.Minute), 22.0)
	insertTemperature(t, path, base.Add(3*time.Minute), 23.0)
	insertTemperature(t, path, base.Add(4*time.Minute), 24.0)

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	page1, err := store.Fetch(ctx, "temperature", Query{Limit: 3})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(page1) != 3 {
		t.Fatalf("Expected a full page of 3 despite the NULL row, got %d", len(page1))
	}
	if page1[2].Value != 23.0 {
		t.Errorf("Expected backfilled value 23.0, got %f", page1[2].Value)
	}

	// The row past the backfilled page is still reachable from the cursor
	page2, err := store.Fetch(ctx, "temperature", Query{After: page1[2].Timestamp, Limit: 3})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(page2) != 1 {
		t.Fatalf("Expected 1 remaining row, got %d", len(page2))
	}
	if page2[0].Value != 24.0 {
		t.Errorf("Expected value 24.0, got %f", page2[0].Value)
	}
}

func TestFetchBackfillsBackwardPages(t *testing.T) {
	path := newTestDB(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	insertTemperature(t, path, base, 20.0)
	insertTemperature(t, path, base.Add(time.Minute), 21.0)
	insertTemperature(t, path, base.Add(2*time.Minute), nil)
	insertTemperature(t, path, base.Add(3*time.Minute), 23.0)

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	// Paging backward from minute 4 across the NULL at minute 2 must still
	// fill the page from older rows.
	rows, err := store.Fetch(context.Background(), "temperature", Query{
		Before: base.Add(4 * time.Minute),
		Limit:  2,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected a full backward page of 2, got %d", len(rows))
	}
	if rows[0].Value != 21.0 || rows[1].Value != 23.0 {
		t.Errorf("Expected values 21.0 and 23.0, got %f and %f", rows[0].Value, rows[1].Value)
	}
}

func TestFetchUnknownSensor(t *testing.T) {
	store, err := Open(newTestDB(t))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	_, err = store.Fetch(context.Background(), "co2", Query{Limit: 10})
	if !errors.Is(err, sensors.ErrUnknownSensor) {
		t.Errorf("Expected ErrUnknownSensor, got %v", err)
	}
}

func TestFetchInvalidLimit(t *testing.T) {
	store, err := Open(newTestDB(t))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	_, err = store.Fetch(context.Background(), "temperature", Query{})
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Errorf("Expected QueryError for zero limit, got %v", err)
	}
}

func TestFetchMissingTableIsQueryError(t *testing.T) {
	// Database exists but has no light table
	store, err := Open(newTestDB(t))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	_, err = store.Fetch(context.Background(), "light", Query{Limit: 10})
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Errorf("Expected QueryError for missing table, got %v", err)
	}
}
