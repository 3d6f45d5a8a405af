package remote

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iammatthias/office-space/pkg/sensors"
	"github.com/iammatthias/office-space/pkg/types"
)

// NetworkError indicates the transport to the remote store failed.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// QueryError indicates the remote store rejected the query.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Query bounds one page of a range-limited fetch. When Before is set the
// page is read newest-first from the store; the fetcher reverses it so
// callers always receive ascending samples. Limit must be positive;
// receiving fewer than Limit rows is the caller's only "caught up" signal.
type Query struct {
	After  time.Time
	Before time.Time
	Limit  int
}

// Store is the remote paginated reader.
type Store interface {
	Fetch(ctx context.Context, sensorID string, q Query) ([]types.Sample, error)
	Close() error
}

// timeLayout matches the collector's DATETIME column format. Timestamps are
// bound and compared as strings, so writer and reader must agree on it.
const timeLayout = "2006-01-02 15:04:05.999999999"

// parseLayouts covers the formats observed in collector databases.
var parseLayouts = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
}

// sqliteStore reads the collector's SQLite database directly.
type sqliteStore struct {
	db *sql.DB
}

// Open opens a read-only connection to the collector database.
func Open(path string) (Store, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("open %s: %w", path, err)}
	}

	db.SetMaxOpenConns(4)

	return &sqliteStore{db: db}, nil
}

// Fetch returns up to q.Limit samples for one sensor column, ascending by
// time. Rows with NULL or unparsable fields are skipped and backfilled from
// subsequent rows, so the returned page is short only when the store is
// genuinely exhausted in that direction: callers rely on a short page as
// their sole "no more data" signal.
func (s *sqliteStore) Fetch(ctx context.Context, sensorID string, q Query) ([]types.Sample, error) {
	d, err := sensors.Lookup(sensorID)
	if err != nil {
		return nil, err
	}

	if q.Limit <= 0 {
		return nil, &QueryError{Err: fmt.Errorf("limit must be positive, got %d", q.Limit)}
	}

	// Table and column names come from the static registry, never from
	// the caller, so building the statement by name is safe.
	var stmt string
	var bound string
	descending := !q.Before.IsZero()
	if descending {
		stmt = fmt.Sprintf(
			"SELECT timestamp, %s FROM %s WHERE timestamp < ? ORDER BY timestamp DESC LIMIT ?",
			d.Column, d.Table)
		bound = formatTime(q.Before)
	} else {
		stmt = fmt.Sprintf(
			"SELECT timestamp, %s FROM %s WHERE timestamp > ? ORDER BY timestamp ASC LIMIT ?",
			d.Column, d.Table)
		bound = formatTime(q.After)
	}

	samples := make([]types.Sample, 0, q.Limit)
	for {
		page, raw, last, err := s.queryPage(ctx, stmt, bound, q.Limit)
		if err != nil {
			return nil, err
		}

		for _, sm := range page {
			samples = append(samples, sm)
			if len(samples) == q.Limit {
				break
			}
		}

		// The cursor advances by the last raw row, not the last usable
		// sample, so skipped rows are paged past instead of shrinking
		// the returned page below the limit.
		if len(samples) == q.Limit || raw < q.Limit {
			break
		}
		bound = last
	}

	if descending {
		reverse(samples)
	}

	return samples, nil
}

// queryPage runs one LIMIT-bounded statement and returns the usable samples
// in scan order, the raw row count, and the raw timestamp of the last row.
func (s *sqliteStore) queryPage(ctx context.Context, stmt, bound string, limit int) ([]types.Sample, int, string, error) {
	rows, err := s.db.QueryContext(ctx, stmt, bound, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, "", &NetworkError{Err: err}
		}
		return nil, 0, "", &QueryError{Err: err}
	}
	defer rows.Close()

	var (
		page []types.Sample
		raw  int
		last string
	)
	for rows.Next() {
		var ts string
		var value sql.NullFloat64
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, 0, "", &QueryError{Err: err}
		}
		raw++
		last = ts

		if !value.Valid {
			continue
		}
		t, ok := parseTime(ts)
		if !ok {
			continue
		}

		page = append(page, types.Sample{Timestamp: t, Value: value.Float64})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, "", &NetworkError{Err: err}
	}

	return page, raw, last, nil
}

// Close closes the store connection.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func reverse(samples []types.Sample) {
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
}
