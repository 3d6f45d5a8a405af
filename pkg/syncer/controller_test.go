package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iammatthias/office-space/pkg/cache"
	"github.com/iammatthias/office-space/pkg/remote"
	"github.com/iammatthias/office-space/pkg/types"
)

// fakeFetcher serves pages from an in-memory ascending sample slice,
// honoring the remote store's paging contract.
type fakeFetcher struct {
	mu        sync.Mutex
	rows      []types.Sample
	calls     []remote.Query
	failFirst error // returned on the first call only
	failAll   error // returned on every call
}

func (f *fakeFetcher) Fetch(ctx context.Context, id string, q remote.Query) ([]types.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, q)

	if f.failAll != nil {
		return nil, f.failAll
	}
	if f.failFirst != nil {
		err := f.failFirst
		f.failFirst = nil
		return nil, err
	}

	var out []types.Sample
	if !q.Before.IsZero() {
		for i := len(f.rows) - 1; i >= 0 && len(out) < q.Limit; i-- {
			if f.rows[i].Timestamp.Before(q.Before) {
				out = append(out, f.rows[i])
			}
		}
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	} else {
		for _, s := range f.rows {
			if s.Timestamp.After(q.After) {
				out = append(out, s)
				if len(out) == q.Limit {
					break
				}
			}
		}
	}

	return out, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]types.Sample
	failGet bool
	failPut bool
	puts    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]types.Sample)}
}

func (c *fakeCache) Get(ctx context.Context, id string) ([]types.Sample, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failGet {
		return nil, false, &cache.CacheError{Op: "get", Err: errors.New("storage unavailable")}
	}

	entry, ok := c.entries[id]
	if !ok {
		return nil, false, nil
	}
	out := make([]types.Sample, len(entry))
	copy(out, entry)
	return out, true, nil
}

func (c *fakeCache) Put(ctx context.Context, id string, samples []types.Sample) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failPut {
		return &cache.CacheError{Op: "put", Err: errors.New("disk full")}
	}

	entry := make([]types.Sample, len(samples))
	copy(entry, samples)
	c.entries[id] = entry
	c.puts++
	return nil
}

func ascending(start time.Time, n int) []types.Sample {
	out := make([]types.Sample, n)
	for i := range out {
		out[i] = types.Sample{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Value:     float64(i),
		}
	}
	return out
}

func TestInitialLoadPagesUntilShortPage(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Exactly one full page: a second (empty) page must be fetched to
	// learn the store is exhausted.
	fetcher := &fakeFetcher{rows: ascending(base, 24)}
	store := newFakeCache()

	ctrl := New(Config{SeriesID: "temperature", PageSize: 24}, fetcher, store, nil)

	if ctrl.State() != StateIdle {
		t.Fatalf("Expected Idle before start, got %v", ctrl.State())
	}

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if ctrl.State() != StateReady {
		t.Errorf("Expected Ready after start, got %v", ctrl.State())
	}
	if got := fetcher.callCount(); got != 2 {
		t.Errorf("Expected 2 page fetches (count == limit schedules another), got %d", got)
	}

	snap := ctrl.Snapshot()
	if len(snap.Data) != 24 {
		t.Errorf("Expected 24 samples, got %d", len(snap.Data))
	}
	if snap.Loading {
		t.Error("Expected loading=false after start")
	}
	if len(store.entries["temperature"]) != 24 {
		t.Errorf("Expected 24 samples cached, got %d", len(store.entries["temperature"]))
	}
}

func TestInitialLoadShortPageStops(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	fetcher := &fakeFetcher{rows: ascending(base, 10)}
	ctrl := New(Config{SeriesID: "temperature", PageSize: 24}, fetcher, newFakeCache(), nil)

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if got := fetcher.callCount(); got != 1 {
		t.Errorf("Expected a single fetch (10 < 24 means caught up), got %d", got)
	}
}

func TestCacheHitFetchesOnlyNewer(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	all := ascending(base, 30)
	fetcher := &fakeFetcher{rows: all}

	store := newFakeCache()
	store.entries["temperature"] = all[:20]

	ctrl := New(Config{SeriesID: "temperature", PageSize: 100}, fetcher, store, nil)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	snap := ctrl.Snapshot()
	if len(snap.Data) != 30 {
		t.Errorf("Expected 30 samples after catch-up, got %d", len(snap.Data))
	}

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	if len(fetcher.calls) != 1 {
		t.Fatalf("Expected 1 fetch, got %d", len(fetcher.calls))
	}
	wantAfter := all[19].Timestamp
	if !fetcher.calls[0].After.Equal(wantAfter) {
		t.Errorf("Expected fetch after cached latest %v, got %v", wantAfter, fetcher.calls[0].After)
	}
}

func TestCacheErrorTreatedAsMiss(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	fetcher := &fakeFetcher{rows: ascending(base, 5)}
	store := newFakeCache()
	store.failGet = true

	ctrl := New(Config{SeriesID: "temperature", PageSize: 24}, fetcher, store, nil)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start failed despite cache error: %v", err)
	}

	snap := ctrl.Snapshot()
	if len(snap.Data) != 5 {
		t.Errorf("Expected full remote fetch of 5 samples, got %d", len(snap.Data))
	}
	if snap.Err != nil {
		t.Errorf("Cache error must not surface: %v", snap.Err)
	}
}

func TestCachePutFailureRecovered(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	fetcher := &fakeFetcher{rows: ascending(base, 5)}
	store := newFakeCache()
	store.failPut = true

	ctrl := New(Config{SeriesID: "temperature", PageSize: 24}, fetcher, store, nil)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start failed despite cache write error: %v", err)
	}

	// Merged data stays in memory; the write failure never reaches consumers
	snap := ctrl.Snapshot()
	if len(snap.Data) != 5 {
		t.Errorf("Expected 5 samples in memory, got %d", len(snap.Data))
	}
	if snap.Err != nil {
		t.Errorf("Cache write error must not surface: %v", snap.Err)
	}
	if ctrl.State() != StateReady {
		t.Errorf("Expected Ready, got %v", ctrl.State())
	}
}

func TestQueryErrorSurfaced(t *testing.T) {
	fetcher := &fakeFetcher{failAll: &remote.QueryError{Err: errors.New("no such table")}}

	ctrl := New(Config{SeriesID: "temperature", PageSize: 24}, fetcher, newFakeCache(), nil)
	err := ctrl.Start(context.Background())
	if err == nil {
		t.Fatal("Expected error from Start")
	}

	if ctrl.State() != StateReady {
		t.Errorf("Expected Ready after failure, got %v", ctrl.State())
	}
	if snap := ctrl.Snapshot(); snap.Err == nil {
		t.Error("Expected error retained in snapshot")
	}
	if got := fetcher.callCount(); got != 1 {
		t.Errorf("QueryError must not be retried, got %d calls", got)
	}
}

func TestNetworkErrorRetriedOnce(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	fetcher := &fakeFetcher{
		rows:      ascending(base, 3),
		failFirst: &remote.NetworkError{Err: errors.New("connection reset")},
	}

	ctrl := New(Config{SeriesID: "temperature", PageSize: 24}, fetcher, newFakeCache(), nil)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Expected retry to recover, got %v", err)
	}

	if got := fetcher.callCount(); got != 2 {
		t.Errorf("Expected exactly one retry (2 calls), got %d", got)
	}
	if snap := ctrl.Snapshot(); len(snap.Data) != 3 {
		t.Errorf("Expected 3 samples, got %d", len(snap.Data))
	}
}

func TestBoundaryOlderPagesBackward(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	all := ascending(base, 30)
	fetcher := &fakeFetcher{rows: all}

	// Cache holds only the newest 10 samples so older data exists remotely
	store := newFakeCache()
	store.entries["temperature"] = all[20:]

	ctrl := New(Config{SeriesID: "temperature", PageSize: 100}, fetcher, store, nil)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctrl.Boundary(context.Background(), DirOlder)

	snap := ctrl.Snapshot()
	if len(snap.Data) != 30 {
		t.Errorf("Expected 30 samples after paging backward, got %d", len(snap.Data))
	}
	if !snap.Data[0].Timestamp.Equal(base) {
		t.Errorf("Expected earliest sample at %v, got %v", base, snap.Data[0].Timestamp)
	}
}

func TestBoundaryThrottleCoalesces(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	fetcher := &fakeFetcher{rows: ascending(base, 5)}
	ctrl := New(Config{SeriesID: "temperature", PageSize: 24, Throttle: 80 * time.Millisecond},
		fetcher, newFakeCache(), nil)

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	after := fetcher.callCount()

	// Both events land inside the throttle window opened by Start
	ctrl.Boundary(context.Background(), DirNewer)
	ctrl.Boundary(context.Background(), DirNewer)

	if got := fetcher.callCount(); got != after {
		t.Fatalf("Expected throttled events to defer, got %d extra fetches", got-after)
	}

	// The deferred fetch fires once at the window's end
	time.Sleep(200 * time.Millisecond)

	if got := fetcher.callCount(); got != after+1 {
		t.Errorf("Expected exactly 1 coalesced fetch, got %d", got-after)
	}
}

func TestOnChangeNotified(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	fetcher := &fakeFetcher{rows: ascending(base, 5)}
	ctrl := New(Config{SeriesID: "temperature", PageSize: 24}, fetcher, newFakeCache(), nil)

	var mu sync.Mutex
	notified := 0
	ctrl.OnChange(func() {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if notified == 0 {
		t.Error("Expected at least one change notification")
	}
}
