package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iammatthias/office-space/internal/observability"
	"github.com/iammatthias/office-space/pkg/remote"
	"github.com/iammatthias/office-space/pkg/series"
	"github.com/iammatthias/office-space/pkg/types"
)

// State is the controller's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateLoadingInitial
	StateReady
	StateLoadingIncremental
)

// Direction selects which edge of the series a boundary event extends.
type Direction int

const (
	DirOlder Direction = iota
	DirNewer
)

// Fetcher is the remote paginated reader the controller pulls pages from.
type Fetcher interface {
	Fetch(ctx context.Context, sensorID string, q remote.Query) ([]types.Sample, error)
}

// Cache is the persistent local series store.
type Cache interface {
	Get(ctx context.Context, seriesID string) ([]types.Sample, bool, error)
	Put(ctx context.Context, seriesID string, samples []types.Sample) error
}

// Config holds per-series controller configuration.
type Config struct {
	SeriesID string
	PageSize int
	// Throttle is the minimum interval between incremental fetches.
	// Boundary events arriving inside the window coalesce into a single
	// deferred fetch at the window's end.
	Throttle time.Duration
}

// Controller orchestrates fetch, merge and cache for one series. It is the
// sole mutation path for the cached series: all writes go through its merge
// step, and at most one fetch is in flight at a time.
type Controller struct {
	cfg     Config
	fetcher Fetcher
	cache   Cache
	metrics *observability.Metrics

	mu         sync.Mutex
	state      State
	samples    []types.Sample
	err        error
	inFlight   bool
	lastFetch  time.Time
	pending    bool
	pendingDir Direction
	onChange   func()
}

// New creates a controller in the Idle state. metrics may be nil.
func New(cfg Config, fetcher Fetcher, cache Cache, metrics *observability.Metrics) *Controller {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	return &Controller{
		cfg:     cfg,
		fetcher: fetcher,
		cache:   cache,
		metrics: metrics,
	}
}

// OnChange registers a callback fired after every state or data change.
// Must be set before Start.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Start performs the initial load: cache first, then a paged remote fetch
// for anything newer than the cached latest (or everything on a miss).
// Cache failures are treated as a miss, never as fatal. Start is a no-op
// if the controller has left the Idle state. The returned error is also
// retained in the snapshot for consumers to display.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.state = StateLoadingInitial
	c.inFlight = true
	c.lastFetch = time.Now()
	c.mu.Unlock()
	c.notify()

	cached, ok, err := c.cache.Get(ctx, c.cfg.SeriesID)
	hit := err == nil && ok && len(cached) > 0
	c.metrics.ObserveCache(hit)

	var after time.Time
	if hit {
		_, latest, _ := series.Range(cached)
		after = latest

		// Cached data is usable immediately; the catch-up fetch runs
		// as a scheduled incremental.
		c.mu.Lock()
		c.samples = cached
		c.state = StateLoadingIncremental
		c.mu.Unlock()
		c.notify()
	}

	ferr := c.pageForward(ctx, after)
	c.finish(ferr)
	return ferr
}

// Boundary requests an incremental fetch extending the series in the given
// direction. Calls while a fetch is in flight are dropped; calls inside the
// throttle window coalesce into one deferred fetch at the window's end.
func (c *Controller) Boundary(ctx context.Context, dir Direction) {
	c.mu.Lock()
	if c.state == StateIdle || c.inFlight {
		c.mu.Unlock()
		return
	}

	now := time.Now()
	if wait := c.cfg.Throttle - now.Sub(c.lastFetch); wait > 0 {
		if !c.pending {
			c.pending = true
			c.pendingDir = dir
			time.AfterFunc(wait, func() {
				c.mu.Lock()
				c.pending = false
				d := c.pendingDir
				c.mu.Unlock()
				c.Boundary(ctx, d)
			})
		}
		c.mu.Unlock()
		return
	}

	c.state = StateLoadingIncremental
	c.inFlight = true
	c.lastFetch = now
	earliest, latest, _ := series.Range(c.samples)
	c.mu.Unlock()
	c.notify()

	var err error
	if dir == DirNewer || earliest.IsZero() {
		err = c.pageForward(ctx, latest)
	} else {
		err = c.pageBackward(ctx, earliest)
	}
	c.finish(err)
}

// Run performs the initial load and then refreshes the newest edge on a
// fixed interval until ctx is cancelled.
func (c *Controller) Run(ctx context.Context, refresh time.Duration) {
	c.Start(ctx)
	if refresh <= 0 {
		return
	}

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Boundary(ctx, DirNewer)
		}
	}
}

// Snapshot returns the consumer view of this series. Data is a copy.
func (c *Controller) Snapshot() types.SeriesView {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := make([]types.Sample, len(c.samples))
	copy(data, c.samples)

	return types.SeriesView{
		SeriesID: c.cfg.SeriesID,
		Data:     data,
		Loading:  c.state == StateLoadingInitial || c.state == StateLoadingIncremental,
		Err:      c.err,
	}
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// pageForward fetches ascending pages after the given timestamp until a
// short page signals the caller is caught up.
func (c *Controller) pageForward(ctx context.Context, after time.Time) error {
	for {
		rows, err := c.fetchPage(ctx, remote.Query{After: after, Limit: c.cfg.PageSize})
		if err != nil {
			return err
		}

		c.applyMerge(ctx, rows)

		// Fewer rows than the limit is the sole "no more data" signal.
		if len(rows) < c.cfg.PageSize {
			return nil
		}
		after = rows[len(rows)-1].Timestamp
	}
}

// pageBackward fetches descending pages before the given timestamp. The
// fetcher returns each page in ascending order already.
func (c *Controller) pageBackward(ctx context.Context, before time.Time) error {
	for {
		rows, err := c.fetchPage(ctx, remote.Query{Before: before, Limit: c.cfg.PageSize})
		if err != nil {
			return err
		}

		c.applyMerge(ctx, rows)

		if len(rows) < c.cfg.PageSize {
			return nil
		}
		before = rows[0].Timestamp
	}
}

// fetchPage issues one page fetch, retrying exactly once on a transport
// failure. Query rejections are surfaced without retry.
func (c *Controller) fetchPage(ctx context.Context, q remote.Query) ([]types.Sample, error) {
	rows, err := c.fetcher.Fetch(ctx, c.cfg.SeriesID, q)
	var ne *remote.NetworkError
	if err != nil && errors.As(err, &ne) && ctx.Err() == nil {
		rows, err = c.fetcher.Fetch(ctx, c.cfg.SeriesID, q)
	}
	if err != nil {
		return nil, err
	}

	c.metrics.ObserveFetch(c.cfg.SeriesID, len(rows))
	return rows, nil
}

// applyMerge merges a fetched page into the in-memory series and persists
// the result. A cache write failure is recovered locally (the merged data
// stays in memory and will be re-persisted by the next merge).
func (c *Controller) applyMerge(ctx context.Context, rows []types.Sample) {
	if len(rows) == 0 {
		return
	}

	start := time.Now()
	c.mu.Lock()
	c.samples = series.Merge(c.samples, rows)
	merged := c.samples
	c.mu.Unlock()
	c.metrics.ObserveMerge(time.Since(start))

	if err := c.cache.Put(ctx, c.cfg.SeriesID, merged); err != nil {
		c.metrics.ObserveCacheWriteError()
	}
	c.notify()
}

func (c *Controller) finish(err error) {
	c.mu.Lock()
	c.inFlight = false
	c.state = StateReady
	c.err = err
	c.mu.Unlock()

	if err != nil {
		c.metrics.ObserveFetchError(c.cfg.SeriesID)
	}
	c.notify()
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
