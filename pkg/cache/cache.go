package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/iammatthias/office-space/pkg/types"
)

// CacheError wraps any local store failure. Callers must treat it as a
// cache miss and fall back to a full remote fetch, never as fatal.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// IsCacheError reports whether err originated in the local store.
func IsCacheError(err error) bool {
	var ce *CacheError
	return errors.As(err, &ce)
}

// Config holds cache store configuration.
type Config struct {
	Path             string
	CompressionLevel int
	// Generation versions the persisted schema. Bumping it orphans every
	// key written under the previous generation, so reads miss and the
	// controllers re-fetch from the remote store (there is no migration
	// path for the encoded payload).
	Generation int
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() *Config {
	return &Config{
		Path:             "./data",
		CompressionLevel: 3,
		Generation:       1,
	}
}

// SeriesCache is the persistent local series store: one badger entry per
// series identifier, holding the full accumulated sample array. Put
// replaces the entry wholesale in a single transaction.
type SeriesCache struct {
	cfg *Config
	db  *badger.DB
	enc *encoder
}

// New opens (or creates) the cache store at cfg.Path.
func New(cfg *Config) (*SeriesCache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := badger.DefaultOptions(filepath.Join(cfg.Path, "seriescache"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &CacheError{Op: "open", Err: err}
	}

	enc, err := newEncoder(cfg.CompressionLevel)
	if err != nil {
		db.Close()
		return nil, &CacheError{Op: "open", Err: err}
	}

	return &SeriesCache{cfg: cfg, db: db, enc: enc}, nil
}

// Get returns the accumulated series for an identifier. The second return
// is false on a miss; any error is a CacheError and should be treated as a
// miss by the caller.
func (c *SeriesCache) Get(ctx context.Context, seriesID string) ([]types.Sample, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, &CacheError{Op: "get", Err: err}
	}

	var payload []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.key(seriesID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			payload = append([]byte{}, val...)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &CacheError{Op: "get", Err: err}
	}

	samples, err := c.enc.decodeSeries(payload)
	if err != nil {
		// An undecodable entry (e.g. written by an older build) reads
		// as a miss; the sync controller will re-fetch and overwrite.
		return nil, false, &CacheError{Op: "decode", Err: err}
	}

	return samples, true, nil
}

// Put replaces the stored series for an identifier.
func (c *SeriesCache) Put(ctx context.Context, seriesID string, samples []types.Sample) error {
	if err := ctx.Err(); err != nil {
		return &CacheError{Op: "put", Err: err}
	}

	payload, err := c.enc.encodeSeries(samples)
	if err != nil {
		return &CacheError{Op: "encode", Err: err}
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(c.key(seriesID), payload)
	})
	if err != nil {
		return &CacheError{Op: "put", Err: err}
	}

	return nil
}

// Close closes the underlying store.
func (c *SeriesCache) Close() error {
	c.enc.close()
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *SeriesCache) key(seriesID string) []byte {
	return []byte(fmt.Sprintf("g%d/%s", c.cfg.Generation, seriesID))
}

func nanoTime(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
