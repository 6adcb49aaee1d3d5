// Package fetch retrieves listing batches for an ordered list of region keys,
// isolating each region's failure from the rest of the run.
package fetch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/dmv-price-tracker/internal/listing"
	"github.com/sells-group/dmv-price-tracker/pkg/rentcast"
)

// Cache stores encoded batches by key. *cache.SQLite satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, body []byte, ttl time.Duration) error
}

// RegionResult is the outcome for one region key.
type RegionResult struct {
	Key   string
	Batch Batch
	Err   error
}

// Fetcher pulls region batches from RentCast.
type Fetcher struct {
	client      rentcast.Client
	limiter     *rate.Limiter
	concurrency int
	cache       Cache
	ttl         time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithPacing spaces consecutive network fetches by at least d. Zero disables
// pacing.
func WithPacing(d time.Duration) Option {
	return func(f *Fetcher) {
		if d <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		f.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithConcurrency allows up to n regions in flight at once.
func WithConcurrency(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithCache serves fresh batches from c and stores new ones for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(f *Fetcher) {
		f.cache = c
		f.ttl = ttl
	}
}

// New creates a Fetcher. Defaults: 500ms pacing, one region at a time, no
// cache.
func New(client rentcast.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      client,
		limiter:     rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchRegion fetches one region. The listings endpoint is tried first; any
// non-2xx status falls back to the market summary endpoint, and a non-2xx
// fallback yields an empty batch. Network and decode failures are returned.
func (f *Fetcher) FetchRegion(ctx context.Context, key string) (Batch, error) {
	if b, ok := f.cached(ctx, key); ok {
		return b, nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return Batch{}, err
	}

	raw, err := f.client.Listings(ctx, key)
	if err == nil {
		b := ListingsBatch(raw)
		f.store(ctx, key, b)
		return b, nil
	}

	var se *rentcast.StatusError
	if !errors.As(err, &se) {
		return Batch{}, err
	}
	zap.L().Debug("fetch: listings unavailable, trying market summary",
		zap.String("region", key),
		zap.Int("status", se.StatusCode),
	)

	ms, err := f.client.MarketSummary(ctx, key)
	if err != nil {
		if errors.As(err, &se) {
			return EmptyBatch(), nil
		}
		return Batch{}, err
	}
	b := SummaryBatch(ms)
	f.store(ctx, key, b)
	return b, nil
}

// FetchAll fetches every key and returns one result per key in key order.
// A region's failure is logged and recorded in its result; it never stops
// the other regions.
func (f *Fetcher) FetchAll(ctx context.Context, keys []string) []RegionResult {
	results := make([]RegionResult, len(keys))

	var g errgroup.Group
	g.SetLimit(f.concurrency)

	for i, key := range keys {
		g.Go(func() error {
			b, err := f.FetchRegion(ctx, key)
			results[i] = RegionResult{Key: key, Batch: b, Err: err}
			if err != nil {
				zap.L().Warn("fetch: region failed",
					zap.String("region", key),
					zap.Error(err),
				)
				return nil // don't abort other regions on individual failure
			}
			zap.L().Info("fetch: region done",
				zap.String("region", key),
				zap.String("kind", b.Kind().String()),
				zap.Int("listings", len(b.Listings())),
			)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Fold concatenates the listings of every result in order. Failed regions
// contribute nothing.
func Fold(results []RegionResult) []listing.RawListing {
	n := 0
	for _, r := range results {
		n += len(r.Batch.Listings())
	}
	out := make([]listing.RawListing, 0, n)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		out = append(out, r.Batch.Listings()...)
	}
	return out
}

// Failed counts results that carry an error.
func Failed(results []RegionResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

func cacheKey(key string) string {
	return "region:" + key
}

func (f *Fetcher) cached(ctx context.Context, key string) (Batch, bool) {
	if f.cache == nil {
		return Batch{}, false
	}
	data, ok, err := f.cache.Get(ctx, cacheKey(key))
	if err != nil {
		zap.L().Warn("fetch: cache read failed", zap.String("region", key), zap.Error(err))
		return Batch{}, false
	}
	if !ok {
		return Batch{}, false
	}
	b, err := decodeBatch(data)
	if err != nil {
		zap.L().Warn("fetch: cached batch unreadable", zap.String("region", key), zap.Error(err))
		return Batch{}, false
	}
	zap.L().Debug("fetch: cache hit", zap.String("region", key))
	return b, true
}

func (f *Fetcher) store(ctx context.Context, key string, b Batch) {
	if f.cache == nil {
		return
	}
	data, err := encodeBatch(b)
	if err == nil {
		err = f.cache.Put(ctx, cacheKey(key), data, f.ttl)
	}
	if err != nil {
		zap.L().Warn("fetch: cache write failed", zap.String("region", key), zap.Error(err))
	}
}
