package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dmv-price-tracker/internal/cache"
	"github.com/sells-group/dmv-price-tracker/internal/config"
	"github.com/sells-group/dmv-price-tracker/internal/db"
	"github.com/sells-group/dmv-price-tracker/internal/output"
	"github.com/sells-group/dmv-price-tracker/internal/resilience"
	"github.com/sells-group/dmv-price-tracker/pkg/rentcast"
)

// NewClient builds the RentCast client from config.
func NewClient(cfg *config.Config) rentcast.Client {
	return rentcast.NewClient(cfg.RentCast.APIKey,
		rentcast.WithBaseURL(cfg.RentCast.BaseURL),
		rentcast.WithTimeout(time.Duration(cfg.RentCast.TimeoutSecs)*time.Second),
		rentcast.WithRetry(resilience.FromFetchConfig(
			cfg.Fetch.MaxAttempts,
			cfg.Fetch.InitialBackoffMs,
			cfg.Fetch.MaxBackoffMs,
		)),
	)
}

// Setup builds a Pipeline with the optional cache and sink named in cfg.
// An optional dependency that cannot be opened is logged and skipped. The
// returned cleanup closes whatever was opened.
func Setup(ctx context.Context, cfg *config.Config) (*Pipeline, func()) {
	var (
		opts    []Option
		closers []func()
	)

	if cfg.Cache.Path != "" {
		c, err := cache.Open(ctx, cfg.Cache.Path)
		if err != nil {
			zap.L().Warn("pipeline: response cache disabled", zap.String("path", cfg.Cache.Path), zap.Error(err))
		} else {
			if n, err := c.DeleteExpired(ctx); err == nil && n > 0 {
				zap.L().Debug("pipeline: pruned cache", zap.Int("expired", n))
			}
			opts = append(opts, WithCache(c))
			closers = append(closers, func() { _ = c.Close() })
		}
	}

	if cfg.Output.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.Output.DatabaseURL)
		if err != nil {
			zap.L().Warn("pipeline: postgres sink disabled", zap.Error(err))
		} else {
			opts = append(opts, WithSink(output.NewPostgresSink(pool, cfg.Output.Table)))
			closers = append(closers, pool.Close)
		}
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return New(cfg, NewClient(cfg), opts...), cleanup
}
