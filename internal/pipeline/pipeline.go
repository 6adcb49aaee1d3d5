// Package pipeline runs one ingestion pass: fetch every region, normalize,
// index, combine with parcel geometry, and write the artifact.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dmv-price-tracker/internal/config"
	"github.com/sells-group/dmv-price-tracker/internal/dataset"
	"github.com/sells-group/dmv-price-tracker/internal/fetch"
	"github.com/sells-group/dmv-price-tracker/internal/geometry"
	"github.com/sells-group/dmv-price-tracker/internal/listing"
	"github.com/sells-group/dmv-price-tracker/internal/output"
	"github.com/sells-group/dmv-price-tracker/internal/spatial"
	"github.com/sells-group/dmv-price-tracker/pkg/rentcast"
)

// ErrMissingCredential is returned before any fetch when no API key is set.
var ErrMissingCredential = eris.New("pipeline: rentcast api key is not set")

// Sink receives the combined dataset after the artifact is written.
type Sink interface {
	Write(ctx context.Context, t *dataset.Table) (int64, error)
}

// Result summarizes a run.
type Result struct {
	RunID            string             `json:"run_id"`
	RegionsAttempted int                `json:"regions_attempted"`
	RegionsFailed    int                `json:"regions_failed"`
	Listings         int                `json:"listings"`
	Coordinates      listing.CoordStats `json:"coordinates"`
	Indexed          int                `json:"indexed"`
	GeometrySources  int                `json:"geometry_sources"`
	OutputRows       int                `json:"output_rows"`
	OutputColumns    []string           `json:"output_columns"`
	OutputPath       string             `json:"output_path"`
	SinkRows         int64              `json:"sink_rows"`
	DurationMs       int64              `json:"duration_ms"`

	// Index is the in-memory spatial index over this run's listings.
	Index *spatial.Index `json:"-"`
}

// Pipeline wires the stages of one run.
type Pipeline struct {
	cfg     *config.Config
	fetcher *fetch.Fetcher
	sink    Sink
}

// Option configures a Pipeline.
type Option func(*pipelineOpts)

type pipelineOpts struct {
	sink  Sink
	cache fetch.Cache
}

// WithSink mirrors the combined dataset to s after each run.
func WithSink(s Sink) Option {
	return func(o *pipelineOpts) { o.sink = s }
}

// WithCache serves region batches from c when fresh.
func WithCache(c fetch.Cache) Option {
	return func(o *pipelineOpts) { o.cache = c }
}

// New creates a Pipeline that fetches through client.
func New(cfg *config.Config, client rentcast.Client, opts ...Option) *Pipeline {
	var o pipelineOpts
	for _, opt := range opts {
		opt(&o)
	}

	fopts := []fetch.Option{
		fetch.WithPacing(time.Duration(cfg.Fetch.PacingMs) * time.Millisecond),
		fetch.WithConcurrency(cfg.Fetch.Concurrency),
	}
	if o.cache != nil {
		fopts = append(fopts, fetch.WithCache(o.cache, time.Duration(cfg.Cache.TTLHours)*time.Hour))
	}

	return &Pipeline{
		cfg:     cfg,
		fetcher: fetch.New(client, fopts...),
		sink:    o.sink,
	}
}

// Run executes one pass. Only a missing credential, a schema mismatch, or
// a failed artifact write are fatal; region and geometry source failures
// are logged and skipped.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.New().String(), OutputPath: p.cfg.Output.Path}
	log := zap.L().With(zap.String("run_id", res.RunID))

	if p.cfg.RentCast.APIKey == "" {
		return nil, ErrMissingCredential
	}

	geoms := p.loadGeometry(log)
	res.GeometrySources = len(geoms)

	keys := p.cfg.RegionKeys()
	log.Info("pipeline: fetching regions", zap.Int("regions", len(keys)))
	results := p.fetcher.FetchAll(ctx, keys)
	res.RegionsAttempted = len(results)
	res.RegionsFailed = fetch.Failed(results)

	records := listing.Normalize(fetch.Fold(results))
	res.Listings = len(records)
	res.Coordinates = listing.Stats(records)
	if n := res.Coordinates.Sentinel + res.Coordinates.Absent; n > 0 {
		log.Warn("pipeline: listings without usable coordinates are kept in the output but not indexed",
			zap.Int("sentinel", res.Coordinates.Sentinel),
			zap.Int("absent", res.Coordinates.Absent),
		)
	}

	res.Index = spatial.FromListings(records)
	res.Indexed = res.Index.Size()
	log.Info("pipeline: spatial index built", zap.Int("points", res.Indexed))

	combined, err := dataset.Combine(dataset.ProjectListings(records), geoms...)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: combine")
	}
	res.OutputRows = combined.Len()
	res.OutputColumns = combined.ColumnNames()

	if err := output.Write(p.cfg.Output.Path, combined, p.cfg.Output.Format); err != nil {
		return nil, eris.Wrap(err, "pipeline: write artifact")
	}

	if p.sink != nil {
		n, err := p.sink.Write(ctx, combined)
		if err != nil {
			log.Warn("pipeline: sink write failed", zap.Error(err))
		} else {
			res.SinkRows = n
		}
	}

	res.DurationMs = time.Since(start).Milliseconds()
	log.Info("pipeline: run complete",
		zap.Int("regions", res.RegionsAttempted),
		zap.Int("regions_failed", res.RegionsFailed),
		zap.Int("listings", res.Listings),
		zap.Int("geometry_sources", res.GeometrySources),
		zap.Int("output_rows", res.OutputRows),
		zap.Int64("duration_ms", res.DurationMs),
	)
	return res, nil
}

// loadGeometry loads every configured source in order. A source that cannot
// be read is logged and left out.
func (p *Pipeline) loadGeometry(log *zap.Logger) []*dataset.Table {
	var tables []*dataset.Table
	for _, src := range p.cfg.Geometry.Sources {
		rows, err := geometry.Load(src.Path)
		if err != nil {
			log.Warn("pipeline: geometry source skipped",
				zap.String("source", src.Name),
				zap.String("path", src.Path),
				zap.Error(err),
			)
			continue
		}
		log.Info("pipeline: geometry source loaded",
			zap.String("source", src.Name),
			zap.Int("features", len(rows)),
		)
		tables = append(tables, dataset.FromGeometry(rows))
	}
	return tables
}
