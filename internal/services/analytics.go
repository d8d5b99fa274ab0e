package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"freight-dashboard/internal/cache"
	"freight-dashboard/internal/dataset"
	"freight-dashboard/internal/engine"
	"freight-dashboard/internal/models"
	"freight-dashboard/internal/observability"
)

// ResultCache stores evaluated results across requests.
type ResultCache interface {
	Get(ctx context.Context, key string) (*models.EngineResult, bool, error)
	Set(ctx context.Context, key string, result *models.EngineResult) error
	Flush(ctx context.Context) (int, error)
	Stats() cache.Stats
}

// Analytics serves filter evaluations over the currently loaded dataset.
// The dataset itself is immutable; the lock only guards swapping it.
type Analytics struct {
	mu          sync.RWMutex
	data        *dataset.Dataset
	source      string
	cache       ResultCache
	granularity engine.Granularity
	evaluations atomic.Int64
	logger      *slog.Logger
}

type Option func(*Analytics)

func WithCache(c ResultCache) Option {
	return func(a *Analytics) { a.cache = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analytics) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithGranularity sets the timeline granularity used when a call does not
// ask for one.
func WithGranularity(g engine.Granularity) Option {
	return func(a *Analytics) { a.granularity = g }
}

func NewAnalytics(opts ...Option) *Analytics {
	a := &Analytics{
		data:        dataset.New(nil),
		granularity: engine.Day,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analytics) SetDataset(ds *dataset.Dataset, source string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = ds
	a.source = source
}

// SetRecords replaces the dataset with already-typed records.
func (a *Analytics) SetRecords(records []models.Record) {
	a.SetDataset(dataset.New(records), "memory")
}

func (a *Analytics) Dataset() *dataset.Dataset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.data
}

func (a *Analytics) LoadFromCSV(ctx context.Context, path string, opts ...dataset.Option) error {
	start := time.Now()
	a.logger.Info("loading dataset", "source", path)

	ds, err := dataset.LoadFile(ctx, path, append([]dataset.Option{dataset.WithLogger(a.logger)}, opts...)...)
	if err != nil {
		return fmt.Errorf("load csv dataset: %w", err)
	}

	a.SetDataset(ds, path)
	a.logLoaded(ds, start)
	return nil
}

func (a *Analytics) LoadFromSQL(ctx context.Context, db *sql.DB, table string, opts ...dataset.Option) error {
	start := time.Now()
	a.logger.Info("loading dataset", "source", "sql", "table", table)

	ds, err := dataset.LoadSQL(ctx, db, table, append([]dataset.Option{dataset.WithLogger(a.logger)}, opts...)...)
	if err != nil {
		return fmt.Errorf("load sql dataset: %w", err)
	}

	a.SetDataset(ds, "sql:"+table)
	a.logLoaded(ds, start)
	return nil
}

func (a *Analytics) logLoaded(ds *dataset.Dataset, start time.Time) {
	a.logger.Info("dataset loaded",
		"records", ds.Len(),
		"skipped", ds.Skipped(),
		"fingerprint", ds.Fingerprint(),
		"duration", time.Since(start),
	)
}

// Evaluate runs the filter-and-aggregate pipeline for spec. An empty
// granularity uses the configured default. Cache failures are logged and
// never fail the call.
func (a *Analytics) Evaluate(ctx context.Context, spec models.FilterSpec, granularity engine.Granularity) (*models.EngineResult, error) {
	ctx, span := observability.StartSpan(ctx, "analytics.evaluate")
	defer span.Finish()
	logger := observability.FromContext(ctx, a.logger)

	if err := engine.Validate(spec); err != nil {
		span.SetError(err)
		return nil, err
	}
	if granularity == "" {
		granularity = a.granularity
	}

	ds := a.Dataset()
	span.SetTag("dataset.fingerprint", ds.Fingerprint())
	span.SetTag("filter.dimensions", fmt.Sprint(spec.Dimensions()))

	var key string
	if a.cache != nil {
		var err error
		if key, err = cache.Key(ds.Fingerprint(), spec, granularity); err != nil {
			logger.Warn("failed to build cache key", "error", err)
		} else if cached, ok, err := a.cache.Get(ctx, key); err != nil {
			logger.Warn("result cache unavailable", "error", err)
		} else if ok {
			span.SetTag("cache", "hit")
			return cached, nil
		}
	}

	result, err := engine.Evaluate(ds, spec, engine.WithGranularity(granularity))
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	a.evaluations.Add(1)
	span.SetTag("cache", "miss")
	span.SetTag("result.count", fmt.Sprint(result.Summary.Count))

	if a.cache != nil && key != "" {
		if err := a.cache.Set(ctx, key, result); err != nil {
			logger.Warn("failed to store result", "error", err)
		}
	}

	logger.Debug("filters evaluated", "span", span, "matched", result.Summary.Count, "total", ds.Len())
	return result, nil
}

// Chart evaluates spec and returns only the named chart.
func (a *Analytics) Chart(ctx context.Context, name string, spec models.FilterSpec, granularity engine.Granularity) (models.ChartDataset, bool, error) {
	result, err := a.Evaluate(ctx, spec, granularity)
	if err != nil {
		return models.ChartDataset{}, false, err
	}
	chart, ok := result.Chart(name)
	return chart, ok, nil
}

// Page is one window of the filtered leads.
type Page struct {
	Records []models.Record `json:"records"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// Leads returns the filtered records in [offset, offset+limit). A
// non-positive limit returns everything from offset on.
func (a *Analytics) Leads(ctx context.Context, spec models.FilterSpec, limit, offset int) (Page, error) {
	filtered, err := engine.Filter(a.Dataset().Records(), spec)
	if err != nil {
		return Page{}, err
	}

	page := Page{Total: len(filtered), Limit: limit, Offset: max(offset, 0)}
	start := min(page.Offset, len(filtered))
	end := len(filtered)
	if limit > 0 {
		end = min(start+limit, len(filtered))
	}
	page.Records = filtered[start:end]
	return page, nil
}

// DimensionOptions describes one filter dimension for the filter bar.
type DimensionOptions struct {
	engine.Dimension
	Values []string `json:"values,omitempty"`
}

// Dimensions lists every filter dimension, with the sorted distinct values
// of the full dataset for categorical ones.
func (a *Analytics) Dimensions() []DimensionOptions {
	records := a.Dataset().Records()
	dims := engine.Dimensions()
	out := make([]DimensionOptions, len(dims))
	for i, d := range dims {
		out[i] = DimensionOptions{Dimension: d}
		if d.Kind == models.KindCategorical {
			out[i].Values, _ = engine.DistinctValues(records, d.Name)
		}
	}
	return out
}

// InvalidateCache drops cached results, e.g. after a reload.
func (a *Analytics) InvalidateCache(ctx context.Context) {
	if a.cache == nil {
		return
	}
	n, err := a.cache.Flush(ctx)
	if err != nil {
		a.logger.Warn("failed to flush result cache", "error", err)
		return
	}
	a.logger.Info("result cache flushed", "keys", n)
}

func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := map[string]any{
		"record_count": a.data.Len(),
		"skipped_rows": a.data.Skipped(),
		"columns":      len(a.data.Columns()),
		"loaded_at":    a.data.LoadedAt(),
		"fingerprint":  a.data.Fingerprint(),
		"source":       a.source,
		"evaluations":  a.evaluations.Load(),
		"granularity":  a.granularity,
	}
	if a.cache != nil {
		stats["cache"] = a.cache.Stats()
	}
	return stats
}
