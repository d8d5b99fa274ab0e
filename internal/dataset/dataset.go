package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"freight-dashboard/internal/models"
)

const (
	defaultBatchSize = 1000
	defaultWorkers   = 10
)

var (
	ErrEmptySource         = errors.New("dataset source is empty")
	ErrNoRecognizedColumns = errors.New("dataset header has no recognized columns")
)

// Dataset is the read-only record set held for the process lifetime.
type Dataset struct {
	records     []models.Record
	columns     []string
	skipped     int
	loadedAt    time.Time
	fingerprint string
}

// New wraps already-typed records, renumbering Row by position.
func New(records []models.Record) *Dataset {
	rs := slices.Clone(records)
	for i := range rs {
		rs[i].Row = i
	}
	return finish(&Dataset{records: rs, columns: Headers()})
}

// Records returns the records in load order. The slice is shared and must
// not be modified.
func (d *Dataset) Records() []models.Record {
	return d.records[:len(d.records):len(d.records)]
}

func (d *Dataset) Len() int { return len(d.records) }

// Skipped is the number of malformed source rows dropped during load.
func (d *Dataset) Skipped() int { return d.skipped }

// Columns lists the canonical headers that were present in the source.
func (d *Dataset) Columns() []string { return slices.Clone(d.columns) }

func (d *Dataset) LoadedAt() time.Time { return d.loadedAt }

// Fingerprint identifies the dataset contents.
func (d *Dataset) Fingerprint() string { return d.fingerprint }

type options struct {
	batchSize int
	workers   int
	cacheDir  string
	logger    *slog.Logger
}

type Option func(*options)

func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithCacheDir enables the gob snapshot cache for LoadFile.
func WithCacheDir(dir string) Option {
	return func(o *options) { o.cacheDir = dir }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		batchSize: defaultBatchSize,
		workers:   defaultWorkers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// LoadFile loads a delimited-text lead file. Missing, unreadable or empty
// files fail fast.
func LoadFile(ctx context.Context, path string, opts ...Option) (*Dataset, error) {
	o := applyOptions(opts)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}

	source := stampOf(info)
	if o.cacheDir != "" {
		cached, err := loadSnapshot(o.cacheDir, path, source)
		switch {
		case err == nil:
			o.logger.Info("dataset loaded from cache", "path", path, "records", cached.Len())
			return cached, nil
		case errors.Is(err, errStaleSnapshot):
			o.logger.Info("dataset cache is stale", "path", path, "size", source.Size, "mod_time", source.ModTime)
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	ds, err := Load(ctx, file, opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if o.cacheDir != "" {
		if err := saveSnapshot(o.cacheDir, path, source, ds); err != nil {
			o.logger.Warn("failed to save dataset cache", "error", err)
		}
	}
	return ds, nil
}

// Load parses CSV lead data. Rows with a field count that does not match
// the header, or with broken quoting, are skipped and counted.
func Load(ctx context.Context, r io.Reader, opts ...Option) (*Dataset, error) {
	o := applyOptions(opts)
	start := time.Now()

	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptySource
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	mapping, present := mapHeader(header)
	if len(present) == 0 {
		return nil, ErrNoRecognizedColumns
	}

	var rows [][]string
	skipped := 0
	for {
		if len(rows)%o.batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				o.logger.Warn("skipping malformed row", "line", parseErr.Line, "error", parseErr.Err)
				continue
			}
			return nil, fmt.Errorf("read row: %w", err)
		}
		rows = append(rows, row)
	}

	records, err := coerceRows(ctx, rows, mapping, o)
	if err != nil {
		return nil, err
	}

	ds := finish(&Dataset{records: records, columns: present, skipped: skipped})
	o.logger.Info("dataset loaded",
		"records", ds.Len(),
		"skipped", skipped,
		"duration", time.Since(start),
	)
	return ds, nil
}

// mapHeader returns, for each canonical column, the source index it is read
// from (-1 when absent) and the canonical headers found.
func mapHeader(header []string) ([]int, []string) {
	mapping := make([]int, len(columns))
	for i := range mapping {
		mapping[i] = -1
	}
	for idx, h := range header {
		c, ok := lookupColumn(h)
		if ok && mapping[c] == -1 {
			mapping[c] = idx
		}
	}

	var present []string
	for c, idx := range mapping {
		if idx >= 0 {
			present = append(present, columns[c].header)
		}
	}
	return mapping, present
}

// coerceRows converts raw rows in parallel batches. Output order matches
// input order.
func coerceRows(ctx context.Context, rows [][]string, mapping []int, o *options) ([]models.Record, error) {
	records := make([]models.Record, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for lo := 0; lo < len(rows); lo += o.batchSize {
		hi := min(lo+o.batchSize, len(rows))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				records[i] = coerceRow(rows[i], mapping, i)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func coerceRow(row []string, mapping []int, position int) models.Record {
	rec := models.Record{Row: position}
	for c, idx := range mapping {
		raw := ""
		if idx >= 0 && idx < len(row) {
			raw = row[idx]
		}
		columns[c].set(&rec, raw)
	}
	return rec
}

func finish(d *Dataset) *Dataset {
	d.loadedAt = time.Now()
	h := sha256.New()
	_ = WriteCSV(h, d.records)
	d.fingerprint = hex.EncodeToString(h.Sum(nil))[:16]
	return d
}
