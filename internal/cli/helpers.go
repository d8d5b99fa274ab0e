package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	_ "github.com/lib/pq"

	"freight-dashboard/internal/config"
	"freight-dashboard/internal/dataset"
	"freight-dashboard/internal/engine"
	"freight-dashboard/internal/models"
	"freight-dashboard/internal/observability"
	"freight-dashboard/internal/query"
	"freight-dashboard/internal/services"
)

func (g *GlobalFlags) output() io.Writer {
	if g.stdout != nil {
		return g.stdout
	}
	return os.Stdout
}

// filterSpec parses the --filter pairs; --granularity overrides a
// granularity pair.
func (g *GlobalFlags) filterSpec() (models.FilterSpec, engine.Granularity, error) {
	values, err := query.ParsePairs(g.Filters)
	if err != nil {
		return nil, "", err
	}
	if g.Granularity != "" {
		values.Set(query.GranularityKey, g.Granularity)
	}
	return query.Parse(values)
}

func (g *GlobalFlags) loggerConfig() config.LoggerConfig {
	if g.Verbose {
		return config.LoggerConfig{Level: "debug", Format: "text"}
	}
	return config.LoggerConfig{Level: "warn", Format: "text"}
}

// openAnalytics returns preloaded analytics when set, otherwise loads the
// dataset named by the global flags.
func openAnalytics(ctx context.Context, g *GlobalFlags, preloaded *services.Analytics) (*services.Analytics, error) {
	if preloaded != nil {
		return preloaded, nil
	}

	logger := observability.NewLoggerTo(g.loggerConfig(), os.Stderr)
	a := services.NewAnalytics(services.WithLogger(logger))

	src := config.DatasetConfig{Source: g.Source, Table: g.Table}
	if !src.IsSQL() {
		var opts []dataset.Option
		if g.CacheDir != "" {
			opts = append(opts, dataset.WithCacheDir(g.CacheDir))
		}
		return a, a.LoadFromCSV(ctx, src.Source, opts...)
	}

	db, err := sql.Open("postgres", src.Source)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return a, a.LoadFromSQL(ctx, db, src.Table)
}

// evaluate loads the dataset and evaluates the --filter selections.
func evaluate(g *GlobalFlags, preloaded *services.Analytics) (*services.Analytics, *models.EngineResult, error) {
	spec, granularity, err := g.filterSpec()
	if err != nil {
		return nil, nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := openAnalytics(ctx, g, preloaded)
	if err != nil {
		return nil, nil, err
	}
	result, err := a.Evaluate(ctx, spec, granularity)
	if err != nil {
		return nil, nil, err
	}
	return a, result, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
