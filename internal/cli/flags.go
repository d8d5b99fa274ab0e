package cli

import (
	"io"

	"freight-dashboard/internal/services"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Source      string   `long:"source" short:"s" env:"DATASET_SOURCE" description:"CSV file or postgres:// DSN" default:"customer_leads.csv"`
	Table       string   `long:"table" env:"DATASET_TABLE" description:"Table to read when --source is a DSN" default:"leads"`
	CacheDir    string   `long:"cache-dir" env:"DATASET_CACHE_DIR" description:"Directory for parsed CSV snapshots; empty disables"`
	Filters     []string `long:"filter" short:"f" description:"Filter as key=value, e.g. industry=Retail or rate_min=100 (repeatable)"`
	Granularity string   `long:"granularity" description:"Timeline bucket" choice:"day" choice:"month"`
	JSON        bool     `long:"json" description:"Output in JSON format"`
	Verbose     bool     `long:"verbose" short:"v" description:"Log loading progress to stderr"`
	Version     bool     `long:"version" description:"Show version and exit"`

	stdout io.Writer
}

// SummaryCommand prints the summary metrics of the filtered leads.
type SummaryCommand struct {
	globals   *GlobalFlags
	analytics *services.Analytics
}

// ChartsCommand prints chart datasets.
type ChartsCommand struct {
	Chart []string `long:"chart" short:"c" description:"Only show this chart (repeatable)"`

	globals   *GlobalFlags
	analytics *services.Analytics
}

// ExportCommand writes the filtered leads as CSV.
type ExportCommand struct {
	Contacts bool   `long:"contacts" description:"Export only the contact columns"`
	Output   string `long:"output" short:"o" description:"Output file; stdout when empty"`

	globals   *GlobalFlags
	analytics *services.Analytics
}

// DimensionsCommand lists the filter dimensions.
type DimensionsCommand struct {
	Values bool `long:"values" description:"Print every distinct value"`

	globals   *GlobalFlags
	analytics *services.Analytics
}
