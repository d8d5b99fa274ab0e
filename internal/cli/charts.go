package cli

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"freight-dashboard/internal/engine"
	"freight-dashboard/internal/models"
)

// Execute implements the go-flags Commander interface for ChartsCommand.
func (c *ChartsCommand) Execute(args []string) error {
	known := engine.ChartNames()
	for _, name := range c.Chart {
		if !slices.Contains(known, name) {
			return fmt.Errorf("unknown chart %q (available: %s)", name, strings.Join(known, ", "))
		}
	}

	_, result, err := evaluate(c.globals, c.analytics)
	if err != nil {
		return err
	}

	charts := result.Charts
	if len(c.Chart) > 0 {
		charts = slices.DeleteFunc(slices.Clone(charts), func(ds models.ChartDataset) bool {
			return !slices.Contains(c.Chart, ds.Name)
		})
	}

	w := c.globals.output()
	if c.globals.JSON {
		return writeJSON(w, charts)
	}

	for i, ds := range charts {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s [%s, %s]\n", ds.Title, ds.Name, ds.Aggregate)
		if len(ds.Points) == 0 {
			fmt.Fprintln(w, "  (no data)")
			continue
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, p := range ds.Points {
			label := p.Label
			if p.Series != "" {
				label += " / " + p.Series
			}
			fmt.Fprintf(tw, "  %s\t%s\t(%d)\n", label, formatNumber(p.Value), p.Count)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
