package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
)

const previewValues = 5

// Execute implements the go-flags Commander interface for DimensionsCommand.
func (c *DimensionsCommand) Execute(args []string) error {
	a, err := openAnalytics(context.Background(), c.globals, c.analytics)
	if err != nil {
		return err
	}
	dims := a.Dimensions()

	w := c.globals.output()
	if c.globals.JSON {
		return writeJSON(w, dims)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tLABEL\tVALUES")
	for _, d := range dims {
		values := d.Values
		suffix := ""
		if !c.Values && len(values) > previewValues {
			suffix = fmt.Sprintf(", ... (%d total)", len(values))
			values = values[:previewValues]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s%s\n", d.Name, d.Kind, d.Label, strings.Join(values, ", "), suffix)
	}
	return tw.Flush()
}
