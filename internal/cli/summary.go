package cli

import "fmt"

// Execute implements the go-flags Commander interface for SummaryCommand.
func (c *SummaryCommand) Execute(args []string) error {
	a, result, err := evaluate(c.globals, c.analytics)
	if err != nil {
		return err
	}

	w := c.globals.output()
	if c.globals.JSON {
		return writeJSON(w, result.Summary)
	}

	s := result.Summary
	fmt.Fprintln(w, "Lead Summary")
	fmt.Fprintln(w, "============")
	fmt.Fprintf(w, "Leads:            %d of %d\n", s.Count, a.Dataset().Len())
	fmt.Fprintf(w, "Average rate:     $%.2f\n", s.AverageRate)
	fmt.Fprintf(w, "Total distance:   %.0f km\n", s.TotalDistance)
	fmt.Fprintf(w, "High priority:    %d\n", s.HighPriority)
	fmt.Fprintf(w, "Top industry:     %s\n", s.TopIndustry)
	fmt.Fprintf(w, "Conversion rate:  %.1f%%\n", s.ConversionRate*100)
	fmt.Fprintf(w, "Average intent:   %.2f\n", s.AverageIntent)
	fmt.Fprintf(w, "Shipment value:   $%s\n", formatNumber(s.TotalShipmentValue))
	return nil
}
