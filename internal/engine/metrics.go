package engine

import (
	"slices"

	"freight-dashboard/internal/models"
)

// NoTopCategory is reported as the top industry of an empty subset.
const NoTopCategory = "N/A"

var (
	HighPriorityLevels = []string{"High", "Urgent"}
	ConvertedStatuses  = []string{"Closed Won", "Negotiating"}
)

// Summarize computes the summary metrics of an already filtered subset.
func Summarize(records []models.Record) models.SummaryMetrics {
	m := models.SummaryMetrics{
		Count:         len(records),
		AverageRate:   MeanOf(records, func(r models.Record) models.Float { return r.Rate }),
		TotalDistance: SumOf(records, func(r models.Record) models.Float { return r.Distance }),
		TopIndustry:   NoTopCategory,

		AverageIntent:      MeanOf(records, func(r models.Record) models.Float { return r.IntentScore }),
		TotalShipmentValue: SumOf(records, func(r models.Record) models.Float { return r.ShipmentValue }),
	}

	converted := 0
	for _, r := range records {
		if slices.Contains(HighPriorityLevels, r.Priority) {
			m.HighPriority++
		}
		if slices.Contains(ConvertedStatuses, r.Status) {
			converted++
		}
	}
	if m.Count > 0 {
		m.ConversionRate = float64(converted) / float64(m.Count)
	}

	industries := GroupAndAggregate(records, Grouping[string]{
		Key:       func(r models.Record) (string, bool) { return r.Industry, true },
		Aggregate: Count,
		Sort:      ByValueDesc,
	})
	if len(industries) > 0 {
		m.TopIndustry = industries[0].Key
	}
	return m
}
