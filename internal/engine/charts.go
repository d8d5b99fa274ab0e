package engine

import (
	"cmp"
	"time"

	"freight-dashboard/internal/models"
)

const (
	ChartSourceCountry      = "source_country"
	ChartDestinationCountry = "destination_country"
	ChartShipmentType       = "shipment_type"
	ChartIndustry           = "industry"
	ChartCommodity          = "commodity"
	ChartPriority           = "priority"
	ChartLeadSource         = "lead_source"
	ChartRateBands          = "rate_bands"
	ChartIntentBands        = "intent_bands"
	ChartValueByOrigin      = "shipment_value_by_origin"
	ChartShipmentsByOrigin  = "shipments_by_origin"
	ChartDistanceByIndustry = "distance_by_industry_priority"
	ChartTimeline           = "timeline"
)

// Band is one named interval of a continuous measure. A value belongs to
// the first band whose Min it reaches.
type Band struct {
	Label string
	Min   float64
}

var (
	RateBands = []Band{
		{Label: "High Value", Min: 3000},
		{Label: "Medium Value", Min: 1500},
		{Label: "Low Value", Min: 0},
	}
	IntentBands = []Band{
		{Label: "High", Min: 0.8},
		{Label: "Medium", Min: 0.5},
		{Label: "Low", Min: 0},
	}
)

// Classify returns the index of the band v falls in.
func Classify(bands []Band, v float64) int {
	for i, b := range bands {
		if v >= b.Min {
			return i
		}
	}
	return len(bands) - 1
}

type chartDef struct {
	name  string
	build func(records []models.Record, cfg *config) models.ChartDataset
}

var catalog = []chartDef{
	{ChartSourceCountry, countChart(ChartSourceCountry, "Shipment Origins by Country", "bar", func(r models.Record) string { return r.SourceCountry })},
	{ChartDestinationCountry, countChart(ChartDestinationCountry, "Shipment Destinations by Country", "bar", func(r models.Record) string { return r.DestCountry })},
	{ChartShipmentType, countChart(ChartShipmentType, "Shipment Requirements Distribution", "pie", func(r models.Record) string { return r.ShipmentType })},
	{ChartIndustry, countChart(ChartIndustry, "Industry Type Breakdown", "bar", func(r models.Record) string { return r.Industry })},
	{ChartCommodity, countChart(ChartCommodity, "Commodity Type Analysis", "bar", func(r models.Record) string { return r.Commodity })},
	{ChartPriority, countChart(ChartPriority, "Priority Level", "bar", func(r models.Record) string { return r.Priority })},
	{ChartLeadSource, countChart(ChartLeadSource, "Lead Sources", "bar", func(r models.Record) string { return r.LeadSource })},
	{ChartRateBands, bandChart(ChartRateBands, "Rate Value Analysis", RateBands, func(r models.Record) models.Float { return r.Rate })},
	{ChartIntentBands, bandChart(ChartIntentBands, "Intent Distribution", IntentBands, func(r models.Record) models.Float { return r.IntentScore })},
	{ChartValueByOrigin, sumByOriginChart(ChartValueByOrigin, "Shipment Value by Origin", func(r models.Record) models.Float { return r.ShipmentValue })},
	{ChartShipmentsByOrigin, sumByOriginChart(ChartShipmentsByOrigin, "Shipments by Origin", func(r models.Record) models.Float { return r.Shipments })},
	{ChartDistanceByIndustry, distanceByIndustryChart},
	{ChartTimeline, timelineChart},
}

// ChartNames lists the chart catalog in render order.
func ChartNames() []string {
	names := make([]string, len(catalog))
	for i, c := range catalog {
		names[i] = c.name
	}
	return names
}

// Charts computes every chart of the catalog from already filtered records.
func Charts(records []models.Record, opts ...Option) []models.ChartDataset {
	cfg := applyOptions(opts)
	out := make([]models.ChartDataset, len(catalog))
	for i, c := range catalog {
		out[i] = c.build(records, cfg)
	}
	return out
}

// Chart computes a single named chart.
func Chart(name string, records []models.Record, opts ...Option) (models.ChartDataset, bool) {
	for _, c := range catalog {
		if c.name == name {
			return c.build(records, applyOptions(opts)), true
		}
	}
	return models.ChartDataset{}, false
}

func countChart(name, title, kind string, key func(models.Record) string) func([]models.Record, *config) models.ChartDataset {
	return func(records []models.Record, _ *config) models.ChartDataset {
		buckets := GroupAndAggregate(records, Grouping[string]{
			Key:       func(r models.Record) (string, bool) { return key(r), true },
			Aggregate: Count,
			Sort:      ByValueDesc,
		})
		return dataset(name, title, kind, Count, ByValueDesc, labelPoints(buckets, func(k string) string { return k }))
	}
}

func bandChart(name, title string, bands []Band, measure func(models.Record) models.Float) func([]models.Record, *config) models.ChartDataset {
	return func(records []models.Record, _ *config) models.ChartDataset {
		buckets := GroupAndAggregate(records, Grouping[int]{
			Key: func(r models.Record) (int, bool) {
				v := measure(r)
				if !v.Valid {
					return 0, false
				}
				return Classify(bands, v.Value), true
			},
			Aggregate: Count,
			Sort:      ByKey,
			Compare:   cmp.Compare[int],
		})
		return dataset(name, title, "bar", Count, ByKey, labelPoints(buckets, func(i int) string { return bands[i].Label }))
	}
}

func sumByOriginChart(name, title string, measure func(models.Record) models.Float) func([]models.Record, *config) models.ChartDataset {
	return func(records []models.Record, _ *config) models.ChartDataset {
		buckets := GroupAndAggregate(records, Grouping[string]{
			Key:       func(r models.Record) (string, bool) { return r.SourceCountry, true },
			Measure:   measure,
			Aggregate: Sum,
			Sort:      ByValueDesc,
		})
		return dataset(name, title, "bar", Sum, ByValueDesc, labelPoints(buckets, func(k string) string { return k }))
	}
}

type pair struct {
	primary   string
	secondary string
}

func comparePairs(a, b pair) int {
	if c := cmp.Compare(a.primary, b.primary); c != 0 {
		return c
	}
	return cmp.Compare(a.secondary, b.secondary)
}

func distanceByIndustryChart(records []models.Record, _ *config) models.ChartDataset {
	buckets := GroupAndAggregate(records, Grouping[pair]{
		Key:       func(r models.Record) (pair, bool) { return pair{r.Industry, r.Priority}, true },
		Measure:   func(r models.Record) models.Float { return r.Distance },
		Aggregate: Mean,
		Sort:      ByKey,
		Compare:   comparePairs,
	})

	points := make([]models.ChartPoint, len(buckets))
	for i, b := range buckets {
		points[i] = models.ChartPoint{Label: b.Key.primary, Series: b.Key.secondary, Value: b.Value, Count: b.Count}
	}
	return dataset(ChartDistanceByIndustry, "Distance by Industry and Priority", "grouped_bar", Mean, ByKey, points)
}

// Records without an inquiry date are left out of the timeline only.
func timelineChart(records []models.Record, cfg *config) models.ChartDataset {
	layout := models.DateLayout
	if cfg.granularity == Month {
		layout = "2006-01"
	}

	buckets := GroupAndAggregate(records, Grouping[time.Time]{
		Key: func(r models.Record) (time.Time, bool) {
			if !r.InquiryDate.Valid {
				return time.Time{}, false
			}
			t := r.InquiryDate.Time
			if cfg.granularity == Month {
				t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
			}
			return t, true
		},
		Aggregate: Count,
		Sort:      ByKey,
		Compare:   func(a, b time.Time) int { return a.Compare(b) },
	})
	return dataset(ChartTimeline, "Inquiry Timeline", "line", Count, ByKey,
		labelPoints(buckets, func(t time.Time) string { return t.Format(layout) }))
}

func labelPoints[K comparable](buckets []Bucket[K], label func(K) string) []models.ChartPoint {
	points := make([]models.ChartPoint, len(buckets))
	for i, b := range buckets {
		points[i] = models.ChartPoint{Label: label(b.Key), Value: b.Value, Count: b.Count}
	}
	return points
}

func dataset(name, title, kind string, agg Aggregate, order SortPolicy, points []models.ChartPoint) models.ChartDataset {
	return models.ChartDataset{
		Name:      name,
		Title:     title,
		Kind:      kind,
		Aggregate: string(agg),
		Order:     string(order),
		Points:    points,
	}
}
