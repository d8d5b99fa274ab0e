package models

// ChartPoint is one (category, aggregate) pair. Series is set only for
// two-dimensional breakdowns.
type ChartPoint struct {
	Label  string  `json:"label"`
	Series string  `json:"series,omitempty"`
	Value  float64 `json:"value"`
	Count  int     `json:"count"`
}

type ChartDataset struct {
	Name      string       `json:"name"`
	Title     string       `json:"title"`
	Kind      string       `json:"kind"`
	Aggregate string       `json:"aggregate"`
	Order     string       `json:"order"`
	Points    []ChartPoint `json:"points"`
}

// Total sums the point values.
func (c ChartDataset) Total() float64 {
	var total float64
	for _, p := range c.Points {
		total += p.Value
	}
	return total
}

type SummaryMetrics struct {
	Count          int     `json:"count"`
	AverageRate    float64 `json:"average_rate"`
	TotalDistance  float64 `json:"total_distance_km"`
	HighPriority   int     `json:"high_priority"`
	TopIndustry    string  `json:"top_industry"`
	ConversionRate float64 `json:"conversion_rate"`
	// AverageIntent and TotalShipmentValue skip missing values; both are 0
	// for an empty subset.
	AverageIntent      float64 `json:"average_intent"`
	TotalShipmentValue float64 `json:"total_shipment_value"`
}

type EngineResult struct {
	Records []Record       `json:"records"`
	Summary SummaryMetrics `json:"summary"`
	Charts  []ChartDataset `json:"charts"`
}

// Chart returns the named chart dataset, if present.
func (r *EngineResult) Chart(name string) (ChartDataset, bool) {
	for _, c := range r.Charts {
		if c.Name == name {
			return c, true
		}
	}
	return ChartDataset{}, false
}
