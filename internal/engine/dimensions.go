package engine

import (
	"fmt"
	"slices"

	"freight-dashboard/internal/models"
)

// Dimension is one named filter axis over Record.
type Dimension struct {
	Name  string                `json:"name"`
	Label string                `json:"label"`
	Kind  models.ConstraintKind `json:"kind"`

	category func(models.Record) string
	number   func(models.Record) models.Float
	date     func(models.Record) models.Date
}

func categorical(name, label string, get func(models.Record) string) Dimension {
	return Dimension{Name: name, Label: label, Kind: models.KindCategorical, category: get}
}

func numeric(name, label string, get func(models.Record) models.Float) Dimension {
	return Dimension{Name: name, Label: label, Kind: models.KindNumeric, number: get}
}

func temporal(name, label string, get func(models.Record) models.Date) Dimension {
	return Dimension{Name: name, Label: label, Kind: models.KindDate, date: get}
}

var dimensions = []Dimension{
	categorical("industry", "Industry Type", func(r models.Record) string { return r.Industry }),
	categorical("shipmentType", "Shipment Requirement", func(r models.Record) string { return r.ShipmentType }),
	categorical("commodity", "Commodity Type", func(r models.Record) string { return r.Commodity }),
	categorical("priority", "Priority Level", func(r models.Record) string { return r.Priority }),
	categorical("status", "Status", func(r models.Record) string { return r.Status }),
	categorical("leadSource", "Lead Source", func(r models.Record) string { return r.LeadSource }),
	categorical("sourceCountry", "Source Country", func(r models.Record) string { return r.SourceCountry }),
	categorical("destCountry", "Destination Country", func(r models.Record) string { return r.DestCountry }),
	numeric("rate", "Rate ($)", func(r models.Record) models.Float { return r.Rate }),
	numeric("distance", "Distance (Km)", func(r models.Record) models.Float { return r.Distance }),
	numeric("shipmentValue", "Shipment Value ($)", func(r models.Record) models.Float { return r.ShipmentValue }),
	numeric("intentScore", "Intent Score", func(r models.Record) models.Float { return r.IntentScore }),
	numeric("shipments", "Shipments", func(r models.Record) models.Float { return r.Shipments }),
	temporal("inquiryDate", "Date of Inquiry", func(r models.Record) models.Date { return r.InquiryDate }),
	temporal("expectedShipDate", "Expected Ship Date", func(r models.Record) models.Date { return r.ExpectedShipDate }),
	temporal("followUpDate", "Follow Up Date", func(r models.Record) models.Date { return r.FollowUpDate }),
}

var aliases = map[string]string{
	"rateRange": "rate",
	"dateRange": "inquiryDate",
}

// Dimensions lists every recognized filter dimension.
func Dimensions() []Dimension {
	return slices.Clone(dimensions)
}

// Lookup resolves a dimension by name or alias.
func Lookup(name string) (Dimension, bool) {
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	for _, d := range dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

// DistinctValues returns the sorted distinct values of a categorical
// dimension.
func DistinctValues(records []models.Record, name string) ([]string, error) {
	dim, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, name)
	}
	if dim.Kind != models.KindCategorical {
		return nil, fmt.Errorf("%w: %q is not categorical", ErrInvalidConstraint, name)
	}

	seen := make(map[string]struct{})
	var values []string
	for _, r := range records {
		v := dim.category(r)
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			values = append(values, v)
		}
	}
	slices.Sort(values)
	return values, nil
}
