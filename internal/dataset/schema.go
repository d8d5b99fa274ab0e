package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"

	"freight-dashboard/internal/models"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindCategory
	kindNumber
	kindDate
)

// column binds one source header to a Record field.
type column struct {
	header  string
	aliases []string
	sqlName string
	kind    fieldKind
	set     func(r *models.Record, raw string)
	get     func(r models.Record) string
}

func textColumn(header, sqlName string, field func(*models.Record) *string, aliases ...string) column {
	return column{
		header:  header,
		aliases: aliases,
		sqlName: sqlName,
		kind:    kindText,
		set:     func(r *models.Record, raw string) { *field(r) = strings.TrimSpace(raw) },
		get:     func(r models.Record) string { return *field(&r) },
	}
}

func categoryColumn(header, sqlName string, field func(*models.Record) *string, aliases ...string) column {
	c := textColumn(header, sqlName, field, aliases...)
	c.kind = kindCategory
	c.set = func(r *models.Record, raw string) { *field(r) = models.NormalizeCategory(raw) }
	return c
}

func numberColumn(header, sqlName string, field func(*models.Record) *models.Float, aliases ...string) column {
	return column{
		header:  header,
		aliases: aliases,
		sqlName: sqlName,
		kind:    kindNumber,
		set:     func(r *models.Record, raw string) { *field(r) = parseMeasure(raw) },
		get:     func(r models.Record) string { return field(&r).String() },
	}
}

func dateColumn(header, sqlName string, field func(*models.Record) *models.Date, aliases ...string) column {
	return column{
		header:  header,
		aliases: aliases,
		sqlName: sqlName,
		kind:    kindDate,
		set:     func(r *models.Record, raw string) { *field(r) = parseDate(raw) },
		get:     func(r models.Record) string { return field(&r).String() },
	}
}

// columns is the canonical export order.
var columns = []column{
	textColumn("Customer ID", "customer_id", func(r *models.Record) *string { return &r.ID }, "Lead ID"),
	textColumn("Company Name", "company_name", func(r *models.Record) *string { return &r.CompanyName }),
	textColumn("Contact Person Name", "contact_person", func(r *models.Record) *string { return &r.ContactPerson }, "Contact Person"),
	textColumn("Email", "email", func(r *models.Record) *string { return &r.Email }),
	textColumn("Phone", "phone", func(r *models.Record) *string { return &r.Phone }, "Phone Number"),
	categoryColumn("Shipment Requirement", "shipment_requirement", func(r *models.Record) *string { return &r.ShipmentType }, "Inquiry Type"),
	categoryColumn("Product / Commodity Type", "commodity_type", func(r *models.Record) *string { return &r.Commodity }),
	categoryColumn("Industry Type", "industry_type", func(r *models.Record) *string { return &r.Industry }, "Industry"),
	categoryColumn("Source Location / Country", "source_country", func(r *models.Record) *string { return &r.SourceCountry }, "State"),
	categoryColumn("Destination Location / Country", "destination_country", func(r *models.Record) *string { return &r.DestCountry }),
	numberColumn("Distance to be Covered (Km)", "distance_km", func(r *models.Record) *models.Float { return &r.Distance }),
	numberColumn("Rate / Quote Requested ($)", "rate_quote", func(r *models.Record) *models.Float { return &r.Rate }),
	numberColumn("Shipment Value ($)", "shipment_value", func(r *models.Record) *models.Float { return &r.ShipmentValue }),
	numberColumn("Intent Score", "intent_score", func(r *models.Record) *models.Float { return &r.IntentScore }),
	numberColumn("Shipments", "shipments", func(r *models.Record) *models.Float { return &r.Shipments }),
	dateColumn("Date of Inquiry", "inquiry_date", func(r *models.Record) *models.Date { return &r.InquiryDate }, "Inquiry Date"),
	dateColumn("Expected Ship Date", "expected_ship_date", func(r *models.Record) *models.Date { return &r.ExpectedShipDate }),
	dateColumn("Follow Up Date", "follow_up_date", func(r *models.Record) *models.Date { return &r.FollowUpDate }),
	categoryColumn("Priority Level", "priority_level", func(r *models.Record) *string { return &r.Priority }),
	categoryColumn("Status", "status", func(r *models.Record) *string { return &r.Status }),
	categoryColumn("Lead Source", "lead_source", func(r *models.Record) *string { return &r.LeadSource }),
}

var contactHeaders = []string{
	"Company Name",
	"Contact Person Name",
	"Email",
	"Phone",
	"Industry Type",
	"Source Location / Country",
	"Priority Level",
}

var headerIndex = buildHeaderIndex()

func buildHeaderIndex() map[string]int {
	idx := make(map[string]int, len(columns)*2)
	for i, c := range columns {
		idx[headerKey(c.header)] = i
		for _, alias := range c.aliases {
			idx[headerKey(alias)] = i
		}
	}
	return idx
}

func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

func lookupColumn(header string) (int, bool) {
	i, ok := headerIndex[headerKey(header)]
	return i, ok
}

// Headers returns the canonical export header row.
func Headers() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.header
	}
	return out
}

// parseMeasure never fails: anything that is not a finite non-negative
// number is missing.
func parseMeasure(raw string) models.Float {
	v := strings.TrimSpace(raw)
	if v == "" {
		return models.Float{}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return models.Float{}
	}
	return models.SomeFloat(f)
}

func parseDate(raw string) models.Date {
	v := strings.TrimSpace(raw)
	if v == "" {
		return models.Date{}
	}
	t, err := time.Parse(models.DateLayout, v)
	if err != nil {
		return models.Date{}
	}
	return models.DayOf(t)
}
