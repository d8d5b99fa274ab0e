package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the only accepted calendar date format in lead sources.
const DateLayout = "2006-01-02"

// Unknown replaces empty categorical values at load time.
const Unknown = "Unknown"

// NormalizeCategory trims v and maps the empty string to Unknown.
func NormalizeCategory(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return Unknown
	}
	return v
}

// Float is a nullable non-negative measure. A zero Float is missing.
type Float struct {
	Value float64
	Valid bool
}

func SomeFloat(v float64) Float {
	return Float{Value: v, Valid: true}
}

func (f Float) String() string {
	if !f.Valid {
		return ""
	}
	return strconv.FormatFloat(f.Value, 'f', -1, 64)
}

func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Float{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = SomeFloat(v)
	return nil
}

// Date is a nullable calendar day, always stored at UTC midnight.
type Date struct {
	Time  time.Time
	Valid bool
}

func SomeDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Valid: true}
}

// DayOf truncates t to its calendar day.
func DayOf(t time.Time) Date {
	return SomeDate(t.Year(), t.Month(), t.Day())
}

func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return err
	}
	*d = DayOf(t)
	return nil
}

// Record is one lead as loaded from the dataset source. Records are never
// mutated after load.
type Record struct {
	Row int    `json:"row"`
	ID  string `json:"id"`

	CompanyName   string `json:"company_name"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`

	ShipmentType  string `json:"shipment_type"`
	Commodity     string `json:"commodity"`
	Industry      string `json:"industry"`
	SourceCountry string `json:"source_country"`
	DestCountry   string `json:"dest_country"`
	Priority      string `json:"priority"`
	Status        string `json:"status"`
	LeadSource    string `json:"lead_source"`

	Distance      Float `json:"distance_km"`
	Rate          Float `json:"rate"`
	ShipmentValue Float `json:"shipment_value"`
	IntentScore   Float `json:"intent_score"`
	Shipments     Float `json:"shipments"`

	InquiryDate      Date `json:"inquiry_date"`
	ExpectedShipDate Date `json:"expected_ship_date"`
	FollowUpDate     Date `json:"follow_up_date"`
}

// Contact is the contact-only projection used by the contacts export.
type Contact struct {
	CompanyName   string `json:"company_name"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Industry      string `json:"industry"`
	SourceCountry string `json:"source_country"`
	Priority      string `json:"priority"`
}

func (r Record) Contact() Contact {
	return Contact{
		CompanyName:   r.CompanyName,
		ContactPerson: r.ContactPerson,
		Email:         r.Email,
		Phone:         r.Phone,
		Industry:      r.Industry,
		SourceCountry: r.SourceCountry,
		Priority:      r.Priority,
	}
}
