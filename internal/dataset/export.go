package dataset

import (
	"encoding/csv"
	"io"

	"freight-dashboard/internal/models"
)

const (
	ExportFilename   = "customer_intelligence.csv"
	ContactsFilename = "customer_contacts.csv"
)

// WriteCSV writes records in the same shape Load reads: the canonical
// header followed by one row per record. Missing values are empty strings.
func WriteCSV(w io.Writer, records []models.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers()); err != nil {
		return err
	}

	row := make([]string, len(columns))
	for _, rec := range records {
		for i, c := range columns {
			row[i] = c.get(rec)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteContactsCSV writes the contact-only projection of records.
func WriteContactsCSV(w io.Writer, records []models.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(contactHeaders); err != nil {
		return err
	}

	for _, rec := range records {
		c := rec.Contact()
		if err := cw.Write([]string{
			c.CompanyName,
			c.ContactPerson,
			c.Email,
			c.Phone,
			c.Industry,
			c.SourceCountry,
			c.Priority,
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
