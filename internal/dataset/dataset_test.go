package dataset

import (
	"bytes"
	"context"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freight-dashboard/internal/models"
)

const sampleCSV = `Customer ID,Company Name,Contact Person Name,Email,Phone,Shipment Requirement,Product / Commodity Type,Industry Type,Source Location / Country,Destination Location / Country,Distance to be Covered (Km),Rate / Quote Requested ($),Date of Inquiry,Expected Ship Date,Follow Up Date,Priority Level,Status
C001,Acme Retail,Jane Doe,jane@acme.test,555-0100,FTL,Electronics,Retail,USA,Canada,1200,100,2024-01-05,2024-01-20,,High,Closed Won
C002,Bolt Stores,John Roe,john@bolt.test,555-0101,LTL,Furniture, Retail ,USA,Mexico,800,,2024-01-10,,2024-01-15,Low,New
C003,Techno,,,,Air Freight,Chips,Tech,Germany,USA,abc,300,,,,High,Negotiating
`

func createTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_CoercesFields(t *testing.T) {
	ds, err := Load(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())
	assert.Equal(t, 0, ds.Skipped())

	recs := ds.Records()
	assert.Equal(t, 0, recs[0].Row)
	assert.Equal(t, 2, recs[2].Row)

	assert.Equal(t, "C001", recs[0].ID)
	assert.Equal(t, models.SomeFloat(100), recs[0].Rate)
	assert.Equal(t, models.SomeDate(2024, time.January, 5), recs[0].InquiryDate)
	assert.False(t, recs[0].FollowUpDate.Valid)

	assert.Equal(t, "Retail", recs[1].Industry, "categorical values are trimmed")
	assert.False(t, recs[1].Rate.Valid, "empty rate is missing, not zero")

	assert.False(t, recs[2].Distance.Valid, "unparsable distance is missing")
	assert.False(t, recs[2].InquiryDate.Valid)
	assert.Equal(t, "", recs[2].ContactPerson)
	assert.Equal(t, models.Unknown, recs[2].LeadSource, "absent categorical column becomes Unknown")
}

func TestLoad_NormalizesInvalidMeasures(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Float
	}{
		{"250.5", models.SomeFloat(250.5)},
		{" 42 ", models.SomeFloat(42)},
		{"0", models.SomeFloat(0)},
		{"-5", models.Float{}},
		{"NaN", models.Float{}},
		{"Inf", models.Float{}},
		{"$300", models.Float{}},
		{"", models.Float{}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, parseMeasure(tt.raw))
		})
	}
}

func TestLoad_ParsesDatesWithFixedLayout(t *testing.T) {
	assert.Equal(t, models.SomeDate(2024, time.March, 9), parseDate("2024-03-09"))
	assert.False(t, parseDate("03/09/2024").Valid)
	assert.False(t, parseDate("2024-13-01").Valid)
	assert.False(t, parseDate("").Valid)
}

func TestLoad_ShipmentsColumn(t *testing.T) {
	csvData := "Customer ID,State,Shipments,Shipment Value ($)\nC1,Texas,12,5000\nC2,Ohio,,\n"
	ds, err := Load(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())

	recs := ds.Records()
	assert.Equal(t, "Texas", recs[0].SourceCountry)
	assert.Equal(t, models.SomeFloat(12), recs[0].Shipments)
	assert.Equal(t, models.SomeFloat(5000), recs[0].ShipmentValue)
	assert.False(t, recs[1].Shipments.Valid)
	assert.Contains(t, SQLColumns(), "shipments")
}

func TestLoad_EmptyCategoryBecomesUnknown(t *testing.T) {
	csvData := "Customer ID,Industry Type,Priority Level\nC1,,  \n"
	ds, err := Load(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, models.Unknown, ds.Records()[0].Industry)
	assert.Equal(t, models.Unknown, ds.Records()[0].Priority)
}

func TestLoad_SkipsMalformedRows(t *testing.T) {
	csvData := "Customer ID,Industry Type,Rate / Quote Requested ($)\n" +
		"C1,Retail,100\n" +
		"C2,Retail\n" +
		"C3,Tech,300,extra\n" +
		"C4,Tech,400\n"

	ds, err := Load(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, 2, ds.Skipped())
	assert.Equal(t, "C4", ds.Records()[1].ID)
	assert.Equal(t, 1, ds.Records()[1].Row)
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantErr error
	}{
		{name: "empty file", csv: "", wantErr: ErrEmptySource},
		{name: "no recognized columns", csv: "foo,bar\n1,2\n", wantErr: ErrNoRecognizedColumns},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), strings.NewReader(tt.csv))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_HeaderOnlyIsEmptyDataset(t *testing.T) {
	ds, err := Load(context.Background(), strings.NewReader("Customer ID,Industry Type\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())
}

func TestLoad_AlternateVariantHeaders(t *testing.T) {
	csvData := "Lead ID,Contact Person,Phone Number,Industry,Inquiry Type,State,Intent Score,Shipment Value ($),Inquiry Date,Lead Source\n" +
		"L1,Ann,555,Logistics,Quote,Texas,0.85,12000,2024-02-01,Referral\n"

	ds, err := Load(context.Background(), strings.NewReader(csvData))
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())

	rec := ds.Records()[0]
	assert.Equal(t, "L1", rec.ID)
	assert.Equal(t, "Ann", rec.ContactPerson)
	assert.Equal(t, "555", rec.Phone)
	assert.Equal(t, "Logistics", rec.Industry)
	assert.Equal(t, "Quote", rec.ShipmentType)
	assert.Equal(t, "Texas", rec.SourceCountry)
	assert.Equal(t, models.SomeFloat(0.85), rec.IntentScore)
	assert.Equal(t, models.SomeFloat(12000), rec.ShipmentValue)
	assert.Equal(t, "Referral", rec.LeadSource)
	assert.Contains(t, ds.Columns(), "Intent Score")
}

func TestLoad_PreservesOrderAcrossBatches(t *testing.T) {
	var b strings.Builder
	b.WriteString("Customer ID,Rate / Quote Requested ($)\n")
	for i := 0; i < 257; i++ {
		fmt.Fprintf(&b, "C%03d,%d\n", i, i)
	}

	ds, err := Load(context.Background(), strings.NewReader(b.String()), WithBatchSize(10), WithWorkers(4))
	require.NoError(t, err)
	require.Equal(t, 257, ds.Len())
	for i, rec := range ds.Records() {
		assert.Equal(t, fmt.Sprintf("C%03d", i), rec.ID)
		assert.Equal(t, i, rec.Row)
	}
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, strings.NewReader(sampleCSV))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadFile(t *testing.T) {
	t.Run("missing file fails fast", func(t *testing.T) {
		_, err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("valid file", func(t *testing.T) {
		ds, err := LoadFile(context.Background(), createTempCSV(t, sampleCSV))
		require.NoError(t, err)
		assert.Equal(t, 3, ds.Len())
		assert.NotEmpty(t, ds.Fingerprint())
	})

	t.Run("snapshot cache", func(t *testing.T) {
		path := createTempCSV(t, sampleCSV)
		cacheDir := t.TempDir()

		first, err := LoadFile(context.Background(), path, WithCacheDir(cacheDir))
		require.NoError(t, err)
		assert.FileExists(t, snapshotFilename(cacheDir, path))

		second, err := LoadFile(context.Background(), path, WithCacheDir(cacheDir))
		require.NoError(t, err)
		assert.Equal(t, first.Records(), second.Records())
		assert.Equal(t, first.Fingerprint(), second.Fingerprint())
	})

	t.Run("snapshot ignored after source is replaced by an older file", func(t *testing.T) {
		path := createTempCSV(t, sampleCSV)
		cacheDir := t.TempDir()

		first, err := LoadFile(context.Background(), path, WithCacheDir(cacheDir))
		require.NoError(t, err)
		require.Equal(t, 3, first.Len())

		restored := "Customer ID,Industry Type\nR1,Retail\n"
		require.NoError(t, os.WriteFile(path, []byte(restored), 0o644))
		old := time.Now().Add(-30 * 24 * time.Hour)
		require.NoError(t, os.Chtimes(path, old, old))

		second, err := LoadFile(context.Background(), path, WithCacheDir(cacheDir))
		require.NoError(t, err)
		assert.Equal(t, 1, second.Len())
		assert.NotEqual(t, first.Fingerprint(), second.Fingerprint())
	})

	t.Run("snapshot ignored when only the modification time moves back", func(t *testing.T) {
		path := createTempCSV(t, sampleCSV)
		cacheDir := t.TempDir()

		_, err := LoadFile(context.Background(), path, WithCacheDir(cacheDir))
		require.NoError(t, err)

		// Same byte length, different content.
		swapped := strings.Replace(sampleCSV, "Acme Retail", "Acme Resale", 1)
		require.NoError(t, os.WriteFile(path, []byte(swapped), 0o644))
		old := time.Now().Add(-time.Hour)
		require.NoError(t, os.Chtimes(path, old, old))

		ds, err := LoadFile(context.Background(), path, WithCacheDir(cacheDir))
		require.NoError(t, err)
		assert.Equal(t, "Acme Resale", ds.Records()[0].CompanyName)
	})
}

func TestSnapshot_StaleStamp(t *testing.T) {
	dir := t.TempDir()
	ds := New([]models.Record{{ID: "a"}})
	stamp := sourceStamp{Size: 10, ModTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, saveSnapshot(dir, "leads.csv", stamp, ds))

	got, err := loadSnapshot(dir, "leads.csv", stamp)
	require.NoError(t, err)
	assert.Equal(t, ds.Records(), got.Records())

	_, err = loadSnapshot(dir, "leads.csv", sourceStamp{Size: 11, ModTime: stamp.ModTime})
	assert.ErrorIs(t, err, errStaleSnapshot)
	_, err = loadSnapshot(dir, "leads.csv", sourceStamp{Size: 10, ModTime: stamp.ModTime.Add(-time.Second)})
	assert.ErrorIs(t, err, errStaleSnapshot)
}

func TestExport_RoundTrip(t *testing.T) {
	ds, err := Load(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)
	subset := ds.Records()[1:]

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, subset))

	reloaded, err := Load(context.Background(), &buf)
	require.NoError(t, err)
	require.Equal(t, len(subset), reloaded.Len())

	for i, rec := range reloaded.Records() {
		want := subset[i]
		want.Row = i
		assert.Equal(t, want, rec)
	}
}

func TestExport_MissingValuesAreEmpty(t *testing.T) {
	rec := models.Record{ID: "X1", Industry: "Retail"}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []models.Record{rec}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(Headers(), ","), strings.ReplaceAll(lines[0], `"`, ""))
	assert.Equal(t, "X1,,,,,,,Retail,,,,,,,,,,,,", lines[1])
}

func TestExport_Contacts(t *testing.T) {
	ds, err := Load(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteContactsCSV(&buf, ds.Records()[:1]))

	assert.Equal(t,
		"Company Name,Contact Person Name,Email,Phone,Industry Type,Source Location / Country,Priority Level\n"+
			"Acme Retail,Jane Doe,jane@acme.test,555-0100,Retail,USA,High\n",
		buf.String())
}

func TestLoadSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = c.sqlName
	}

	row := func(id, industry, rate, date any) []any {
		vals := make([]any, len(columns))
		for i, c := range columns {
			switch c.sqlName {
			case "customer_id":
				vals[i] = id
			case "industry_type":
				vals[i] = industry
			case "rate_quote":
				vals[i] = rate
			case "inquiry_date":
				vals[i] = date
			}
		}
		return vals
	}

	rows := sqlmock.NewRows(cols).
		AddRow(toDriverValues(row("C1", "Retail", "100", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)))...).
		AddRow(toDriverValues(row("C2", nil, nil, "2024-01-10"))...)

	mock.ExpectQuery(regexp.QuoteMeta(SelectQuery("leads"))).WillReturnRows(rows)

	ds, err := LoadSQL(context.Background(), db, "leads")
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())

	recs := ds.Records()
	assert.Equal(t, "C1", recs[0].ID)
	assert.Equal(t, models.SomeFloat(100), recs[0].Rate)
	assert.Equal(t, models.SomeDate(2024, time.January, 5), recs[0].InquiryDate)
	assert.Equal(t, models.Unknown, recs[1].Industry)
	assert.False(t, recs[1].Rate.Valid)
	assert.Equal(t, models.SomeDate(2024, time.January, 10), recs[1].InquiryDate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func toDriverValues(vals []any) []driver.Value {
	out := make([]driver.Value, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func TestLoadSQL_Errors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = LoadSQL(context.Background(), db, "leads; DROP TABLE leads")
	assert.ErrorContains(t, err, "invalid table name")

	mock.ExpectQuery(regexp.QuoteMeta(SelectQuery("leads"))).WillReturnError(fmt.Errorf("connection refused"))
	_, err = LoadSQL(context.Background(), db, "leads")
	assert.ErrorContains(t, err, "query leads")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_RenumbersRows(t *testing.T) {
	ds := New([]models.Record{{ID: "a", Row: 7}, {ID: "b", Row: 3}})
	assert.Equal(t, 0, ds.Records()[0].Row)
	assert.Equal(t, 1, ds.Records()[1].Row)
}
