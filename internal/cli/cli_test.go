package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freight-dashboard/internal/models"
	"freight-dashboard/internal/services"
)

const testCSV = `Company Name,Contact Person Name,Email,Phone,Shipment Requirement,Product / Commodity Type,Industry Type,Source Location / Country,Destination Location / Country,Distance to be Covered (Km),Rate / Quote Requested ($),Date of Inquiry,Priority Level,Status
Acme Retail,Jane Doe,jane@acme.test,555-0100,FTL,Electronics,Retail,USA,Canada,1200,100,2024-01-05,High,Closed Won
Bolt Stores,John Roe,john@bolt.test,555-0101,LTL,Furniture,Retail,USA,Mexico,800,,2024-02-10,Low,New
Techno,,,,Air Freight,Chips,Tech,Germany,USA,,300,,High,Negotiating
`

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCSV), 0o644))
	return path
}

func preloaded() *services.Analytics {
	a := services.NewAnalytics(services.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	a.SetRecords([]models.Record{
		{CompanyName: "Acme", Industry: "Retail", Priority: "Urgent", Status: "Closed Won", Rate: models.SomeFloat(50), InquiryDate: models.SomeDate(2024, time.March, 1)},
		{CompanyName: "Bolt", Industry: "Tech", Priority: "Low", Status: "Lost", Rate: models.SomeFloat(150)},
	})
	return a
}

func TestVersionFlag(t *testing.T) {
	output := captureOutput(t, func() {
		assert.NoError(t, RunWithArgs("0.1.0-test", []string{"--version"}))
	})
	assert.Equal(t, "leadctl 0.1.0-test", strings.TrimSpace(output))
}

func TestSubcommandsRecognized(t *testing.T) {
	for _, name := range []string{"summary", "charts", "export", "dimensions"} {
		parser, _, _ := buildParser("test")
		cmd := parser.Find(name)
		assert.NotNil(t, cmd, name)
	}
}

func TestGlobalFlagsParsed(t *testing.T) {
	parser, globals, cmds := buildParser("test")
	cmds.Summary.analytics = preloaded()
	globals.stdout = io.Discard

	_, err := parser.ParseArgs([]string{"--source", "x.csv", "-f", "industry=Retail", "--filter", "rate_max=100", "--granularity", "month", "--json", "summary"})
	require.NoError(t, err)

	assert.Equal(t, "x.csv", globals.Source)
	assert.Equal(t, []string{"industry=Retail", "rate_max=100"}, globals.Filters)
	assert.Equal(t, "month", globals.Granularity)
	assert.True(t, globals.JSON)
}

func TestGlobalFlags_FilterSpec(t *testing.T) {
	g := &GlobalFlags{Filters: []string{"industry=Retail,Tech", "rate_min=10", "granularity=day"}, Granularity: "month"}
	spec, granularity, err := g.filterSpec()
	require.NoError(t, err)

	assert.Equal(t, models.OneOf("Retail", "Tech"), spec["industry"])
	assert.True(t, spec["rate"].Active())
	assert.EqualValues(t, "month", granularity)

	g = &GlobalFlags{Filters: []string{"industry"}}
	_, _, err = g.filterSpec()
	assert.Error(t, err)
}

func TestSummary_Human(t *testing.T) {
	var out bytes.Buffer
	cmd := &SummaryCommand{globals: &GlobalFlags{stdout: &out}, analytics: preloaded()}
	require.NoError(t, cmd.Execute(nil))

	text := out.String()
	assert.Contains(t, text, "Leads:            2 of 2")
	assert.Contains(t, text, "Average rate:     $100.00")
	assert.Contains(t, text, "High priority:    1")
	assert.Contains(t, text, "Conversion rate:  50.0%")
	assert.Contains(t, text, "Average intent:   0.00")
	assert.Contains(t, text, "Shipment value:   $0")
}

func TestSummary_CommaCategoryFilter(t *testing.T) {
	a := services.NewAnalytics(services.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	a.SetRecords([]models.Record{
		{CompanyName: "Deli", Industry: "Food, Beverage", Rate: models.SomeFloat(80)},
		{CompanyName: "Acme", Industry: "Retail", Rate: models.SomeFloat(50)},
	})

	var out bytes.Buffer
	cmd := &SummaryCommand{globals: &GlobalFlags{stdout: &out, Filters: []string{"industry=Food, Beverage"}}, analytics: a}
	require.NoError(t, cmd.Execute(nil))
	assert.Contains(t, out.String(), "Leads:            1 of 2")
}

func TestSummary_FromCSV(t *testing.T) {
	path := writeCSV(t)
	output := captureOutput(t, func() {
		require.NoError(t, RunWithArgs("test", []string{"--source", path, "--filter", "industry=Retail", "--json", "summary"}))
	})

	var summary models.SummaryMetrics
	require.NoError(t, json.Unmarshal([]byte(output), &summary))
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, 100.0, summary.AverageRate)
	assert.Equal(t, 2000.0, summary.TotalDistance)
	assert.Equal(t, "Retail", summary.TopIndustry)
	assert.InDelta(t, 0.5, summary.ConversionRate, 1e-9)
}

func TestSummary_Errors(t *testing.T) {
	path := writeCSV(t)

	err := RunWithArgs("test", []string{"--source", path, "--filter", "color=red", "summary"})
	assert.ErrorContains(t, err, "unknown filter dimension")

	err = RunWithArgs("test", []string{"--source", path, "--filter", "rate_min=abc", "summary"})
	assert.ErrorContains(t, err, "invalid filter constraint")

	err = RunWithArgs("test", []string{"--source", filepath.Join(t.TempDir(), "missing.csv"), "summary"})
	assert.Error(t, err)
}

func TestCharts_Selected(t *testing.T) {
	var out bytes.Buffer
	cmd := &ChartsCommand{
		Chart:     []string{"industry", "timeline"},
		globals:   &GlobalFlags{stdout: &out, JSON: true},
		analytics: preloaded(),
	}
	require.NoError(t, cmd.Execute(nil))

	var charts []models.ChartDataset
	require.NoError(t, json.Unmarshal(out.Bytes(), &charts))
	require.Len(t, charts, 2)
	assert.Equal(t, "industry", charts[0].Name)
	assert.Equal(t, "timeline", charts[1].Name)
	assert.Equal(t, "2024-03-01", charts[1].Points[0].Label)
}

func TestCharts_Human(t *testing.T) {
	path := writeCSV(t)
	output := captureOutput(t, func() {
		require.NoError(t, RunWithArgs("test", []string{"--source", path, "--granularity", "month", "charts", "--chart", "timeline", "-c", "distance_by_industry_priority"}))
	})

	assert.Contains(t, output, "Inquiry Timeline [timeline, count]")
	assert.Contains(t, output, "2024-01")
	assert.Contains(t, output, "2024-02")
	assert.Contains(t, output, "Retail / High")
	assert.NotContains(t, output, "Industry Type Breakdown")
}

func TestCharts_UnknownChart(t *testing.T) {
	cmd := &ChartsCommand{Chart: []string{"nope"}, globals: &GlobalFlags{stdout: io.Discard}, analytics: preloaded()}
	assert.ErrorContains(t, cmd.Execute(nil), `unknown chart "nope"`)
}

func TestExport_Stdout(t *testing.T) {
	var out bytes.Buffer
	cmd := &ExportCommand{globals: &GlobalFlags{stdout: &out, Filters: []string{"industry=Tech"}}, analytics: preloaded()}
	require.NoError(t, cmd.Execute(nil))

	rows, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[1], "Bolt")
}

func TestExport_ContactsFile(t *testing.T) {
	path := writeCSV(t)
	target := filepath.Join(t.TempDir(), "contacts.csv")

	require.NoError(t, RunWithArgs("test", []string{"--source", path, "export", "--contacts", "--output", target}))

	f, err := os.Open(target)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 4)
	assert.Equal(t, "Company Name", rows[0][0])
	assert.Equal(t, "jane@acme.test", rows[1][2])
}

func TestDimensions(t *testing.T) {
	var out bytes.Buffer
	cmd := &DimensionsCommand{globals: &GlobalFlags{stdout: &out}, analytics: preloaded()}
	require.NoError(t, cmd.Execute(nil))

	text := out.String()
	assert.Contains(t, text, "NAME")
	assert.Regexp(t, `industry\s+categorical\s+Industry Type\s+Retail, Tech`, text)
	assert.Regexp(t, `rate\s+numeric`, text)
}

func TestDimensions_JSON(t *testing.T) {
	path := writeCSV(t)
	output := captureOutput(t, func() {
		require.NoError(t, RunWithArgs("test", []string{"--source", path, "--json", "dimensions"}))
	})

	var dims []struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &dims))
	for _, d := range dims {
		if d.Name == "sourceCountry" {
			assert.Equal(t, []string{"Germany", "USA"}, d.Values)
			return
		}
	}
	t.Fatal("sourceCountry missing")
}
