package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"freight-dashboard/internal/cache"
	"freight-dashboard/internal/dataset"
	"freight-dashboard/internal/engine"
	"freight-dashboard/internal/models"
)

const testCSV = `Company Name,Industry Type,Priority Level,Status,Rate / Quote Requested ($),Distance to be Covered (Km),Date of Inquiry
Acme,Retail,High,Closed Won,100,500,2024-01-05
Bolt,Retail,Low,New,,250,2024-01-10
Chip Co,Tech,High,Negotiating,300,1000,
`

func createTempCSV(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "leads*.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	return f.Name()
}

func testRecords() []models.Record {
	return []models.Record{
		{Industry: "Retail", Rate: models.SomeFloat(100), Priority: "High", InquiryDate: models.SomeDate(2024, time.January, 5)},
		{Industry: "Retail", Priority: "Low", InquiryDate: models.SomeDate(2024, time.January, 10)},
		{Industry: "Tech", Rate: models.SomeFloat(300), Priority: "High"},
	}
}

func TestNewAnalytics(t *testing.T) {
	a := NewAnalytics()
	if a == nil {
		t.Fatal("NewAnalytics() returned nil")
	}
	if a.Dataset() == nil || a.Dataset().Len() != 0 {
		t.Error("new analytics should start with an empty dataset")
	}
	if a.logger == nil {
		t.Error("logger should be initialized")
	}
	if a.granularity != engine.Day {
		t.Errorf("default granularity = %q, want day", a.granularity)
	}
}

func TestAnalytics_LoadFromCSV(t *testing.T) {
	a := NewAnalytics()
	path := createTempCSV(t, testCSV)

	if err := a.LoadFromCSV(context.Background(), path); err != nil {
		t.Fatalf("LoadFromCSV() error = %v", err)
	}
	if got := a.Dataset().Len(); got != 3 {
		t.Errorf("records = %d, want 3", got)
	}
	if got := a.Stats()["source"]; got != path {
		t.Errorf("source = %v, want %s", got, path)
	}
}

func TestAnalytics_LoadFromCSV_Missing(t *testing.T) {
	a := NewAnalytics()
	a.SetRecords(testRecords())

	if err := a.LoadFromCSV(context.Background(), "/nonexistent/leads.csv"); err == nil {
		t.Fatal("expected error for missing file")
	}
	if a.Dataset().Len() != 3 {
		t.Error("a failed load must keep the previous dataset")
	}
}

func TestAnalytics_LoadFromSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cols := dataset.SQLColumns()
	row := make([]any, len(cols))
	for i, c := range cols {
		switch c {
		case "industry_type":
			row[i] = "Retail"
		case "rate_quote":
			row[i] = "120.5"
		}
	}
	mock.ExpectQuery("SELECT .* FROM leads").WillReturnRows(sqlmock.NewRows(cols).AddRow(toValues(row)...))

	a := NewAnalytics()
	if err := a.LoadFromSQL(context.Background(), db, "leads"); err != nil {
		t.Fatalf("LoadFromSQL() error = %v", err)
	}

	recs := a.Dataset().Records()
	if len(recs) != 1 || recs[0].Industry != "Retail" || recs[0].Rate != models.SomeFloat(120.5) {
		t.Errorf("unexpected records %+v", recs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAnalytics_Evaluate(t *testing.T) {
	a := NewAnalytics()
	a.SetRecords(testRecords())

	result, err := a.Evaluate(context.Background(), models.NewFilterSpec().With("industry", models.OneOf("Retail")), "")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.Summary.Count != 2 {
		t.Errorf("count = %d, want 2", result.Summary.Count)
	}
	if result.Summary.AverageRate != 100 {
		t.Errorf("average rate = %v, want 100", result.Summary.AverageRate)
	}
	if result.Summary.HighPriority != 1 {
		t.Errorf("high priority = %d, want 1", result.Summary.HighPriority)
	}
	if got := a.Stats()["evaluations"]; got != int64(1) {
		t.Errorf("evaluations = %v, want 1", got)
	}
}

func TestAnalytics_EvaluateUnknownDimension(t *testing.T) {
	a := NewAnalytics()
	a.SetRecords(testRecords())

	_, err := a.Evaluate(context.Background(), models.NewFilterSpec().With("color", models.OneOf("red")), "")
	if !errors.Is(err, engine.ErrUnknownDimension) {
		t.Errorf("error = %v, want ErrUnknownDimension", err)
	}
}

func TestAnalytics_Chart(t *testing.T) {
	a := NewAnalytics(WithGranularity(engine.Month))
	a.SetRecords(testRecords())

	chart, ok, err := a.Chart(context.Background(), engine.ChartTimeline, nil, "")
	if err != nil || !ok {
		t.Fatalf("Chart() = %v, %v", ok, err)
	}
	if len(chart.Points) != 1 || chart.Points[0].Label != "2024-01" || chart.Points[0].Value != 2 {
		t.Errorf("monthly timeline = %+v", chart.Points)
	}

	if _, ok, _ := a.Chart(context.Background(), "missing", nil, ""); ok {
		t.Error("unknown chart should not be found")
	}
}

func TestAnalytics_Leads(t *testing.T) {
	a := NewAnalytics()
	a.SetRecords(testRecords())

	tests := []struct {
		name      string
		limit     int
		offset    int
		wantRows  []int
		wantTotal int
	}{
		{"all", 0, 0, []int{0, 1, 2}, 3},
		{"first page", 2, 0, []int{0, 1}, 3},
		{"second page", 2, 2, []int{2}, 3},
		{"past the end", 2, 10, []int{}, 3},
		{"negative offset", 1, -5, []int{0}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := a.Leads(context.Background(), nil, tt.limit, tt.offset)
			if err != nil {
				t.Fatal(err)
			}
			if page.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", page.Total, tt.wantTotal)
			}
			if len(page.Records) != len(tt.wantRows) {
				t.Fatalf("rows = %d, want %d", len(page.Records), len(tt.wantRows))
			}
			for i, r := range page.Records {
				if r.Row != tt.wantRows[i] {
					t.Errorf("row[%d] = %d, want %d", i, r.Row, tt.wantRows[i])
				}
			}
		})
	}
}

func TestAnalytics_Dimensions(t *testing.T) {
	a := NewAnalytics()
	a.SetRecords(testRecords())

	dims := a.Dimensions()
	if len(dims) != len(engine.Dimensions()) {
		t.Fatalf("dimensions = %d, want %d", len(dims), len(engine.Dimensions()))
	}
	for _, d := range dims {
		switch d.Name {
		case "industry":
			if len(d.Values) != 2 || d.Values[0] != "Retail" || d.Values[1] != "Tech" {
				t.Errorf("industry values = %v", d.Values)
			}
		case "rate":
			if d.Values != nil {
				t.Errorf("numeric dimension should carry no values, got %v", d.Values)
			}
		}
	}
}

func TestAnalytics_ResultCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	results := cache.New(client, time.Minute)

	a := NewAnalytics(WithCache(results))
	a.SetRecords(testRecords())
	ctx := context.Background()
	spec := models.NewFilterSpec().With("priority", models.OneOf("High"))

	first, err := a.Evaluate(ctx, spec, "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Evaluate(ctx, spec, "")
	if err != nil {
		t.Fatal(err)
	}

	if first.Summary != second.Summary {
		t.Errorf("cached summary %+v differs from %+v", second.Summary, first.Summary)
	}
	if got := results.Stats(); got.Hits != 1 || got.Misses != 1 {
		t.Errorf("cache stats = %+v, want 1 hit and 1 miss", got)
	}
	if got := a.Stats()["evaluations"]; got != int64(1) {
		t.Errorf("evaluations = %v, want 1", got)
	}

	a.InvalidateCache(ctx)
	if len(mr.Keys()) != 0 {
		t.Errorf("keys after flush = %v", mr.Keys())
	}
}

func TestAnalytics_CacheDownFallsThrough(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	a := NewAnalytics(WithCache(cache.New(client, time.Minute)))
	a.SetRecords(testRecords())

	result, err := a.Evaluate(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.Summary.Count != 3 {
		t.Errorf("count = %d, want 3", result.Summary.Count)
	}
}

func TestAnalytics_ConcurrentAccess(t *testing.T) {
	a := NewAnalytics()
	a.SetRecords(testRecords())

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%5 == 0 {
				a.SetRecords(testRecords())
				return
			}
			result, err := a.Evaluate(context.Background(), nil, "")
			if err != nil {
				t.Error(err)
				return
			}
			if result.Summary.Count != 3 {
				t.Errorf("count = %d, want 3", result.Summary.Count)
			}
			_ = a.Stats()
		}()
	}
	wg.Wait()
}

func TestAnalytics_EmptyData(t *testing.T) {
	a := NewAnalytics()

	result, err := a.Evaluate(context.Background(), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if result.Summary.Count != 0 || result.Summary.AverageRate != 0 || result.Summary.ConversionRate != 0 {
		t.Errorf("empty summary = %+v", result.Summary)
	}
	if result.Summary.TopIndustry != engine.NoTopCategory {
		t.Errorf("top industry = %q, want %q", result.Summary.TopIndustry, engine.NoTopCategory)
	}
}

func toValues(vals []any) []driver.Value {
	out := make([]driver.Value, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
