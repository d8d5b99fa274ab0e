// Package templates renders the dashboard shell. Live data arrives later
// over the /sse/dashboard stream.
//
// The page component lives in dashboard.templ; regenerate
// dashboard_templ.go with `templ generate` after editing it.
package templates

import (
	"fmt"
	"strings"

	"freight-dashboard/internal/engine"
	"freight-dashboard/internal/models"
	"freight-dashboard/internal/query"
	"freight-dashboard/internal/services"
)

const stylesheet = `body{font-family:system-ui,sans-serif;margin:0;background:#f5f7fa;color:#1f2933}
header{padding:1.5rem 2rem;background:#102a43;color:#fff}
.filter-bar,.kpi-grid,.chart-grid{display:grid;gap:1rem;padding:1rem 2rem}
.filter-bar{grid-template-columns:repeat(auto-fill,minmax(180px,1fr))}
.kpi-grid{grid-template-columns:repeat(4,1fr)}
.kpi-card,.chart{background:#fff;border-radius:8px;padding:1rem;box-shadow:0 1px 3px rgba(0,0,0,.1)}
.kpi-value{font-size:1.6rem;font-weight:600}
.chart-grid{grid-template-columns:repeat(auto-fill,minmax(420px,1fr))}
.table-section{padding:1rem 2rem}
.modern-table{width:100%;border-collapse:collapse;background:#fff}
.modern-table th,.modern-table td{padding:.5rem;border-bottom:1px solid #e4e7eb;text-align:left}
.chart-table{width:100%;border-collapse:collapse}
.chart-table td{padding:.2rem .4rem}
.chart-label{width:40%}
.chart-bar span{display:block;height:.8rem;background:#486581;border-radius:2px}
.chart-value{text-align:right;white-space:nowrap}
.chart-empty{color:#7b8794}
.category-badge{background:#e0e8f9;border-radius:4px;padding:0 .4rem}
.error{color:#ab091e;padding:1rem 2rem}`

// Filter-bar signals that do not share a name with a dimension.
const (
	SignalRateMin     = "rateMin"
	SignalRateMax     = "rateMax"
	SignalIntentMin   = "intentMin"
	SignalIntentMax   = "intentMax"
	SignalDateFrom    = "dateFrom"
	SignalDateTo      = "dateTo"
	SignalGranularity = "granularity"
)

type DashboardData struct {
	Title      string
	Subtitle   string
	Dimensions []services.DimensionOptions
	Records    int
}

// KPI cards in display order; IDs match the elements patched by the SSE
// handler.
var kpis = []struct {
	ID    string
	Label string
}{
	{"kpi-count", "Total Leads"},
	{"kpi-rate", "Avg. Rate"},
	{"kpi-distance", "Total Distance"},
	{"kpi-priority", "High Priority"},
	{"kpi-industry", "Top Industry"},
	{"kpi-conversion", "Conversion Rate"},
	{"kpi-intent", "Avg. Intent Score"},
	{"kpi-value", "Total Shipment Value"},
}

const exportQueryExpr = `new URLSearchParams(Object.entries({industry: $industry, shipmentType: $shipmentType, commodity: $commodity, priority: $priority, status: $status, leadSource: $leadSource, sourceCountry: $sourceCountry, destCountry: $destCountry, rate_min: $rateMin, rate_max: $rateMax, intentScore_min: $intentMin, intentScore_max: $intentMax, inquiryDate_from: $dateFrom, inquiryDate_to: $dateTo}).filter(([k, v]) => v !== '' && v !== 'All')).toString()`

func exportHref(path string) string {
	return "'" + path + "?' + " + exportQueryExpr
}

func initialSignals(dims []services.DimensionOptions) string {
	var b strings.Builder
	b.WriteString("{")
	for _, d := range dims {
		if d.Kind == models.KindCategorical {
			fmt.Fprintf(&b, "%q: %q, ", d.Name, query.All)
		}
	}
	for _, name := range []string{SignalRateMin, SignalRateMax, SignalIntentMin, SignalIntentMax, SignalDateFrom, SignalDateTo} {
		fmt.Fprintf(&b, "%q: \"\", ", name)
	}
	fmt.Fprintf(&b, "%q: %q, \"summary\": {}, \"charts\": []}", SignalGranularity, engine.Day)
	return b.String()
}
