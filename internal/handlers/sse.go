package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"freight-dashboard/internal/engine"
	"freight-dashboard/internal/errors"
	"freight-dashboard/internal/models"
	"freight-dashboard/internal/observability"
	"freight-dashboard/internal/query"
	"freight-dashboard/internal/services"
	"freight-dashboard/internal/ui/templates"
)

const maxTableRows = 50

// Filter-bar signals that map onto range query keys.
var signalKeys = map[string]string{
	templates.SignalRateMin:     "rate_min",
	templates.SignalRateMax:     "rate_max",
	templates.SignalIntentMin:   "intentScore_min",
	templates.SignalIntentMax:   "intentScore_max",
	templates.SignalDateFrom:    "inquiryDate_from",
	templates.SignalDateTo:      "inquiryDate_to",
	templates.SignalGranularity: query.GranularityKey,
}

var kpiTemplate = template.Must(template.New("kpis").Funcs(template.FuncMap{
	"percent": func(f float64) float64 { return f * 100 },
}).Parse(`<span id="kpi-count" class="kpi-value">{{.Count}}</span>
<span id="kpi-rate" class="kpi-value">${{printf "%.2f" .AverageRate}}</span>
<span id="kpi-distance" class="kpi-value">{{printf "%.0f" .TotalDistance}} km</span>
<span id="kpi-priority" class="kpi-value">{{.HighPriority}}</span>
<span id="kpi-industry" class="kpi-value">{{.TopIndustry}}</span>
<span id="kpi-conversion" class="kpi-value">{{printf "%.1f" (percent .ConversionRate)}}%</span>
<span id="kpi-intent" class="kpi-value">{{printf "%.2f" .AverageIntent}}</span>
<span id="kpi-value" class="kpi-value">${{printf "%.0f" .TotalShipmentValue}}</span>`))

// Each chart replaces the chart-<name> container of the page shell.
var chartsTemplate = template.Must(template.New("charts").Parse(`{{range .}}<div id="chart-{{.Name}}" class="chart-body">
{{if .Rows}}<table class="chart-table">
{{range .Rows}}<tr><td class="chart-label">{{.Label}}</td><td class="chart-bar"><span style="width: {{.Width}}%"></span></td><td class="chart-value">{{.Value}}</td></tr>
{{end}}</table>{{else}}<p class="chart-empty">No data for the current filters</p>{{end}}
</div>
{{end}}`))

var leadsTableTemplate = template.Must(template.New("leadsTable").Parse(`<div id="leads-table">
<table class="modern-table">
<thead><tr><th>Company</th><th>Contact</th><th>Industry</th><th>Route</th><th>Priority</th><th>Status</th><th>Rate</th><th>Inquiry</th></tr></thead>
<tbody>
{{range .Rows}}<tr>
<td>{{.CompanyName}}</td>
<td>{{.ContactPerson}}</td>
<td><span class="category-badge">{{.Industry}}</span></td>
<td>{{.SourceCountry}} → {{.DestCountry}}</td>
<td>{{.Priority}}</td>
<td>{{.Status}}</td>
<td>{{if .Rate.Valid}}${{printf "%.2f" .Rate.Value}}{{else}}-{{end}}</td>
<td>{{if .InquiryDate.Valid}}{{.InquiryDate}}{{else}}-{{end}}</td>
</tr>{{end}}
</tbody>
</table>
{{if gt .Total (len .Rows)}}<p class="table-note">Showing {{len .Rows}} of {{.Total}} leads</p>{{end}}
</div>`))

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

type chartRow struct {
	Label string
	Value string
	Width int
}

type chartView struct {
	Name string
	Rows []chartRow
}

// chartViews scales every bar against the largest point of its chart.
func chartViews(charts []models.ChartDataset) []chartView {
	views := make([]chartView, len(charts))
	for i, c := range charts {
		var peak float64
		for _, p := range c.Points {
			peak = max(peak, p.Value)
		}
		views[i] = chartView{Name: c.Name, Rows: make([]chartRow, len(c.Points))}
		for j, p := range c.Points {
			label := p.Label
			if p.Series != "" {
				label += " / " + p.Series
			}
			width := 0
			if peak > 0 {
				width = int(math.Round(p.Value / peak * 100))
			}
			views[i].Rows[j] = chartRow{Label: label, Value: chartValue(c.Aggregate, p.Value), Width: width}
		}
	}
	return views
}

func chartValue(aggregate string, v float64) string {
	if aggregate == string(engine.Count) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func renderCharts(charts []models.ChartDataset) (string, error) {
	var buf strings.Builder
	err := chartsTemplate.Execute(&buf, chartViews(charts))
	return buf.String(), err
}

type tableData struct {
	Rows  []models.Record
	Total int
}

func renderKPIs(s models.SummaryMetrics) (string, error) {
	var buf strings.Builder
	err := kpiTemplate.Execute(&buf, s)
	return buf.String(), err
}

func renderLeadsTable(records []models.Record) (string, error) {
	var buf strings.Builder
	rows := records
	if len(rows) > maxTableRows {
		rows = rows[:maxTableRows]
	}
	err := leadsTableTemplate.Execute(&buf, tableData{Rows: rows, Total: len(records)})
	return buf.String(), err
}

// signalValues converts filter-bar signals into query values. Signals that
// are neither dimensions nor range inputs, such as the pushed summary, are
// ignored.
func signalValues(signals map[string]any) url.Values {
	values := url.Values{}
	for name, raw := range signals {
		key, ok := signalKeys[name]
		if !ok {
			if _, isDim := engine.Lookup(name); !isDim {
				continue
			}
			key = name
		}
		switch v := raw.(type) {
		case string:
			values.Add(key, v)
		case float64:
			values.Add(key, strconv.FormatFloat(v, 'f', -1, 64))
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					values.Add(key, s)
				}
			}
		}
	}
	return values
}

// HandleDashboard reads the filter signals, evaluates them and patches the
// summary and chart signals plus the KPI cards, chart fragments and leads
// table.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	signals := map[string]any{}
	if err := datastar.ReadSignals(r, &signals); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "Invalid dashboard signals"), observability.GetRequestID(r.Context()))
		return
	}

	sse := datastar.NewSSE(w, r)

	spec, granularity, err := query.Parse(signalValues(signals))
	if err == nil {
		var result *models.EngineResult
		if result, err = h.analytics.Evaluate(r.Context(), spec, granularity); err == nil {
			h.patchResult(sse, result)
			return
		}
	}

	appErr := errors.FromEngine(err)
	h.logger.Warn("dashboard evaluation failed", "error", err, "request_id", observability.GetRequestID(r.Context()))
	msg := appErr.Message
	if appErr.Details != "" {
		msg += ": " + appErr.Details
	}
	sse.PatchElements(fmt.Sprintf(`<div id="dashboard-error" class="error">%s</div>`, template.HTMLEscapeString(msg)))
}

func (h *SSEHandlers) patchResult(sse *datastar.ServerSentEventGenerator, result *models.EngineResult) {
	jsonData, err := json.Marshal(map[string]any{
		"summary": result.Summary,
		"charts":  result.Charts,
	})
	if err != nil {
		h.logger.Error("marshal dashboard signals", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	kpis, err := renderKPIs(result.Summary)
	if err != nil {
		h.logger.Error("render kpi cards", "error", err)
		return
	}
	sse.PatchElements(kpis)

	charts, err := renderCharts(result.Charts)
	if err != nil {
		h.logger.Error("render charts", "error", err)
		return
	}
	sse.PatchElements(charts)

	table, err := renderLeadsTable(result.Records)
	if err != nil {
		h.logger.Error("render leads table", "error", err)
		return
	}
	sse.PatchElements(table)
	sse.PatchElements(`<div id="dashboard-error"></div>`)
}
