package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"freight-dashboard/internal/dataset"
	"freight-dashboard/internal/engine"
	"freight-dashboard/internal/errors"
	"freight-dashboard/internal/models"
	"freight-dashboard/internal/observability"
	"freight-dashboard/internal/query"
	"freight-dashboard/internal/services"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
	maxBodyBytes    = 1 << 20
	version         = "1.0.0"
)

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// EvaluateRequest is the JSON body accepted by POST /api/evaluate.
type EvaluateRequest struct {
	Filters     models.FilterSpec  `json:"filters"`
	Granularity engine.Granularity `json:"granularity,omitempty"`
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, errors.FromEngine(err), observability.GetRequestID(r.Context()))
}

func (h *APIHandlers) parseFilters(w http.ResponseWriter, r *http.Request) (models.FilterSpec, engine.Granularity, bool) {
	spec, granularity, err := query.Parse(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return nil, "", false
	}
	return spec, granularity, true
}

func (h *APIHandlers) evaluate(w http.ResponseWriter, r *http.Request) (*models.EngineResult, bool) {
	spec, granularity, ok := h.parseFilters(w, r)
	if !ok {
		return nil, false
	}
	result, err := h.analytics.Evaluate(r.Context(), spec, granularity)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return result, true
}

func (h *APIHandlers) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	result, ok := h.evaluate(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, result)
}

func (h *APIHandlers) HandleEvaluatePost(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && err != io.EOF {
		h.fail(w, r, errors.BadRequestWrap(err, "Invalid evaluate request body"))
		return
	}

	var granularity engine.Granularity
	if req.Granularity != "" {
		g, err := engine.ParseGranularity(string(req.Granularity))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		granularity = g
	}

	result, err := h.analytics.Evaluate(r.Context(), req.Filters, granularity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccess(w, result)
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	result, ok := h.evaluate(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, result.Summary)
}

func (h *APIHandlers) HandleCharts(w http.ResponseWriter, r *http.Request) {
	result, ok := h.evaluate(w, r)
	if !ok {
		return
	}
	errors.WriteSuccess(w, result.Charts)
}

func (h *APIHandlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !slices.Contains(engine.ChartNames(), name) {
		h.fail(w, r, errors.NotFound("Unknown chart "+strconv.Quote(name)))
		return
	}

	result, ok := h.evaluate(w, r)
	if !ok {
		return
	}
	chart, _ := result.Chart(name)
	errors.WriteSuccess(w, chart)
}

func (h *APIHandlers) HandleLeads(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		h.fail(w, r, errors.BadRequest("limit must be between 1 and "+strconv.Itoa(maxPageSize)))
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		h.fail(w, r, errors.BadRequest("offset must be a non-negative integer"))
		return
	}

	spec, _, ok := h.parseFilters(w, r)
	if !ok {
		return
	}
	page, err := h.analytics.Leads(r.Context(), spec, limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithMeta(w, page.Records, map[string]int{
		"total":  page.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

func (h *APIHandlers) HandleDimensions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	errors.WriteSuccess(w, h.analytics.Dimensions())
}

func (h *APIHandlers) HandleExportLeads(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, dataset.ExportFilename, dataset.WriteCSV)
}

func (h *APIHandlers) HandleExportContacts(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, dataset.ContactsFilename, dataset.WriteContactsCSV)
}

func (h *APIHandlers) export(w http.ResponseWriter, r *http.Request, filename string, write func(io.Writer, []models.Record) error) {
	spec, _, ok := h.parseFilters(w, r)
	if !ok {
		return
	}
	page, err := h.analytics.Leads(r.Context(), spec, 0, 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Cache-Control", "no-store")
	if err := write(w, page.Records); err != nil {
		h.logger.Error("export failed", "file", filename, "error", err, "request_id", observability.GetRequestID(r.Context()))
	}
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	errors.WriteSuccess(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   version,
		"records":   h.analytics.Dataset().Len(),
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}

func intParam(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
