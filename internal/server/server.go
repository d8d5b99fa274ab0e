package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"freight-dashboard/internal/errors"
	"freight-dashboard/internal/handlers"
	"freight-dashboard/internal/observability"
	"freight-dashboard/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	router      chi.Router
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(analytics *services.Analytics, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		analytics:   analytics,
		router:      chi.NewRouter(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, logger),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	r := s.router

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, s.logger, errors.NotFound("No route for "+r.URL.Path), observability.GetRequestID(r.Context()))
	})

	// Dashboard routes
	r.Get("/", templateHandlers.Dashboard)
	r.Get("/health", s.apiHandlers.HandleHealth)
	r.Get("/admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	r.Route("/api", func(r chi.Router) {
		r.Get("/evaluate", s.apiHandlers.HandleEvaluate)
		r.Post("/evaluate", s.apiHandlers.HandleEvaluatePost)
		r.Get("/summary", s.apiHandlers.HandleSummary)
		r.Get("/charts", s.apiHandlers.HandleCharts)
		r.Get("/charts/{name}", s.apiHandlers.HandleChart)
		r.Get("/leads", s.apiHandlers.HandleLeads)
		r.Get("/dimensions", s.apiHandlers.HandleDimensions)
		r.Get("/export/leads.csv", s.apiHandlers.HandleExportLeads)
		r.Get("/export/contacts.csv", s.apiHandlers.HandleExportContacts)
	})

	// Datastar SSE endpoint
	r.Get("/sse/dashboard", s.sseHandlers.HandleDashboard)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
