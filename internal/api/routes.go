package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Organization-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/triage", h.TriageLeads)

		r.Route("/action-queue", func(r chi.Router) {
			r.Get("/", h.GetActionQueue)
			r.Post("/rebuild", h.RebuildActionQueue)
		})

		r.Route("/action-executions", func(r chi.Router) {
			r.Post("/", h.RecordExecution)
			r.Post("/{id}/measure", h.MeasureOutcome)
		})

		r.Route("/weights", func(r chi.Router) {
			r.Get("/active", h.GetActiveWeights)
			r.Post("/activate", h.ActivateWeights)
			r.Get("/history", h.GetWeightsHistory)
		})

		r.Get("/dashboard/triage", h.GetTriageDashboard)
	})

	return r
}
