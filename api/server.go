/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/branches/*       Branch directory and per-branch bonus views
  /api/employees        Employee registration
  /api/revenues         Daily revenue submission
  /api/bonuses/*        Bonus records, lifecycle, audit trail
  /api/admin/*          On-demand sync and sweep
  /api/tiers            Tier configuration

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Branch routes
		r.Route("/branches", func(r chi.Router) {
			r.Get("/", h.ListBranches)
			r.Post("/", h.CreateBranch)
			r.Get("/{id}/employees", h.ListEmployees)
			r.Get("/{id}/bonuses", h.GetBonusByBucket)
			r.Get("/{id}/bonuses/current", h.GetCurrentBonus)
			r.Get("/{id}/bonuses/history", h.ListBonusHistory)
			r.Get("/{id}/statistics", h.GetStatistics)
		})

		// Employee routes
		r.Post("/employees", h.CreateEmployee)

		// Revenue routes
		r.Post("/revenues", h.SubmitRevenue)

		// Bonus lifecycle routes
		r.Route("/bonuses", func(r chi.Router) {
			r.Post("/approve-bulk", h.ApproveBulk)
			r.Post("/reject-bulk", h.RejectBulk)
			r.Get("/{id}", h.GetBonus)
			r.Get("/{id}/audit", h.GetAuditTrail)
			r.Post("/{id}/request", h.RequestBonus)
			r.Post("/{id}/approve", h.ApproveBonus)
			r.Post("/{id}/reject", h.RejectBonus)
		})

		// Tier configuration
		r.Get("/tiers", h.ListTiers)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/sync", h.TriggerSync)
			r.Post("/sweep", h.TriggerSweep)
		})
	})

	return r
}
