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
  /api/leave/*       Validation dry-runs
  /api/requests/*    Request lifecycle
  /api/employees/*   Employees, balances, transaction history
  /api/admin/*       Accrual runs
  /api/calendar/*    Holiday and working-day overrides
  /api/leave-types   Catalog

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

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

	r.Route("/api", func(r chi.Router) {
		// Validation dry-run
		r.Post("/leave/validate", h.ValidateLeave)

		// Request lifecycle
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.SubmitRequest)
			r.Get("/pending", h.ListPendingRequests)
			r.Post("/{id}/approve", h.ApproveRequest)
			r.Post("/{id}/reject", h.RejectRequest)
			r.Post("/{id}/cancel", h.CancelRequest)
		})

		// Employees and balances
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/transactions", h.GetTransactions)
		})

		// Admin accrual runs
		r.Route("/admin", func(r chi.Router) {
			r.Post("/accruals/yearly", h.RunYearlyAccrual)
			r.Post("/accruals/employee", h.RunEmployeeAccrual)
		})

		// Working calendar
		r.Route("/calendar", func(r chi.Router) {
			r.Get("/overrides", h.ListOverrides)
			r.Post("/overrides", h.CreateOverride)
		})

		// Catalog
		r.Get("/leave-types", h.ListLeaveTypes)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
