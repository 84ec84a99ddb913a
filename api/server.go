/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Builds the chi router for payoutd: middleware, CORS from config and the
  /api route tree. Handlers live in handlers.go and scenarios.go.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/coaches/*        Coach metadata, histories, statements, slips
  /api/payouts/*        Payout ledger
  /api/dashboard/*      Monthly payout dashboard
  /api/scenarios/*      Demo scenarios
  /api/admin/*          Admin operations

SECURITY NOTE:
  No authentication middleware. Deploy behind the admin gateway.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/payoutd/serve.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/payout-engine/config"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg config.ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           cfg.CORS.MaxAgeSeconds,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/policy", h.GetPolicy)

		// Coach routes
		r.Route("/coaches", func(r chi.Router) {
			r.Get("/", h.ListCoaches)
			r.Post("/", h.CreateCoach)
			r.Get("/{id}", h.GetCoach)
			r.Get("/{id}/history", h.GetHistory)
			r.Get("/{id}/statement", h.GetStatement)
			r.Get("/{id}/tax-settings", h.GetTaxSettings)
			r.Put("/{id}/tax-settings", h.UpdateTaxSettings)
			r.Get("/{id}/slips/{month}", h.GetSlip)
		})

		// Payout routes
		r.Route("/payouts", func(r chi.Router) {
			r.Get("/", h.ListPayouts)
			r.Post("/", h.CreatePayout)
			r.Get("/{id}", h.GetPayout)
			r.Delete("/{id}", h.DeletePayout)
			r.Post("/{id}/toggle", h.TogglePayout)
		})

		r.Get("/dashboard/{month}", h.GetDashboard)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/warm-cache", h.WarmCache)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Coach Payout Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Coach Payout Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/coaches">/api/coaches</a> - List coaches</li>
<li><a href="/api/payouts">/api/payouts</a> - List payouts</li>
<li><a href="/api/policy">/api/policy</a> - Reward policy</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
