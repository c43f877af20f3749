/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, picked up by logging.FromContext
  2. RealIP:     Client address from X-Forwarded-For / X-Real-IP
  3. Logging:    One slog entry per request
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for browser clients

ROUTE GROUPS:
  /api/cars/*           Car management and lookups
  /api/customers/*      Customer management and lookups
  /api/rents/*          Rent records
  /api/rentals          Rent out
  /api/returns          Return
  /api/snapshot/*       Snapshot read and publish
  /api/scenarios/*      Demo scenarios
  /healthz              Liveness
  /metrics              Prometheus exposition (when configured)

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

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
	"github.com/warp/fleet-rental/logging"
)

// RouterConfig holds the optional parts of the router.
type RouterConfig struct {
	CORSOrigins []string
	Metrics     http.Handler
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		// Car routes
		r.Route("/cars", func(r chi.Router) {
			r.Get("/", h.ListCars)
			r.Post("/", h.CreateCar)
			r.Get("/available", h.ListAvailableCars)
			r.Get("/{id}", h.GetCar)
			r.Put("/{id}", h.UpdateCar)
			r.Delete("/{id}", h.DeleteCar)
			r.Get("/{id}/rent", h.GetCarRent)
			r.Get("/{id}/customer", h.GetCarCustomer)
			r.Get("/{id}/rents", h.ListCarRents)
		})

		// Customer routes
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Get("/active", h.ListActiveCustomers)
			r.Get("/{id}", h.GetCustomer)
			r.Put("/{id}", h.UpdateCustomer)
			r.Delete("/{id}", h.DeleteCustomer)
			r.Get("/{id}/cars", h.ListCustomerCars)
		})

		// Rent routes
		r.Route("/rents", func(r chi.Router) {
			r.Get("/", h.ListRents)
			r.Post("/", h.CreateRent)
			r.Get("/{id}", h.GetRent)
			r.Put("/{id}", h.UpdateRent)
			r.Delete("/{id}", h.DeleteRent)
		})
		r.Post("/rentals", h.RentOut)
		r.Post("/returns", h.Return)

		// Snapshot routes
		r.Route("/snapshot", func(r chi.Router) {
			r.Get("/", h.GetSnapshot)
			r.Post("/publish", h.PublishSnapshot)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
