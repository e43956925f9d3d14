package routes

import (
	"net/http"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/handlers"
	"github.com/BradenHooton/gatekeeper/internal/middleware"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes. metricsHandler may be nil
// when metrics are disabled.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *auth.TokenManager,
	rateLimitConfig middleware.RateLimitConfig,
	metricsHandler http.Handler,
) {
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "Route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	router.Get("/", handlers.Root)
	router.Get("/health", healthHandler.Health)
	if metricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	router.Route("/api", func(r chi.Router) {
		// Public routes - coarse request limit in front of the gate
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByOrigin(rateLimitConfig))
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
		})

		// Protected routes - bearer token issued on ALLOWED
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthMiddleware(tokenManager))
			r.Get("/session", authHandler.Session)
		})
	})
}
