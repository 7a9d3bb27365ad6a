package routes

import (
	"net/http"
	"time"

	"github.com/ferreteria/storefront/app"
	"github.com/ferreteria/storefront/handlers"
	"github.com/ferreteria/storefront/internal/authz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

var defaultOrigins = []string{"http://localhost:*", "https://*"}

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := deps.Config.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// The route gate sees every request, so unknown admin paths are
	// redirected the same way as known ones.
	r.Use(deps.RouteGate.Handler)

	// Health check endpoints
	r.Get("/healthz", handlers.HealthCheck(deps))
	r.Get("/readyz", handlers.ReadinessCheck(deps))
	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	// Admin pages
	r.Route(authz.AdminPrefix, func(r chi.Router) {
		r.Get("/", handlers.AdminIndex(deps))
		r.Get("/login", handlers.LoginPage(deps))
		r.Post("/login", handlers.Login(deps))
		r.Post("/logout", handlers.Logout(deps))
		r.Get("/dashboard", handlers.DashboardPage(deps))
		r.Get("/dashboard/{section}", handlers.DashboardPage(deps))
		r.Get("/dashboard/{section}/*", handlers.DashboardPage(deps))
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/status", handlers.StatusHandler(deps))
		r.Post("/guard", handlers.GuardCheck(deps))
		r.Get("/exchange-rate", handlers.ExchangeRate(deps))

		// Checkout works for guests and signed-in buyers alike
		r.Route("/checkout", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.OptionalAuth)
			r.Get("/", handlers.GetCheckout(deps))
			r.Delete("/", handlers.ClearCheckout(deps))
			r.Put("/cart/items", handlers.SetCartItem(deps))
			r.Delete("/cart/items/{productID}", handlers.RemoveCartItem(deps))
			r.Put("/contact", handlers.SetContact(deps))
			r.Post("/lookup", handlers.LookupGuest(deps))
			r.Put("/delivery", handlers.SetDelivery(deps))
			r.Put("/location", handlers.SetLocation(deps))
			r.Post("/location/coordinates", handlers.SetCoordinates(deps))
			r.Post("/location/geolocation-failed", handlers.SetGeolocationFailed(deps))
			r.Put("/payment", handlers.SetPayment(deps))
			r.Post("/payment/receipt", handlers.UploadReceipt(deps))
			r.Delete("/payment/receipt", handlers.RemoveReceipt(deps))
			r.Put("/account", handlers.SetAccount(deps))
			r.Post("/discount", handlers.ApplyDiscount(deps))
			r.Post("/next", handlers.NextStep(deps))
			r.Post("/back", handlers.PreviousStep(deps))
			r.Post("/submit", handlers.SubmitOrder(deps))
		})

		// Admin data (require a verified session)
		r.Route("/admin", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/me", handlers.Me(deps))
			r.With(deps.AuthMiddleware.RequirePermission(authz.PermViewUsers)).
				Get("/access-events", handlers.ListAccessEvents(deps))
			r.With(deps.AuthMiddleware.RequirePermission(authz.PermViewDashboard)).
				Post("/exchange-rate/refresh", handlers.RefreshExchangeRate(deps))
			r.With(deps.AuthMiddleware.RequirePermissionFor(handlers.AdminResourcePermission)).
				Get("/{resource}", handlers.AdminResource(deps))
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
