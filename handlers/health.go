package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/ferreteria/storefront/app"
)

// Version is set at build time with -ldflags.
var Version = "0.1.0"

// HealthCheck returns a simple health check handler
func HealthCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// ReadinessCheck checks the store backend and, when configured, the audit
// database and the shared rate cache.
func ReadinessCheck(deps *app.Dependencies) http.HandlerFunc {
	var db *sql.DB
	if deps.DB != nil {
		db = deps.DB.DB
	}
	var backend Pinger
	if deps.StoreAPI != nil {
		backend = deps.StoreAPI
	}
	h := NewHealthHandler(db, backend, deps.Logger)
	if deps.SharedRates != nil {
		h.WithSharedCache(deps.SharedRates)
	}
	return h.HandleReadiness
}

// StatusHandler returns application status information
func StatusHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := deps.Checkout.Store().Stats()
		response := map[string]interface{}{
			"version":     Version,
			"environment": deps.Config.Environment,
			"guard_mode":  deps.Guard.Mode(),
			"payments":    deps.Checkout.EnabledPayments(),
			"checkout_sessions": map[string]interface{}{
				"active":    stats.Size,
				"max":       stats.MaxSize,
				"evictions": stats.Evictions,
			},
			"audit": deps.Audit.GetStats(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}
