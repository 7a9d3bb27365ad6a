package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ferreteria/storefront/app"
	"github.com/ferreteria/storefront/config"
	"github.com/ferreteria/storefront/internal/authz"
	"github.com/ferreteria/storefront/middleware"
	"github.com/ferreteria/storefront/session"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "handlers-test-secret"

// newTestDeps wires real dependencies against a fake store backend served
// by backend under /api.
func newTestDeps(t *testing.T, backend http.Handler) *app.Dependencies {
	t.Helper()

	if backend == nil {
		backend = http.NotFoundHandler()
	}
	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", backend))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Environment: "test",
		StoreAPI: config.StoreAPIConfig{
			BaseURL:    server.URL + "/api",
			Timeout:    2 * time.Second,
			MaxRetries: 0,
			RetryDelay: time.Millisecond,
		},
		Session: config.SessionConfig{
			JWTSecret:    testSecret,
			CookieMaxAge: time.Hour,
			GuardMode:    "redirect",
		},
		Checkout: config.CheckoutConfig{
			Payments: config.PaymentsConfig{
				Zelle:         true,
				PagoMovil:     true,
				Transferencia: true,
			},
			Pickup: config.PickupConfig{
				Address: "Av. Bolivar 12",
				Hours:   "8:00-17:00",
				Phone:   "0212-5550000",
			},
			ExchangeRateTTL: 5 * time.Minute,
			SessionTTL:      time.Hour,
			MaxSessions:     100,
			CleanupInterval: time.Minute,
		},
		Audit: config.AuditConfig{BufferSize: 100, Workers: 1},
		Observability: config.ObservabilityConfig{
			LogLevel:  "debug",
			LogFormat: "console",
		},
	}

	deps, err := app.NewDependencies(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close(context.Background()) })
	return deps
}

func signedToken(t *testing.T, role authz.Role) string {
	t.Helper()
	token, err := session.NewToken([]byte(testSecret), "", "user-1", "admin@ferreteria.test", role, time.Hour)
	require.NoError(t, err)
	return token
}

// withIdentity attaches a verified identity the way the gate or auth
// middleware would.
func withIdentity(r *http.Request, role authz.Role, token string) *http.Request {
	id := &session.Identity{Subject: "user-1", Email: "admin@ferreteria.test", Role: role}
	ctx := middleware.WithToken(middleware.WithIdentity(r.Context(), id), token)
	return r.WithContext(ctx)
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
