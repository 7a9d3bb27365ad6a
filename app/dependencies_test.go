package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ferreteria/storefront/config"
	"github.com/ferreteria/storefront/internal/authz"
	"github.com/ferreteria/storefront/services/checkout"
	"github.com/ferreteria/storefront/services/exchangerate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewDependencies(t *testing.T) {
	t.Run("initializes without a database", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig(t)
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, cfg, logger)
		require.NoError(t, err)
		require.NotNil(t, deps)

		// Infrastructure
		assert.NotNil(t, deps.Config)
		assert.NotNil(t, deps.Logger)
		assert.NotNil(t, deps.Metrics)
		assert.Nil(t, deps.DB)
		assert.Nil(t, deps.AccessEvents)

		// Services
		assert.NotNil(t, deps.StoreAPI)
		assert.NotNil(t, deps.Verifier)
		assert.NotNil(t, deps.Rates)
		assert.NotNil(t, deps.Checkout)
		require.NotNil(t, deps.Audit)
		assert.False(t, deps.Audit.Persistent())

		// Middleware
		assert.NotNil(t, deps.AuthMiddleware)
		assert.NotNil(t, deps.RouteGate)

		require.NoError(t, deps.Close(ctx))
	})

	t.Run("guard mode follows config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Session.GuardMode = "fallback"

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(context.Background())

		assert.Equal(t, authz.GuardModeFallback, deps.Guard.Mode())
	})

	t.Run("disabled payment methods are not offered", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Checkout.Payments.Zelle = false

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(context.Background())

		assert.Equal(t,
			[]checkout.PaymentMethod{checkout.PaymentPagoMovil, checkout.PaymentTransferencia},
			deps.Checkout.EnabledPayments())
	})

	t.Run("exchange rate shared through redis", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		defer mr.Close()

		cfg := testConfig(t)
		cfg.Redis = config.RedisConfig{URL: "redis://" + mr.Addr(), RateKey: "test:rate"}

		ctx := context.Background()
		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		require.NotNil(t, deps.Redis)
		require.NotNil(t, deps.SharedRates)
		require.NoError(t, deps.SharedRates.Save(ctx, exchangerate.Rate{Value: 36.5, FetchedAt: time.Now()}))
		assert.True(t, mr.Exists("test:rate"))

		// the store backend is unreachable, so this value can only come from redis
		rate, err := deps.Rates.GetCurrent(ctx)
		require.NoError(t, err)
		assert.Equal(t, 36.5, rate.Value)
	})

	t.Run("unreachable redis does not block startup", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Redis = config.RedisConfig{URL: "redis://127.0.0.1:1/0"}

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.NotNil(t, deps.SharedRates)
		require.NoError(t, deps.Close(context.Background()))
		assert.Nil(t, deps.Redis)
	})

	t.Run("insecure session cookie is reported outside development", func(t *testing.T) {
		for _, tt := range []struct {
			env  string
			warn bool
		}{
			{"production", true},
			{"development", false},
		} {
			cfg := testConfig(t)
			cfg.Environment = tt.env
			cfg.Session.CookieSecure = false

			core, logs := observer.New(zap.WarnLevel)
			deps, err := NewDependencies(context.Background(), cfg, zap.New(core))
			require.NoError(t, err)
			require.NoError(t, deps.Close(context.Background()))

			assert.Equal(t, tt.warn, logs.FilterMessage("session cookie is not marked secure").Len() == 1, tt.env)
		}
	})

	t.Run("database connection failure", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Database = &config.DatabaseConfig{
			Host:         "127.0.0.1",
			Port:         1,
			User:         "store",
			Database:     "audit",
			SSLMode:      "disable",
			MaxOpenConns: 1,
		}

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize database")
	})
}

func TestDependenciesClose(t *testing.T) {
	t.Run("second close reports the stopped audit service", func(t *testing.T) {
		ctx := context.Background()
		deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
		require.NoError(t, err)

		require.NoError(t, deps.Close(ctx))

		// Second close must not panic
		assert.Error(t, deps.Close(ctx))
	})
}

func TestStartBackground(t *testing.T) {
	cfg := testConfig(t)
	cfg.Checkout.CleanupInterval = 10 * time.Millisecond
	cfg.Audit.Retention = time.Hour
	cfg.Audit.RetentionSchedule = "@hourly"

	deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer deps.Close(context.Background())

	stopCh := make(chan struct{})
	deps.StartBackground(stopCh)
	time.Sleep(30 * time.Millisecond)
	close(stopCh)
}

// Test helpers

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		StoreAPI: config.StoreAPIConfig{
			BaseURL:    "http://127.0.0.1:1/api",
			Timeout:    time.Second,
			MaxRetries: 0,
		},
		Session: config.SessionConfig{
			JWTSecret:    "test-secret",
			CookieMaxAge: time.Hour,
			GuardMode:    "redirect",
		},
		Checkout: config.CheckoutConfig{
			Payments: config.PaymentsConfig{
				Zelle:         true,
				PagoMovil:     true,
				Transferencia: true,
			},
			ExchangeRateTTL: 5 * time.Minute,
			SessionTTL:      time.Hour,
			MaxSessions:     100,
			CleanupInterval: time.Minute,
		},
		Audit: config.AuditConfig{
			BufferSize: 10,
			Workers:    1,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:  "debug",
			LogFormat: "console",
		},
	}
}
