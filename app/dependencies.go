package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ferreteria/storefront/config"
	"github.com/ferreteria/storefront/internal/authz"
	"github.com/ferreteria/storefront/internal/observability"
	"github.com/ferreteria/storefront/middleware"
	"github.com/ferreteria/storefront/repositories"
	"github.com/ferreteria/storefront/repositories/postgres"
	"github.com/ferreteria/storefront/services/audit"
	"github.com/ferreteria/storefront/services/checkout"
	"github.com/ferreteria/storefront/services/exchangerate"
	"github.com/ferreteria/storefront/session"
	"github.com/ferreteria/storefront/storeapi"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// auditStopTimeout bounds how long Close waits for queued access events.
	auditStopTimeout = 5 * time.Second
	redisPingTimeout = 3 * time.Second
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Optional audit database; nil when DATABASE_URL/DB_HOST is unset
	DB           *postgres.DB
	RepoFactory  *postgres.RepositoryFactory
	AccessEvents repositories.AccessEventRepository

	// Store backend
	StoreAPI *storeapi.Client

	// Optional Redis holding the rate shared between replicas; nil when REDIS_URL is unset
	Redis       *redis.Client
	SharedRates *exchangerate.RedisStore

	// Services
	Verifier *session.Verifier
	Guard    *authz.Guard
	Rates    *exchangerate.Cache
	Checkout *checkout.Service
	Audit    *audit.Service

	// Middleware
	AuthMiddleware *middleware.AuthMiddleware
	RouteGate      *middleware.RouteGate
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initAudit(cfg); err != nil {
		deps.closeDatabase()
		return nil, fmt.Errorf("failed to initialize audit: %w", err)
	}

	if err := deps.initStore(ctx, cfg); err != nil {
		_ = deps.Audit.Stop(auditStopTimeout)
		deps.closeDatabase()
		return nil, fmt.Errorf("failed to initialize store client: %w", err)
	}
	deps.initAuth(cfg)
	deps.initCheckout(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase connects the audit database when one is configured
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if cfg.Database == nil {
		d.Logger.Info("no database configured, access events go to the log")
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(*cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()
	d.AccessEvents = factory.NewRepositories().AccessEvents

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

func (d *Dependencies) initAudit(cfg *config.Config) error {
	d.Audit = audit.NewService(d.AccessEvents, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.Workers,
	})
	return d.Audit.Start()
}

func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config) error {
	d.StoreAPI = storeapi.NewClient(storeapi.Config{
		BaseURL:    cfg.StoreAPI.BaseURL,
		Timeout:    cfg.StoreAPI.Timeout,
		MaxRetries: cfg.StoreAPI.MaxRetries,
		RetryDelay: cfg.StoreAPI.RetryDelay,
	}, d.Logger, d.Metrics)

	d.Rates = exchangerate.NewCache(d.StoreAPI, cfg.Checkout.ExchangeRateTTL, d.Logger, d.Metrics)

	if !cfg.Redis.Enabled() {
		return nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("invalid redis URL: %w", err)
	}
	d.Redis = redis.NewClient(opts)
	d.SharedRates = exchangerate.NewRedisStore(d.Redis, cfg.Redis.RateKey, d.Rates.TTL())
	d.Rates.SetShared(d.SharedRates)

	// The cache falls back to the backend while Redis is away
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := d.SharedRates.Ping(pingCtx); err != nil {
		d.Logger.Warn("redis not reachable, exchange rate is not shared yet", zap.Error(err))
	} else {
		d.Logger.Info("exchange rate shared through redis", zap.String("addr", opts.Addr))
	}
	return nil
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Session.JWTSecret == "" {
		// Every token then fails verification and all admin pages redirect to login
		d.Logger.Warn("JWT_SECRET not set, admin sessions cannot be verified")
	}
	if !cfg.IsDevelopment() && !cfg.Session.CookieSecure {
		d.Logger.Warn("session cookie is not marked secure", zap.String("environment", cfg.Environment))
	}

	d.Verifier = session.NewVerifier(session.Config{
		Secret: []byte(cfg.Session.JWTSecret),
		Issuer: cfg.Session.JWTIssuer,
	}, d.Logger)
	d.Guard = authz.NewGuard(authz.ParseGuardMode(cfg.Session.GuardMode))
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Verifier, d.Audit, d.Logger)
	d.RouteGate = middleware.NewRouteGate(d.Verifier, d.Audit, d.Metrics, d.Logger, cfg.Session.CookieSecure)
}

func (d *Dependencies) initCheckout(cfg *config.Config) {
	store := checkout.NewSessionStore(cfg.Checkout.MaxSessions, cfg.Checkout.SessionTTL)
	d.Checkout = checkout.NewService(d.StoreAPI, store, d.Rates, checkout.Options{
		EnabledPayments: map[checkout.PaymentMethod]bool{
			checkout.PaymentZelle:         cfg.Checkout.Payments.Zelle,
			checkout.PaymentPagoMovil:     cfg.Checkout.Payments.PagoMovil,
			checkout.PaymentTransferencia: cfg.Checkout.Payments.Transferencia,
		},
		Pickup: checkout.PickupInfo{
			Address: cfg.Checkout.Pickup.Address,
			Hours:   cfg.Checkout.Pickup.Hours,
			Phone:   cfg.Checkout.Pickup.Phone,
		},
	}, d.Logger, d.Metrics)
}

// StartBackground launches the periodic workers. They stop when stopCh is
// closed.
func (d *Dependencies) StartBackground(stopCh <-chan struct{}) {
	go d.Checkout.Store().StartCleanupWorker(d.Config.Checkout.CleanupInterval, stopCh, func(removed, remaining int) {
		d.Metrics.SetActiveCheckouts(remaining)
		if removed > 0 {
			d.Logger.Debug("expired checkout sessions removed",
				zap.Int("removed", removed),
				zap.Int("remaining", remaining))
		}
	})

	if d.Audit.Persistent() && d.Config.Audit.Retention > 0 {
		go func() {
			if err := d.Audit.StartRetentionWorker(d.Config.Audit.RetentionSchedule, d.Config.Audit.Retention, stopCh); err != nil {
				d.Logger.Error("access event retention disabled", zap.Error(err))
			}
		}()
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	timeout := auditStopTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if d.Audit != nil {
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if err := d.closeDatabase(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
		d.Redis = nil
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

func (d *Dependencies) closeDatabase() error {
	if d.RepoFactory == nil {
		return nil
	}
	if err := d.RepoFactory.Close(); err != nil {
		return err
	}
	d.Logger.Info("database connection closed")
	d.RepoFactory = nil
	return nil
}
