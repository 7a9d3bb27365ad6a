package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/ferreteria/storefront/utils"
	"go.uber.org/zap"
)

// Pinger reports whether a remote dependency answers
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// HealthHandler checks the dependencies the gateway cannot work without
type HealthHandler struct {
	db      *sql.DB
	backend Pinger
	cache   Pinger
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db may be nil when access
// events only go to the log.
func NewHealthHandler(db *sql.DB, backend Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		backend: backend,
		logger:  logger,
	}
}

// WithSharedCache adds the shared rate cache to the readiness report. An
// unreachable cache is reported but does not make the gateway unready.
func (h *HealthHandler) WithSharedCache(cache Pinger) *HealthHandler {
	h.cache = cache
	return h
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	switch {
	case h.db == nil:
		checks["database"] = "not_configured"
	case h.checkDatabase(ctx) != nil:
		checks["database"] = "unhealthy"
		ready = false
	default:
		checks["database"] = "healthy"
	}

	if h.backend == nil {
		checks["store_api"] = "not_initialized"
		ready = false
	} else if err := h.backend.Ping(ctx); err != nil {
		h.logger.Warn("store backend health check failed", zap.Error(err))
		checks["store_api"] = "unhealthy"
		ready = false
	} else {
		checks["store_api"] = "healthy"
	}

	if h.cache == nil {
		checks["shared_cache"] = "not_configured"
	} else if err := h.cache.Ping(ctx); err != nil {
		h.logger.Warn("shared cache health check failed", zap.Error(err))
		checks["shared_cache"] = "unhealthy"
	} else {
		checks["shared_cache"] = "healthy"
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !ready {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		return err
	}

	var result int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		return err
	}

	return nil
}
