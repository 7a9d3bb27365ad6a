package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ferreteria/storefront/internal/authz"
	"github.com/ferreteria/storefront/services/audit"
	"github.com/ferreteria/storefront/session"
	"github.com/ferreteria/storefront/utils"
	"go.uber.org/zap"
)

// TokenVerifier verifies session tokens. It returns nil for any token that
// cannot be verified.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) *session.Identity
}

// DenialRecorder records admin API calls refused for lack of permission.
type DenialRecorder interface {
	APIDenied(meta audit.RequestMeta, path, subject, email, role, permission string) error
}

// PermissionResolver maps a request to the permission it requires. ok is
// false when the request targets nothing known.
type PermissionResolver func(r *http.Request) (perm authz.Permission, ok bool)

// AuthMiddleware provides authentication middleware for the JSON API
type AuthMiddleware struct {
	verifier TokenVerifier
	recorder DenialRecorder
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. recorder may be nil.
func NewAuthMiddleware(verifier TokenVerifier, recorder DenialRecorder, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		recorder: recorder,
		logger:   logger,
	}
}

// RequireAuth is a middleware that requires a valid session token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		id := m.verifier.Verify(ctx, token)
		if id == nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		ctx = WithToken(WithIdentity(ctx, id), token)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", id.Subject),
			zap.String("role", string(id.Role)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth attaches the identity when a valid token is present and lets
// every request through. Checkout uses it to tell guests from signed-in
// buyers.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if token := extractToken(r); token != "" {
			if id := m.verifier.Verify(ctx, token); id != nil {
				ctx = WithToken(WithIdentity(ctx, id), token)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission requires a fixed permission. Must run after RequireAuth.
func (m *AuthMiddleware) RequirePermission(perm authz.Permission) func(http.Handler) http.Handler {
	return m.RequirePermissionFor(func(*http.Request) (authz.Permission, bool) {
		return perm, true
	})
}

// RequirePermissionFor resolves the required permission per request.
// Unknown targets get 404 before any permission is checked. Must run after
// RequireAuth.
func (m *AuthMiddleware) RequirePermissionFor(resolve PermissionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			id := GetIdentityFromContext(ctx)
			if id == nil {
				m.logger.Error("identity not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			perm, ok := resolve(r)
			if !ok {
				_ = utils.WriteNotFound(w, "Resource not found")
				return
			}

			if !authz.HasPermission(id.Role, perm) {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.String("required_permission", string(perm)),
					zap.String("role", string(id.Role)))
				if m.recorder != nil {
					if err := m.recorder.APIDenied(AuditMeta(r), r.URL.Path, id.Subject, id.Email, string(id.Role), string(perm)); err != nil {
						m.logger.Warn("failed to record access denial", zap.Error(err))
					}
				}
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken reads the Authorization header first and falls back to the
// session cookie.
func extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
