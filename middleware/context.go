package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/ferreteria/storefront/services/audit"
	"github.com/ferreteria/storefront/session"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Context key type to avoid collisions
type contextKey string

const (
	// IdentityKey is the context key for the verified session identity
	IdentityKey contextKey = "identity"

	// TokenKey is the context key for the raw session token
	TokenKey contextKey = "session_token"
)

// GetRequestIDFromContext returns the id set by chi's RequestID middleware.
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetIdentityFromContext retrieves the verified identity from context
func GetIdentityFromContext(ctx context.Context) *session.Identity {
	if val := ctx.Value(IdentityKey); val != nil {
		if id, ok := val.(*session.Identity); ok {
			return id
		}
	}
	return nil
}

// WithIdentity adds a verified identity to the context
func WithIdentity(ctx context.Context, id *session.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// GetTokenFromContext retrieves the session token that produced the identity
func GetTokenFromContext(ctx context.Context) string {
	if val := ctx.Value(TokenKey); val != nil {
		if token, ok := val.(string); ok {
			return token
		}
	}
	return ""
}

// WithToken adds the raw session token to the context
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, TokenKey, token)
}

// AuditMeta collects the request fields stored with access events.
func AuditMeta(r *http.Request) audit.RequestMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return audit.RequestMeta{
		RequestID: GetRequestIDFromContext(r.Context()),
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}
