package middleware

import (
	"context"
	"net/http"

	"github.com/ferreteria/storefront/internal/authz"
	"github.com/ferreteria/storefront/internal/observability"
	"github.com/ferreteria/storefront/models"
	"github.com/ferreteria/storefront/session"
	"go.uber.org/zap"
)

// TokenCookieName is the cookie carrying the admin session token.
const TokenCookieName = "token"

// AccessRecorder receives gate redirects for the access trail.
type AccessRecorder interface {
	Record(event *models.AccessEvent) error
}

// GateDecision is the outcome of evaluating one admin request.
type GateDecision struct {
	Outcome     string // observability.Gate* outcome
	Redirect    string
	Identity    *session.Identity
	TokenState  string
	ClearCookie bool
}

// RouteGate runs in front of every admin page. It either lets the request
// through or redirects it, and drops a session cookie that fails
// verification.
type RouteGate struct {
	verifier     TokenVerifier
	recorder     AccessRecorder
	metrics      *observability.Metrics
	logger       *zap.Logger
	secureCookie bool
}

// NewRouteGate creates a route gate. recorder and metrics may be nil.
func NewRouteGate(verifier TokenVerifier, recorder AccessRecorder, metrics *observability.Metrics, logger *zap.Logger, secureCookie bool) *RouteGate {
	return &RouteGate{
		verifier:     verifier,
		recorder:     recorder,
		metrics:      metrics,
		logger:       logger,
		secureCookie: secureCookie,
	}
}

// Decide evaluates a request for pathname carrying token (empty when the
// cookie is absent).
func (g *RouteGate) Decide(ctx context.Context, pathname, token string) GateDecision {
	pathname = authz.NormalizePath(pathname)

	if token == "" {
		if pathname == authz.LoginPath {
			return GateDecision{Outcome: observability.GatePass, TokenState: models.TokenAbsent}
		}
		return GateDecision{
			Outcome:    observability.GateRedirectLogin,
			Redirect:   authz.LoginPath,
			TokenState: models.TokenAbsent,
		}
	}

	id := g.verifier.Verify(ctx, token)
	if id == nil {
		d := GateDecision{
			Outcome:     observability.GateRedirectLogin,
			Redirect:    authz.LoginPath,
			TokenState:  models.TokenInvalid,
			ClearCookie: true,
		}
		if pathname == authz.LoginPath {
			d.Outcome = observability.GatePass
			d.Redirect = ""
		}
		return d
	}

	if pathname == authz.LoginPath {
		return GateDecision{
			Outcome:    observability.GateRedirectDefault,
			Redirect:   authz.DefaultPath(id.Role),
			Identity:   id,
			TokenState: models.TokenValid,
		}
	}

	if !authz.CanRoleAccessRoute(id.Role, pathname) {
		return GateDecision{
			Outcome:    observability.GateRedirectDefault,
			Redirect:   authz.DefaultPath(id.Role),
			Identity:   id,
			TokenState: models.TokenValid,
		}
	}

	return GateDecision{Outcome: observability.GatePass, Identity: id, TokenState: models.TokenValid}
}

// Handler gates admin paths. Anything outside the admin area passes
// untouched, and so does logout.
func (g *RouteGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := authz.NormalizePath(r.URL.Path); !authz.IsAdminPath(p) || p == authz.LogoutPath {
			next.ServeHTTP(w, r)
			return
		}

		var token string
		if cookie, err := r.Cookie(TokenCookieName); err == nil {
			token = cookie.Value
		}

		d := g.Decide(r.Context(), r.URL.Path, token)
		g.metrics.IncGateDecision(d.Outcome)

		if d.ClearCookie {
			http.SetCookie(w, ClearTokenCookie(g.secureCookie))
		}

		if d.Outcome == observability.GatePass {
			ctx := r.Context()
			if d.Identity != nil {
				ctx = WithToken(WithIdentity(ctx, d.Identity), token)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		g.logger.Debug("route gate redirect",
			zap.String("request_id", GetRequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.String("outcome", d.Outcome),
			zap.String("redirect", d.Redirect))
		g.record(r, d)

		http.Redirect(w, r, d.Redirect, http.StatusFound)
	})
}

func (g *RouteGate) record(r *http.Request, d GateDecision) {
	if g.recorder == nil {
		return
	}
	action := models.AccessActionRedirectLogin
	if d.Outcome == observability.GateRedirectDefault {
		action = models.AccessActionRedirectDefault
	}
	meta := AuditMeta(r)
	event := models.NewAccessEvent(action, r.URL.Path).
		WithRequest(meta.RequestID, meta.IPAddress, meta.UserAgent).
		WithRedirect(d.Redirect)
	if d.Identity != nil {
		event.WithIdentity(d.Identity.Subject, d.Identity.Email, string(d.Identity.Role))
	} else {
		event.WithTokenState(d.TokenState)
	}
	if err := g.recorder.Record(event); err != nil {
		g.logger.Warn("failed to record gate redirect", zap.Error(err))
	}
}

// SessionCookie builds the admin session cookie.
func SessionCookie(token string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearTokenCookie expires the admin session cookie.
func ClearTokenCookie(secure bool) *http.Cookie {
	return SessionCookie("", -1, secure)
}
