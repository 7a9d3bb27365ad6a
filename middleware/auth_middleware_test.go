package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ferreteria/storefront/internal/authz"
	"github.com/ferreteria/storefront/services/audit"
	"github.com/ferreteria/storefront/session"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockTokenVerifier is a mock implementation of TokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(ctx context.Context, token string) *session.Identity {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*session.Identity)
}

// MockDenialRecorder is a mock implementation of DenialRecorder
type MockDenialRecorder struct {
	mock.Mock
}

func (m *MockDenialRecorder) APIDenied(meta audit.RequestMeta, path, subject, email, role, permission string) error {
	args := m.Called(meta, path, subject, email, role, permission)
	return args.Error(0)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid token in Authorization header allows request", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		middleware := NewAuthMiddleware(verifier, nil, logger)

		id := &session.Identity{Subject: "user-123", Email: "user@example.com", Role: authz.RoleAdministrator}
		verifier.On("Verify", mock.Anything, "valid-token").Return(id)

		handler := middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := GetIdentityFromContext(r.Context())
			require.NotNil(t, got)
			assert.Equal(t, id.Subject, got.Subject)
			assert.Equal(t, "valid-token", GetTokenFromContext(r.Context()))
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		verifier.AssertExpectations(t)
	})

	t.Run("valid token in cookie allows request", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		middleware := NewAuthMiddleware(verifier, nil, logger)

		id := &session.Identity{Subject: "user-456", Role: authz.RoleOrderAdministrator}
		verifier.On("Verify", mock.Anything, "cookie-token-value").Return(id)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "cookie-token-value"})
		w := httptest.NewRecorder()

		middleware.RequireAuth(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		verifier.AssertExpectations(t)
	})

	t.Run("Authorization header takes precedence over cookie", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		middleware := NewAuthMiddleware(verifier, nil, logger)

		verifier.On("Verify", mock.Anything, "header-token").Return(&session.Identity{Role: authz.RoleAdministrator})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer header-token")
		req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "cookie-token"})
		w := httptest.NewRecorder()

		middleware.RequireAuth(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		verifier.AssertExpectations(t)
	})

	t.Run("missing token returns 401", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		middleware := NewAuthMiddleware(verifier, nil, logger)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		middleware.RequireAuth(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Missing or invalid authorization")
		verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})

	t.Run("malformed Authorization header returns 401", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		middleware := NewAuthMiddleware(verifier, nil, logger)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()

		middleware.RequireAuth(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unverifiable token returns 401", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		middleware := NewAuthMiddleware(verifier, nil, logger)

		verifier.On("Verify", mock.Anything, "bad-token").Return(nil)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		w := httptest.NewRecorder()

		middleware.RequireAuth(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid or expired token")
		verifier.AssertExpectations(t)
	})
}

func TestOptionalAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("anonymous request passes without identity", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		middleware := NewAuthMiddleware(verifier, nil, logger)

		handler := middleware.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Nil(t, GetIdentityFromContext(r.Context()))
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/checkout", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid token passes without identity", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		middleware := NewAuthMiddleware(verifier, nil, logger)
		verifier.On("Verify", mock.Anything, "stale").Return(nil)

		handler := middleware.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Nil(t, GetIdentityFromContext(r.Context()))
			assert.Empty(t, GetTokenFromContext(r.Context()))
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/checkout", nil)
		req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "stale"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("valid token attaches identity", func(t *testing.T) {
		verifier := new(MockTokenVerifier)
		middleware := NewAuthMiddleware(verifier, nil, logger)
		verifier.On("Verify", mock.Anything, "good").Return(&session.Identity{Subject: "c-1", Role: authz.RoleCustomer})

		handler := middleware.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := GetIdentityFromContext(r.Context())
			require.NotNil(t, id)
			assert.Equal(t, "c-1", id.Subject)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/checkout", nil)
		req.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequirePermissionFor(t *testing.T) {
	logger := zap.NewNop()

	withIdentity := func(r *http.Request, role authz.Role) *http.Request {
		id := &session.Identity{Subject: "u-1", Email: "u@example.com", Role: role}
		return r.WithContext(WithIdentity(r.Context(), id))
	}

	resolver := func(r *http.Request) (authz.Permission, bool) {
		switch r.URL.Path {
		case "/api/v1/admin/orders":
			return authz.PermViewOrders, true
		case "/api/v1/admin/products":
			return authz.PermViewProducts, true
		}
		return "", false
	}

	t.Run("granted permission passes", func(t *testing.T) {
		middleware := NewAuthMiddleware(new(MockTokenVerifier), nil, logger)

		req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil), authz.RoleOrderAdministrator)
		w := httptest.NewRecorder()
		middleware.RequirePermissionFor(resolver)(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing permission returns 403 and is recorded", func(t *testing.T) {
		recorder := new(MockDenialRecorder)
		middleware := NewAuthMiddleware(new(MockTokenVerifier), recorder, logger)

		recorder.On("APIDenied", mock.Anything, "/api/v1/admin/products", "u-1", "u@example.com",
			string(authz.RoleOrderAdministrator), string(authz.PermViewProducts)).Return(nil).Once()

		req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/admin/products", nil), authz.RoleOrderAdministrator)
		w := httptest.NewRecorder()
		middleware.RequirePermissionFor(resolver)(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		recorder.AssertExpectations(t)
	})

	t.Run("unknown target returns 404", func(t *testing.T) {
		recorder := new(MockDenialRecorder)
		middleware := NewAuthMiddleware(new(MockTokenVerifier), recorder, logger)

		req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/admin/nothing", nil), authz.RoleAdministrator)
		w := httptest.NewRecorder()
		middleware.RequirePermissionFor(resolver)(okHandler()).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		recorder.AssertNotCalled(t, "APIDenied", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no identity returns 401", func(t *testing.T) {
		middleware := NewAuthMiddleware(new(MockTokenVerifier), nil, logger)

		w := httptest.NewRecorder()
		middleware.RequirePermission(authz.PermViewDashboard)(okHandler()).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuditMeta(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.RemoteAddr = "10.0.0.7:54321"
	req.Header.Set("User-Agent", "test-agent")
	req = req.WithContext(context.WithValue(req.Context(), chimw.RequestIDKey, "req-1"))

	meta := AuditMeta(req)

	assert.Equal(t, "req-1", meta.RequestID)
	assert.Equal(t, "10.0.0.7", meta.IPAddress)
	assert.Equal(t, "test-agent", meta.UserAgent)
}
