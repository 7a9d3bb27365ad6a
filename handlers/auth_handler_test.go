package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ferreteria/storefront/internal/authz"
	"github.com/ferreteria/storefront/middleware"
	"github.com/ferreteria/storefront/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loginBackend answers POST /auth/login with token for the expected password.
func loginBackend(t *testing.T, token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "correct-horse" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid credentials"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"token": token,
			"user":  map[string]string{"id": "user-1", "email": body["email"]},
		})
	})
	return mux
}

func jsonLogin(email, password string) *http.Request {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formLogin(email, password string) *http.Request {
	form := url.Values{"email": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLogin(t *testing.T) {
	t.Run("json login sets the cookie and returns the landing page", func(t *testing.T) {
		token := signedToken(t, authz.RoleAdministrator)
		deps := newTestDeps(t, loginBackend(t, token))

		w := httptest.NewRecorder()
		Login(deps)(w, jsonLogin("Admin@Ferreteria.test", "correct-horse"))

		require.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Data LoginResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, authz.DashboardPath, response.Data.Redirect)
		require.NotNil(t, response.Data.User)
		assert.Equal(t, "administrator", response.Data.User.Role)

		cookie := findCookie(w, middleware.TokenCookieName)
		require.NotNil(t, cookie)
		assert.Equal(t, token, cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, 3600, cookie.MaxAge)
	})

	t.Run("form login redirects an order administrator to orders", func(t *testing.T) {
		deps := newTestDeps(t, loginBackend(t, signedToken(t, authz.RoleOrderAdministrator)))

		w := httptest.NewRecorder()
		Login(deps)(w, formLogin("orders@ferreteria.test", "correct-horse"))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, authz.OrdersPath, w.Header().Get("Location"))
		assert.NotNil(t, findCookie(w, middleware.TokenCookieName))
	})

	t.Run("wrong password returns 401 for json", func(t *testing.T) {
		deps := newTestDeps(t, loginBackend(t, signedToken(t, authz.RoleAdministrator)))

		w := httptest.NewRecorder()
		Login(deps)(w, jsonLogin("admin@ferreteria.test", "wrong"))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Nil(t, findCookie(w, middleware.TokenCookieName))
	})

	t.Run("wrong password sends a form back to login", func(t *testing.T) {
		deps := newTestDeps(t, loginBackend(t, signedToken(t, authz.RoleAdministrator)))

		w := httptest.NewRecorder()
		Login(deps)(w, formLogin("admin@ferreteria.test", "wrong"))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/admin/login?error=login_failed", w.Header().Get("Location"))
	})

	t.Run("invalid email is rejected before calling the backend", func(t *testing.T) {
		deps := newTestDeps(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("backend must not be called")
		}))

		w := httptest.NewRecorder()
		Login(deps)(w, jsonLogin("not-an-email", "correct-horse"))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Contains(t, response.Details, "email")
	})

	t.Run("token that does not verify is refused", func(t *testing.T) {
		deps := newTestDeps(t, loginBackend(t, "not-a-jwt"))

		w := httptest.NewRecorder()
		Login(deps)(w, jsonLogin("admin@ferreteria.test", "correct-horse"))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Nil(t, findCookie(w, middleware.TokenCookieName))
	})

	t.Run("malformed json body", func(t *testing.T) {
		deps := newTestDeps(t, nil)

		req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		Login(deps)(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLogout(t *testing.T) {
	deps := newTestDeps(t, nil)

	t.Run("clears the cookie and redirects to login", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
		req.AddCookie(&http.Cookie{Name: middleware.TokenCookieName, Value: signedToken(t, authz.RoleAdministrator)})
		w := httptest.NewRecorder()

		Logout(deps)(w, req)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, authz.LoginPath, w.Header().Get("Location"))
		cookie := findCookie(w, middleware.TokenCookieName)
		require.NotNil(t, cookie)
		assert.Equal(t, "", cookie.Value)
		assert.True(t, cookie.MaxAge < 0)
	})

	t.Run("json logout without a cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
		req.Header.Set("Accept", "application/json")
		w := httptest.NewRecorder()

		Logout(deps)(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), authz.LoginPath)
	})
}

func TestLoginPage(t *testing.T) {
	deps := newTestDeps(t, nil)

	w := httptest.NewRecorder()
	LoginPage(deps)(w, httptest.NewRequest(http.MethodGet, "/admin/login?error=login_failed", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data LoginPageView `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "login", response.Data.Page)
	assert.Equal(t, "login_failed", response.Data.Error)
}
