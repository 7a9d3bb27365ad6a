package handlers

import (
	"net/http"
	"strings"

	"github.com/ferreteria/storefront/app"
	"github.com/ferreteria/storefront/internal/authz"
	"github.com/ferreteria/storefront/middleware"
	"github.com/ferreteria/storefront/services"
	"github.com/ferreteria/storefront/utils"
	"go.uber.org/zap"
)

// LoginRequest is the admin login form
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse tells a script-driven login page where to go next
type LoginResponse struct {
	Redirect string    `json:"redirect"`
	User     *UserView `json:"user"`
}

// LoginPageView describes the login page
type LoginPageView struct {
	Page  string `json:"page"`
	Error string `json:"error,omitempty"`
}

// LoginPage handles GET /admin/login. The route gate has already sent
// signed-in users to their landing page.
func LoginPage(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteOK(w, LoginPageView{Page: "login", Error: r.URL.Query().Get("error")})
	}
}

// Login handles POST /admin/login. Credentials go to the store backend; the
// returned token is verified before it is stored in the session cookie.
func Login(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		meta := middleware.AuditMeta(r)
		asJSON := wantsJSON(r)

		var req LoginRequest
		if asJSON {
			if err := utils.DecodeJSON(r, &req); err != nil {
				HandleDecodeError(w, err, deps.Logger)
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				HandleDecodeError(w, err, deps.Logger)
				return
			}
			req.Email = r.PostForm.Get("email")
			req.Password = r.PostForm.Get("password")
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))

		if err := utils.ValidateStruct(&req); err != nil {
			if !asJSON {
				http.Redirect(w, r, authz.LoginPath+"?error=invalid_input", http.StatusFound)
				return
			}
			HandleServiceError(w, err, deps.Logger)
			return
		}

		resp, err := deps.StoreAPI.Login(ctx, req.Email, req.Password)
		if err != nil {
			if services.IsUnauthorizedError(err) {
				_ = deps.Audit.LoginFailed(meta, req.Email, "invalid credentials")
			}
			deps.Logger.Warn("admin login failed",
				zap.String("request_id", meta.RequestID),
				zap.String("email", req.Email),
				zap.Error(err))
			if !asJSON {
				http.Redirect(w, r, authz.LoginPath+"?error=login_failed", http.StatusFound)
				return
			}
			HandleServiceError(w, err, deps.Logger)
			return
		}

		id := deps.Verifier.Verify(ctx, resp.Token)
		if id == nil {
			_ = deps.Audit.LoginFailed(meta, req.Email, "unverifiable token")
			deps.Logger.Error("store backend issued a token that does not verify",
				zap.String("request_id", meta.RequestID))
			if !asJSON {
				http.Redirect(w, r, authz.LoginPath+"?error=login_failed", http.StatusFound)
				return
			}
			HandleServiceError(w, services.ErrInvalidToken, deps.Logger)
			return
		}

		landing := authz.DefaultPath(id.Role)
		http.SetCookie(w, middleware.SessionCookie(resp.Token,
			int(deps.Config.Session.CookieMaxAge.Seconds()), deps.Config.Session.CookieSecure))
		_ = deps.Audit.LoginSucceeded(meta, id.Subject, id.Email, string(id.Role), landing)

		deps.Logger.Info("admin login",
			zap.String("request_id", meta.RequestID),
			zap.String("sub", id.Subject),
			zap.String("role", string(id.Role)))

		if !asJSON {
			http.Redirect(w, r, landing, http.StatusFound)
			return
		}
		_ = utils.WriteOK(w, LoginResponse{Redirect: landing, User: userViewOf(id)})
	}
}

// Logout handles POST /admin/logout. It always clears the cookie, whether or
// not the token still verifies.
func Logout(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var subject, email, role string
		if c, err := r.Cookie(middleware.TokenCookieName); err == nil && c.Value != "" {
			if id := deps.Verifier.Verify(r.Context(), c.Value); id != nil {
				subject, email, role = id.Subject, id.Email, string(id.Role)
			}
		}

		http.SetCookie(w, middleware.ClearTokenCookie(deps.Config.Session.CookieSecure))
		_ = deps.Audit.Logout(middleware.AuditMeta(r), subject, email, role)

		if wantsJSON(r) {
			_ = utils.WriteOK(w, LoginResponse{Redirect: authz.LoginPath})
			return
		}
		http.Redirect(w, r, authz.LoginPath, http.StatusFound)
	}
}
