package handlers

import (
	"mime"
	"net/http"
	"strings"

	"github.com/ferreteria/storefront/app"
	"github.com/ferreteria/storefront/middleware"
	"github.com/ferreteria/storefront/services/checkout"
	"github.com/ferreteria/storefront/session"
)

// CheckoutCookieName keys a browser to its checkout session.
const CheckoutCookieName = "checkout_session"

// UserView is the cached-user shape the browser keeps after login. It is the
// same JSON the guard endpoint accepts.
type UserView struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

func userViewOf(id *session.Identity) *UserView {
	if id == nil {
		return nil
	}
	return &UserView{ID: id.Subject, Email: id.Email, Role: string(id.Role)}
}

// wantsJSON reports whether the caller is a script rather than a form post.
func wantsJSON(r *http.Request) bool {
	if ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && ct == "application/json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// checkoutSession resolves the caller's checkout, creating one and setting
// the cookie when needed. Signed-in buyers are not guests.
func checkoutSession(deps *app.Dependencies, w http.ResponseWriter, r *http.Request) *checkout.Session {
	var id string
	if c, err := r.Cookie(CheckoutCookieName); err == nil {
		id = c.Value
	}

	guest := middleware.GetIdentityFromContext(r.Context()) == nil
	sess, created := deps.Checkout.Resolve(id, guest)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     CheckoutCookieName,
			Value:    sess.ID,
			Path:     "/",
			MaxAge:   int(deps.Config.Checkout.SessionTTL.Seconds()),
			HttpOnly: true,
			Secure:   deps.Config.Session.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}
