package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ferreteria/storefront/app"
	"github.com/ferreteria/storefront/internal/authz"
	"github.com/ferreteria/storefront/middleware"
	"github.com/ferreteria/storefront/models"
	"github.com/ferreteria/storefront/repositories"
	"github.com/ferreteria/storefront/services"
	"github.com/ferreteria/storefront/utils"
	"github.com/go-chi/chi/v5"
)

// adminResources maps API resource names to the dashboard section that shows
// them. The section's route decides the permission.
var adminResources = map[string]string{
	"products":   "productos",
	"categories": "categorias",
	"banners":    "banners",
	"orders":     "ordenes",
	"customers":  "clientes",
	"coupons":    "cupones",
	"api-keys":   "api-keys",
	"users":      "usuarios",
}

// AdminResourcePermission resolves the permission of /api/v1/admin/{resource}.
func AdminResourcePermission(r *http.Request) (authz.Permission, bool) {
	section, ok := adminResources[chi.URLParam(r, "resource")]
	if !ok {
		return "", false
	}
	return authz.RequiredPermission(authz.DashboardPath + "/" + section)
}

// NavItem is one dashboard menu entry
type NavItem struct {
	Section string `json:"section"`
	Path    string `json:"path"`
}

// PageView describes a dashboard page for the signed-in user
type PageView struct {
	Page        string             `json:"page"`
	Path        string             `json:"path"`
	User        *UserView          `json:"user"`
	Permissions []authz.Permission `json:"permissions"`
	Navigation  []NavItem          `json:"navigation"`
}

// navigation lists the dashboard sections role can open and read, in menu
// order.
func navigation(role authz.Role) []NavItem {
	items := []NavItem{}
	for _, rp := range authz.RoutePermissions() {
		if !authz.CanRoleAccessRoute(role, rp.Prefix) || !authz.HasPermission(role, rp.Permission) {
			continue
		}
		section := strings.TrimPrefix(strings.TrimPrefix(rp.Prefix, authz.DashboardPath), "/")
		if section == "" {
			section = "inicio"
		}
		items = append(items, NavItem{Section: section, Path: rp.Prefix})
	}
	return items
}

func isKnownSection(section string) bool {
	for _, known := range adminResources {
		if known == section {
			return true
		}
	}
	return false
}

// AdminIndex handles GET /admin by sending the user to their landing page.
func AdminIndex(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := authz.LoginPath
		if id := middleware.GetIdentityFromContext(r.Context()); id != nil {
			target = authz.DefaultPath(id.Role)
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// DashboardPage handles GET /admin/dashboard and its sections. Access has
// already been decided by the route gate.
func DashboardPage(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetIdentityFromContext(r.Context())
		if id == nil {
			http.Redirect(w, r, authz.LoginPath, http.StatusFound)
			return
		}

		page := "dashboard"
		if section := chi.URLParam(r, "section"); section != "" {
			if !isKnownSection(section) {
				_ = utils.WriteNotFound(w, "Page not found")
				return
			}
			page = section
		}

		_ = utils.WriteOK(w, PageView{
			Page:        page,
			Path:        r.URL.Path,
			User:        userViewOf(id),
			Permissions: authz.Permissions(id.Role),
			Navigation:  navigation(id.Role),
		})
	}
}

// AdminResource handles GET /api/v1/admin/{resource}, proxying the listing
// with the caller's own token.
func AdminResource(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource := chi.URLParam(r, "resource")
		data, err := deps.StoreAPI.List(r.Context(), middleware.GetTokenFromContext(r.Context()), resource)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		_ = utils.WriteOK(w, data)
	}
}

// Me handles GET /api/v1/admin/me
func Me(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetIdentityFromContext(r.Context())
		if id == nil {
			_ = utils.WriteUnauthorized(w, "")
			return
		}
		_ = utils.WriteOK(w, map[string]interface{}{
			"user":        userViewOf(id),
			"permissions": authz.Permissions(id.Role),
			"landing":     authz.DefaultPath(id.Role),
			"expiresAt":   id.ExpiresAt,
		})
	}
}

// ListAccessEvents handles GET /api/v1/admin/access-events
func ListAccessEvents(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := repositories.AccessEventFilter{
			Action:  models.AccessAction(q.Get("action")),
			Subject: q.Get("subject"),
		}
		if v := q.Get("since"); v != "" {
			since, err := time.Parse(time.RFC3339, v)
			if err != nil {
				HandleServiceError(w, services.ErrInvalidInput.WithDetail("since", "since must be an RFC 3339 timestamp"), deps.Logger)
				return
			}
			filter.Since = since
		}
		for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
			if v := q.Get(key); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n < 0 {
					HandleServiceError(w, services.ErrInvalidInput.WithDetail(key, key+" must be a non-negative integer"), deps.Logger)
					return
				}
				*dst = n
			}
		}

		events, err := deps.Audit.Recent(r.Context(), filter)
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		if events == nil {
			events = []*models.AccessEvent{}
		}
		_ = utils.WriteOK(w, events)
	}
}
