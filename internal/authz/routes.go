package authz

import (
	"path"
	"strings"
)

// Admin route paths.
const (
	AdminPrefix   = "/admin"
	LoginPath     = "/admin/login"
	LogoutPath    = "/admin/logout"
	DashboardPath = "/admin/dashboard"
	OrdersPath    = "/admin/dashboard/ordenes"
	SiteRoot      = "/"
)

// adminOnlyPrefixes are never reachable by order administrators, regardless
// of the allow list.
var adminOnlyPrefixes = []string{
	"/admin/dashboard/productos",
	"/admin/dashboard/categorias",
	"/admin/dashboard/banners",
	"/admin/dashboard/clientes",
	"/admin/dashboard/cupones",
	"/admin/dashboard/api-keys",
}

// orderAdminAllowed are matched exactly or as a parent of the path. The
// dashboard root therefore admits every section not in adminOnlyPrefixes,
// including the users page; its data stays behind view-users.
var orderAdminAllowed = []string{
	DashboardPath,
	OrdersPath,
}

// RoutePermission binds a route prefix to the permission it requires.
type RoutePermission struct {
	Prefix     string
	Permission Permission
}

// routePermissions is evaluated in order and the first matching prefix wins,
// so more specific prefixes must come before shorter ones that contain them.
var routePermissions = []RoutePermission{
	{"/admin/dashboard/productos", PermViewProducts},
	{"/admin/dashboard/categorias", PermViewCategories},
	{"/admin/dashboard/banners", PermViewBanners},
	{"/admin/dashboard/ordenes", PermViewOrders},
	{"/admin/dashboard/clientes", PermViewCustomers},
	{"/admin/dashboard/cupones", PermViewCoupons},
	{"/admin/dashboard/api-keys", PermViewAPIKeys},
	{"/admin/dashboard/usuarios", PermViewUsers},
	{"/admin/dashboard", PermViewDashboard},
}

// RoutePermissions returns a copy of the route permission map.
func RoutePermissions() []RoutePermission {
	out := make([]RoutePermission, len(routePermissions))
	copy(out, routePermissions)
	return out
}

// NormalizePath resolves dot segments and repeated slashes and roots the
// path. Every route decision is taken on the normalized form.
func NormalizePath(p string) string {
	return path.Clean("/" + p)
}

// RequiredPermission returns the permission needed for p, using
// starts-with matching with first match winning.
func RequiredPermission(p string) (Permission, bool) {
	p = NormalizePath(p)
	for _, rp := range routePermissions {
		if strings.HasPrefix(p, rp.Prefix) {
			return rp.Permission, true
		}
	}
	return "", false
}

// CanRoleAccessRoute is the single authorization predicate shared by the
// Route Gate and the Guard. It is a pure function of its inputs.
func CanRoleAccessRoute(role Role, pathname string) bool {
	pathname = NormalizePath(pathname)
	if pathname == LoginPath {
		return true
	}

	switch role {
	case RoleAdministrator:
		return true

	case RoleOrderAdministrator:
		// Deny list is checked before the allow list.
		for _, prefix := range adminOnlyPrefixes {
			if strings.HasPrefix(pathname, prefix) {
				return false
			}
		}
		for _, allowed := range orderAdminAllowed {
			if pathname == allowed || strings.HasPrefix(pathname, allowed+"/") {
				return true
			}
		}
		return false

	default:
		return false
	}
}

// DefaultPath is the landing page after login and the redirect target when
// access is denied.
func DefaultPath(role Role) string {
	switch role {
	case RoleAdministrator:
		return DashboardPath
	case RoleOrderAdministrator:
		return OrdersPath
	default:
		return SiteRoot
	}
}

// IsAdminPath reports whether p falls under the gated admin area.
func IsAdminPath(p string) bool {
	p = NormalizePath(p)
	return p == AdminPrefix || strings.HasPrefix(p, AdminPrefix+"/")
}
