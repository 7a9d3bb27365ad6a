package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var adminOnlySections = []string{
	"/admin/dashboard/productos",
	"/admin/dashboard/categorias",
	"/admin/dashboard/banners",
	"/admin/dashboard/clientes",
	"/admin/dashboard/cupones",
	"/admin/dashboard/api-keys",
}

func TestCanRoleAccessRoute(t *testing.T) {
	t.Run("admin-only prefixes", func(t *testing.T) {
		for _, p := range adminOnlySections {
			for _, path := range []string{p, p + "/", p + "/nuevo", p + "/42/editar"} {
				assert.False(t, CanRoleAccessRoute(RoleOrderAdministrator, path), path)
				assert.True(t, CanRoleAccessRoute(RoleAdministrator, path), path)
				assert.False(t, CanRoleAccessRoute(RoleCustomer, path), path)
			}
		}
	})

	t.Run("login is always reachable", func(t *testing.T) {
		for _, role := range []Role{RoleAdministrator, RoleOrderAdministrator, RoleCustomer, Role(""), Role("intruder")} {
			assert.True(t, CanRoleAccessRoute(role, LoginPath), string(role))
		}
	})

	t.Run("order administrator allow list", func(t *testing.T) {
		assert.True(t, CanRoleAccessRoute(RoleOrderAdministrator, "/admin/dashboard"))
		assert.True(t, CanRoleAccessRoute(RoleOrderAdministrator, "/admin/dashboard/ordenes"))
		assert.True(t, CanRoleAccessRoute(RoleOrderAdministrator, "/admin/dashboard/ordenes/123"))
		assert.False(t, CanRoleAccessRoute(RoleOrderAdministrator, "/admin/dashboardx"))
		assert.False(t, CanRoleAccessRoute(RoleOrderAdministrator, "/admin/otra"))
		assert.True(t, CanRoleAccessRoute(RoleOrderAdministrator, "/admin/dashboard/usuarios"))
	})

	t.Run("non canonical paths are normalized", func(t *testing.T) {
		tests := []struct {
			path string
			want bool
		}{
			{"/admin/dashboard//productos", false},
			{"/admin/dashboard/ordenes/../productos", false},
			{"/admin/dashboard/./cupones/", false},
			{"admin/dashboard/banners", false},
			{"/admin/dashboard/ordenes/", true},
			{"/admin//dashboard", true},
			{"/admin/login/", true},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.want, CanRoleAccessRoute(RoleOrderAdministrator, tt.path), tt.path)
			assert.Equal(t, CanRoleAccessRoute(RoleOrderAdministrator, NormalizePath(tt.path)),
				CanRoleAccessRoute(RoleOrderAdministrator, tt.path), tt.path)
		}
	})

	t.Run("customer and unknown roles are denied", func(t *testing.T) {
		for _, path := range []string{"/admin/dashboard", "/admin/dashboard/ordenes", "/admin"} {
			assert.False(t, CanRoleAccessRoute(RoleCustomer, path))
			assert.False(t, CanRoleAccessRoute(Role("superuser"), path))
			assert.False(t, CanRoleAccessRoute(Role(""), path))
		}
	})

	t.Run("administrator bypasses prefix checks", func(t *testing.T) {
		for _, path := range []string{"/admin", "/admin/dashboard", "/admin/dashboard/usuarios", "/admin/anything"} {
			assert.True(t, CanRoleAccessRoute(RoleAdministrator, path))
		}
	})

	t.Run("pure function of inputs", func(t *testing.T) {
		paths := append([]string{"/admin/dashboard", "/admin/dashboard/ordenes", LoginPath}, adminOnlySections...)
		for _, role := range []Role{RoleAdministrator, RoleOrderAdministrator, RoleCustomer} {
			for _, path := range paths {
				assert.Equal(t, CanRoleAccessRoute(role, path), CanRoleAccessRoute(role, path))
			}
		}
	})
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, "/admin/dashboard", DefaultPath(RoleAdministrator))
	assert.Equal(t, "/admin/dashboard/ordenes", DefaultPath(RoleOrderAdministrator))
	assert.Equal(t, "/", DefaultPath(RoleCustomer))
	assert.Equal(t, "/", DefaultPath(Role("unknown")))
	assert.Equal(t, "/", DefaultPath(Role("")))
}

func TestDefaultPathIsReachable(t *testing.T) {
	for _, role := range []Role{RoleAdministrator, RoleOrderAdministrator} {
		assert.True(t, CanRoleAccessRoute(role, DefaultPath(role)), string(role))
	}
}

func TestRequiredPermission(t *testing.T) {
	tests := []struct {
		path string
		want Permission
		ok   bool
	}{
		{"/admin/dashboard", PermViewDashboard, true},
		{"/admin/dashboard/productos/9", PermViewProducts, true},
		{"/admin/dashboard/ordenes", PermViewOrders, true},
		{"/admin/dashboard/usuarios", PermViewUsers, true},
		{"/admin/dashboard/api-keys", PermViewAPIKeys, true},
		{"/admin/dashboard/ordenes/../cupones", PermViewCoupons, true},
		{"/admin/login", "", false},
		{"/", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := RequiredPermission(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoutePermissionsOrdering(t *testing.T) {
	// A prefix must never be shadowed by a shorter prefix listed before it.
	rps := RoutePermissions()
	for i, earlier := range rps {
		for _, later := range rps[i+1:] {
			assert.Falsef(t, len(later.Prefix) > len(earlier.Prefix) && hasPrefix(later.Prefix, earlier.Prefix),
				"%s is shadowed by %s", later.Prefix, earlier.Prefix)
		}
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func TestPermissionTableAgreesWithRoutes(t *testing.T) {
	for _, rp := range RoutePermissions() {
		for _, role := range []Role{RoleAdministrator, RoleOrderAdministrator, RoleCustomer} {
			if HasPermission(role, rp.Permission) {
				assert.Truef(t, CanRoleAccessRoute(role, rp.Prefix),
					"%s holds %s but cannot open %s", role, rp.Permission, rp.Prefix)
			}
		}
	}

	t.Run("admin-only sections need a permission order administrators lack", func(t *testing.T) {
		for _, p := range adminOnlySections {
			perm, ok := RequiredPermission(p)
			require.True(t, ok, p)
			assert.False(t, HasPermission(RoleOrderAdministrator, perm), p)
		}
	})
}

func TestPermissionTable(t *testing.T) {
	t.Run("administrator covers order administrator", func(t *testing.T) {
		for _, p := range Permissions(RoleOrderAdministrator) {
			assert.True(t, HasPermission(RoleAdministrator, p), string(p))
		}
	})

	t.Run("customer has none", func(t *testing.T) {
		assert.Empty(t, Permissions(RoleCustomer))
		assert.False(t, HasPermission(RoleCustomer, PermViewDashboard))
	})

	t.Run("order administrator manages orders only", func(t *testing.T) {
		assert.True(t, HasPermission(RoleOrderAdministrator, PermManageOrders))
		assert.False(t, HasPermission(RoleOrderAdministrator, PermViewAPIKeys))
		assert.False(t, HasPermission(RoleOrderAdministrator, PermManageProducts))
	})

	t.Run("unknown role", func(t *testing.T) {
		assert.False(t, HasPermission(Role("ghost"), PermViewDashboard))
		assert.Empty(t, Permissions(Role("ghost")))
	})
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" order-administrator ")
	require.True(t, ok)
	assert.Equal(t, RoleOrderAdministrator, r)

	_, ok = ParseRole("admin")
	assert.False(t, ok)
}
