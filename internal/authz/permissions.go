package authz

import "strings"

// Role identifies the kind of account carried in a session token.
type Role string

const (
	RoleAdministrator      Role = "administrator"
	RoleOrderAdministrator Role = "order-administrator"
	RoleCustomer           Role = "customer"
)

// ParseRole converts a claim value into a known Role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.TrimSpace(s)); r {
	case RoleAdministrator, RoleOrderAdministrator, RoleCustomer:
		return r, true
	default:
		return "", false
	}
}

// Permission is a named capability granted to a role.
type Permission string

const (
	PermViewDashboard    Permission = "view-dashboard"
	PermViewProducts     Permission = "view-products"
	PermManageProducts   Permission = "manage-products"
	PermViewCategories   Permission = "view-categories"
	PermManageCategories Permission = "manage-categories"
	PermViewBanners      Permission = "view-banners"
	PermManageBanners    Permission = "manage-banners"
	PermViewOrders       Permission = "view-orders"
	PermManageOrders     Permission = "manage-orders"
	PermViewCustomers    Permission = "view-customers"
	PermManageCustomers  Permission = "manage-customers"
	PermViewCoupons      Permission = "view-coupons"
	PermManageCoupons    Permission = "manage-coupons"
	PermViewAPIKeys      Permission = "view-api-keys"
	PermManageAPIKeys    Permission = "manage-api-keys"
	PermViewUsers        Permission = "view-users"
	PermManageUsers      Permission = "manage-users"
)

// allPermissions lists every permission in declaration order.
var allPermissions = []Permission{
	PermViewDashboard,
	PermViewProducts, PermManageProducts,
	PermViewCategories, PermManageCategories,
	PermViewBanners, PermManageBanners,
	PermViewOrders, PermManageOrders,
	PermViewCustomers, PermManageCustomers,
	PermViewCoupons, PermManageCoupons,
	PermViewAPIKeys, PermManageAPIKeys,
	PermViewUsers, PermManageUsers,
}

// rolePermissions is the Permission Table. It is never mutated after init.
var rolePermissions = map[Role]map[Permission]struct{}{
	RoleAdministrator:      setOf(allPermissions...),
	RoleOrderAdministrator: setOf(PermViewDashboard, PermViewOrders, PermManageOrders),
	RoleCustomer:           setOf(),
}

func setOf(perms ...Permission) map[Permission]struct{} {
	s := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// HasPermission reports whether role has been granted perm.
func HasPermission(role Role, perm Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = perms[perm]
	return ok
}

// Permissions returns the permissions granted to role in declaration order.
func Permissions(role Role) []Permission {
	out := make([]Permission, 0, len(rolePermissions[role]))
	for _, p := range allPermissions {
		if HasPermission(role, p) {
			out = append(out, p)
		}
	}
	return out
}
