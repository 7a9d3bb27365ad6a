// Package authz provides the role-based authorization model for the
// storefront admin dashboard.
//
// This package implements:
//   - The Role and Permission vocabulary and the static Permission Table
//   - The route predicate shared by the request-time Route Gate and the
//     advisory client guard (CanRoleAccessRoute, DefaultPath)
//   - The Guard, which re-evaluates the predicate against an untrusted,
//     locally cached identity
//
// Everything here is pure and safe for concurrent use. The Route Gate in
// package middleware is the only authoritative consumer; Guard decisions
// are advisory.
package authz
