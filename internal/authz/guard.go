package authz

import (
	"encoding/json"
	"strings"
)

// GuardMode selects what a denied Guard decision asks the caller to do.
type GuardMode string

const (
	GuardModeRedirect GuardMode = "redirect"
	GuardModeFallback GuardMode = "fallback"
)

// ParseGuardMode defaults to GuardModeRedirect for unknown values.
func ParseGuardMode(s string) GuardMode {
	if GuardMode(strings.ToLower(strings.TrimSpace(s))) == GuardModeFallback {
		return GuardModeFallback
	}
	return GuardModeRedirect
}

// CachedUser is the identity the browser keeps in local storage. It is not
// verified and must never be used as a security boundary.
type CachedUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Decision is the outcome of a Guard evaluation.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Redirect string `json:"redirect,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
	Role     Role   `json:"role,omitempty"`
}

// Guard re-evaluates CanRoleAccessRoute against a cached identity so that a
// view can hide or leave before loading data. The Route Gate stays
// authoritative.
type Guard struct {
	mode GuardMode
}

// NewGuard creates a Guard that resolves denials according to mode.
func NewGuard(mode GuardMode) *Guard {
	if mode != GuardModeFallback {
		mode = GuardModeRedirect
	}
	return &Guard{mode: mode}
}

// Mode returns the configured denial mode.
func (g *Guard) Mode() GuardMode {
	return g.mode
}

// Evaluate decodes the raw cached user and checks pathname. Missing or corrupt
// input is treated as denied.
func (g *Guard) Evaluate(cachedUser []byte, pathname string) Decision {
	if len(cachedUser) == 0 {
		return g.deny("")
	}

	var user CachedUser
	if err := json.Unmarshal(cachedUser, &user); err != nil {
		return g.deny("")
	}
	return g.EvaluateUser(&user, pathname)
}

// EvaluateUser checks an already decoded cached user.
func (g *Guard) EvaluateUser(user *CachedUser, pathname string) Decision {
	if user == nil {
		return g.deny("")
	}
	role, ok := ParseRole(user.Role)
	if !ok {
		return g.deny("")
	}
	if !CanRoleAccessRoute(role, pathname) {
		return g.deny(role)
	}
	return Decision{Allowed: true, Role: role}
}

func (g *Guard) deny(role Role) Decision {
	if g.mode == GuardModeFallback {
		return Decision{Allowed: false, Fallback: true, Role: role}
	}
	return Decision{Allowed: false, Redirect: DefaultPath(role), Role: role}
}
