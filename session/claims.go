package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/ferreteria/storefront/internal/authz"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingClaim is returned when a required claim is missing
	ErrMissingClaim = errors.New("missing required claim")

	// ErrUnknownRole is returned when the role claim is not a known role
	ErrUnknownRole = errors.New("unknown role")
)

// Claims represents the claims carried by a store session token. Tokens are
// issued by the store backend; this package only verifies them.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// Identity is the verified session identity.
type Identity struct {
	Subject   string
	Email     string
	Role      authz.Role
	ExpiresAt time.Time
}

// toIdentity converts verified claims into an Identity.
func toIdentity(claims *Claims) (*Identity, error) {
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: role", ErrMissingClaim)
	}
	role, ok := authz.ParseRole(claims.Role)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}

	id := &Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Role:    role,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// NewToken signs an HS256 session token. The store backend is the issuer in
// production; this exists for local development and tests.
func NewToken(secret []byte, issuer, subject, email string, role authz.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
		Role:  string(role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
