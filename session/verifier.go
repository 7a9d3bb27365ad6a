package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/ferreteria/storefront/internal/authz"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrEmptyToken is returned when no token was supplied
	ErrEmptyToken = errors.New("empty token")
)

// Config holds configuration for the Verifier
type Config struct {
	Secret []byte
	Issuer string // optional; checked when set
}

// Verifier validates signed session tokens. It fails closed: callers only
// ever see a verified Identity or nil.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
	logger *zap.Logger
}

// NewVerifier creates a new session token verifier
func NewVerifier(cfg Config, logger *zap.Logger) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Verifier{
		secret: cfg.Secret,
		parser: jwt.NewParser(opts...),
		logger: logger,
	}
}

// Verify returns the identity carried by token, or nil if the token cannot be
// verified for any reason. Failures are logged and never returned.
func (v *Verifier) Verify(ctx context.Context, token string) *Identity {
	id, err := v.verify(token)
	if err != nil {
		v.logger.Warn("session token verification failed", zap.Error(err))
		return nil
	}
	return id
}

// Role returns the verified role claim of token.
func (v *Verifier) Role(ctx context.Context, token string) (authz.Role, bool) {
	id := v.Verify(ctx, token)
	if id == nil {
		return "", false
	}
	return id.Role, true
}

func (v *Verifier) verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: verifier has no secret", ErrInvalidToken)
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return toIdentity(claims)
}
