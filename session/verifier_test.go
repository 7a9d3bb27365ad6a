package session

import (
	"context"
	"testing"
	"time"

	"github.com/ferreteria/storefront/internal/authz"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret-please-change")

func newTestVerifier(issuer string) *Verifier {
	return NewVerifier(Config{Secret: testSecret, Issuer: issuer}, zap.NewNop())
}

func signClaims(t *testing.T, method jwt.SigningMethod, key interface{}, claims *Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("valid administrator token", func(t *testing.T) {
		token, err := NewToken(testSecret, "", "user-1", "admin@ferreteria.test", authz.RoleAdministrator, time.Hour)
		require.NoError(t, err)

		id := newTestVerifier("").Verify(ctx, token)
		require.NotNil(t, id)
		assert.Equal(t, "user-1", id.Subject)
		assert.Equal(t, "admin@ferreteria.test", id.Email)
		assert.Equal(t, authz.RoleAdministrator, id.Role)
		assert.WithinDuration(t, time.Now().Add(time.Hour), id.ExpiresAt, 5*time.Second)
	})

	t.Run("role helper", func(t *testing.T) {
		token, err := NewToken(testSecret, "", "user-2", "", authz.RoleOrderAdministrator, time.Hour)
		require.NoError(t, err)

		role, ok := newTestVerifier("").Role(ctx, token)
		assert.True(t, ok)
		assert.Equal(t, authz.RoleOrderAdministrator, role)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := NewToken(testSecret, "", "user-1", "", authz.RoleAdministrator, -time.Minute)
		require.NoError(t, err)

		assert.Nil(t, newTestVerifier("").Verify(ctx, token))
		_, err = newTestVerifier("").verify(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewToken([]byte("another-secret"), "", "user-1", "", authz.RoleAdministrator, time.Hour)
		require.NoError(t, err)

		assert.Nil(t, newTestVerifier("").Verify(ctx, token))
	})

	t.Run("unexpected signing method", func(t *testing.T) {
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
			Role:             string(authz.RoleAdministrator),
		}
		token := signClaims(t, jwt.SigningMethodHS512, testSecret, claims)

		assert.Nil(t, newTestVerifier("").Verify(ctx, token))
	})

	t.Run("unsigned token", func(t *testing.T) {
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
			Role:             string(authz.RoleAdministrator),
		}
		token := signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, claims)

		assert.Nil(t, newTestVerifier("").Verify(ctx, token))
	})

	t.Run("missing expiry", func(t *testing.T) {
		token := signClaims(t, jwt.SigningMethodHS256, testSecret, &Claims{Role: string(authz.RoleAdministrator)})
		assert.Nil(t, newTestVerifier("").Verify(ctx, token))
	})

	t.Run("missing role claim", func(t *testing.T) {
		claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
		token := signClaims(t, jwt.SigningMethodHS256, testSecret, claims)

		_, err := newTestVerifier("").verify(token)
		assert.ErrorIs(t, err, ErrMissingClaim)
	})

	t.Run("unknown role claim", func(t *testing.T) {
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
			Role:             "root",
		}
		token := signClaims(t, jwt.SigningMethodHS256, testSecret, claims)

		_, err := newTestVerifier("").verify(token)
		assert.ErrorIs(t, err, ErrUnknownRole)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		token, err := NewToken(testSecret, "someone-else", "user-1", "", authz.RoleAdministrator, time.Hour)
		require.NoError(t, err)

		assert.Nil(t, newTestVerifier("store-api").Verify(ctx, token))
	})

	t.Run("issuer match", func(t *testing.T) {
		token, err := NewToken(testSecret, "store-api", "user-1", "", authz.RoleCustomer, time.Hour)
		require.NoError(t, err)

		id := newTestVerifier("store-api").Verify(ctx, token)
		require.NotNil(t, id)
		assert.Equal(t, authz.RoleCustomer, id.Role)
	})

	t.Run("malformed input never panics", func(t *testing.T) {
		v := newTestVerifier("")
		for _, raw := range []string{"", "abc", "a.b.c", "....", "eyJhbGciOiJIUzI1NiJ9.e30."} {
			assert.NotPanics(t, func() {
				assert.Nil(t, v.Verify(ctx, raw))
			})
		}
	})

	t.Run("verifier without secret rejects everything", func(t *testing.T) {
		token, err := NewToken(testSecret, "", "user-1", "", authz.RoleAdministrator, time.Hour)
		require.NoError(t, err)

		v := NewVerifier(Config{}, zap.NewNop())
		assert.Nil(t, v.Verify(ctx, token))
	})
}
