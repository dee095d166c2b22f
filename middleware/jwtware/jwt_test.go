package jwtware_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-portal/middleware/jwtware"
)

type testClaims struct {
	jwt.RegisteredClaims
	UserGroups []string `json:"groups"`
}

func (c *testClaims) Subject() string  { return c.RegisteredClaims.Subject }
func (c *testClaims) TokenID() string  { return c.RegisteredClaims.ID }
func (c *testClaims) Groups() []string { return c.UserGroups }
func (c *testClaims) InGroup(group string) bool {
	for _, g := range c.UserGroups {
		if g == group {
			return true
		}
	}
	return false
}

type keyfuncValidator struct {
	keyFunc jwt.Keyfunc
}

func (v keyfuncValidator) Validate(raw string) (jwtware.AuthClaims, error) {
	claims := &testClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, v.keyFunc); err != nil {
		return nil, err
	}
	return claims, nil
}

func signToken(t *testing.T, kid string, key []byte, exp time.Time, groups ...string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &testClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user1",
			ID:        "jti-1",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserGroups: groups,
	})
	if kid != "" {
		token.Header["kid"] = kid
	}

	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func newValidator(keys map[string][]byte) jwtware.TokenValidator {
	signing := make(map[string]jwtware.SigningKey, len(keys))
	for kid, key := range keys {
		signing[kid] = jwtware.SigningKey{JWTAlg: jwt.SigningMethodHS256.Alg(), Key: key}
	}
	return keyfuncValidator{keyFunc: jwtware.KeyFunc(signing)}
}

func TestJWTWare_HeaderExtraction(t *testing.T) {
	key := []byte("test-secret")
	raw := signToken(t, "current", key, time.Now().Add(time.Hour), "Group_A")

	var captured error
	handler := jwtware.New(jwtware.Config{
		TokenValidator: newValidator(map[string][]byte{"current": key}),
		ErrorHandler: func(ctx router.Context, err error) error {
			captured = err
			return err
		},
	})(nil)

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer " + raw
	ctx.On("Locals", "user", mock.Anything).Return(nil)

	require.NoError(t, handler(ctx))
	require.NoError(t, captured)
	require.True(t, ctx.NextCalled)

	claims, ok := ctx.LocalsMock["user"].(jwtware.AuthClaims)
	require.True(t, ok)
	require.Equal(t, "user1", claims.Subject())
	require.True(t, claims.InGroup("Group_A"))
}

func TestJWTWare_MissingToken(t *testing.T) {
	var captured error
	handler := jwtware.New(jwtware.Config{
		TokenValidator: newValidator(map[string][]byte{"current": []byte("k")}),
		ErrorHandler: func(ctx router.Context, err error) error {
			captured = err
			return err
		},
	})(nil)

	ctx := router.NewMockContext()

	err := handler(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(captured, jwtware.ErrJWTMissingOrMalformed))
	require.False(t, ctx.NextCalled)
}

func TestJWTWare_CookieLookupStoresRawToken(t *testing.T) {
	key := []byte("test-secret")
	raw := signToken(t, "current", key, time.Now().Add(time.Hour))

	handler := jwtware.New(jwtware.Config{
		TokenValidator: newValidator(map[string][]byte{"current": key}),
		TokenLookup:    "header:Authorization,cookie:portal_session",
		ContextKey:     "claims",
		RawTokenKey:    "credential",
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
	})(nil)

	ctx := router.NewMockContext()
	ctx.CookiesM["portal_session"] = raw
	ctx.On("Locals", "claims", mock.Anything).Return(nil)
	ctx.On("Locals", "credential", mock.Anything).Return(nil)

	require.NoError(t, handler(ctx))
	require.True(t, ctx.NextCalled)
	require.Equal(t, raw, ctx.LocalsMock["credential"])
}

func TestJWTWare_ExpiredToken(t *testing.T) {
	key := []byte("test-secret")
	raw := signToken(t, "current", key, time.Now().Add(-time.Hour))

	handler := jwtware.New(jwtware.Config{
		TokenValidator: newValidator(map[string][]byte{"current": key}),
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
	})(nil)

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer " + raw

	err := handler(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestKeyFunc_SelectsKeyByKid(t *testing.T) {
	current := []byte("current-secret")
	previous := []byte("previous-secret")
	validator := newValidator(map[string][]byte{
		"v2": current,
		"v1": previous,
	})

	_, err := validator.Validate(signToken(t, "v1", previous, time.Now().Add(time.Hour)))
	require.NoError(t, err)

	_, err = validator.Validate(signToken(t, "v2", current, time.Now().Add(time.Hour)))
	require.NoError(t, err)

	_, err = validator.Validate(signToken(t, "v1", current, time.Now().Add(time.Hour)))
	require.Error(t, err)

	_, err = validator.Validate(signToken(t, "unknown", current, time.Now().Add(time.Hour)))
	require.Error(t, err)
}

func TestJWTWare_FilterSkips(t *testing.T) {
	handler := jwtware.New(jwtware.Config{
		TokenValidator: newValidator(map[string][]byte{"current": []byte("k")}),
		Filter: func(ctx router.Context) bool {
			return true
		},
	})(nil)

	ctx := router.NewMockContext()
	require.NoError(t, handler(ctx))
	require.True(t, ctx.NextCalled)
}

func TestGetDefaultConfigRequiresValidator(t *testing.T) {
	require.Panics(t, func() {
		jwtware.GetDefaultConfig(jwtware.Config{})
	})
}

func TestGetExtractorsSkipsInvalidEntries(t *testing.T) {
	extractors := jwtware.GetExtractors("header:Authorization, bogus ,cookie:session,query:token")
	require.Len(t, extractors, 3)
}
