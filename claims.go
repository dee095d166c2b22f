package portal

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthClaims is the structured view of a validated credential
type AuthClaims interface {
	Subject() string
	TokenID() string
	Email() string
	Role() string
	Groups() []string
	InGroup(group string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UserEmail  string   `json:"email,omitempty"`
	UserRole   string   `json:"role,omitempty"`
	UserGroups []string `json:"groups,omitempty"`
}

var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim, the username.
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// TokenID returns the jti claim, which is also the session record id.
func (c *JWTClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

func (c *JWTClaims) Email() string {
	return c.UserEmail
}

func (c *JWTClaims) Role() string {
	return c.UserRole
}

func (c *JWTClaims) Groups() []string {
	return c.UserGroups
}

func (c *JWTClaims) InGroup(group string) bool {
	return HasGroup(c.UserGroups, group)
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
