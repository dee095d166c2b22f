package config

import (
	"errors"
	"strings"
	"time"
)

const devSigningKey = "portal-dev-signing-key-change-me!"

// AuthConfig implements portal.Config.
type AuthConfig struct {
	SigningKey   string `env:"SIGNING_KEY"`
	SigningKeyID string `env:"SIGNING_KEY_ID" envDefault:"portal-1"`
	// PreviousSigningKeys is a kid:key list still accepted for validation.
	PreviousSigningKeys map[string]string `env:"PREVIOUS_SIGNING_KEYS" envSeparator:"," envKeyValSeparator:":"`
	ContextKey          string            `env:"CONTEXT_KEY" envDefault:"portal_session"`
	TokenExpiration     time.Duration     `env:"TOKEN_EXPIRATION" envDefault:"24h"`
	TokenLookup         string            `env:"TOKEN_LOOKUP"`
	AuthScheme          string            `env:"AUTH_SCHEME" envDefault:"Bearer"`
	Issuer              string            `env:"ISSUER" envDefault:"go-portal"`
	Audience            []string          `env:"AUDIENCE" envDefault:"go-portal" envSeparator:","`
	RejectedRouteKey    string            `env:"REJECTED_ROUTE_KEY" envDefault:"login_redirect"`
	RejectedRouteDef    string            `env:"REJECTED_ROUTE_DEFAULT" envDefault:"/login"`
	SecureCookies       bool              `env:"SECURE_COOKIES" envDefault:"false"`
}

func (a *AuthConfig) Sanitize() {
	a.ContextKey = strings.TrimSpace(a.ContextKey)
	if a.ContextKey == "" {
		a.ContextKey = "portal_session"
	}
	if a.TokenExpiration <= 0 {
		a.TokenExpiration = 24 * time.Hour
	}
	if a.TokenLookup == "" {
		a.TokenLookup = "header:Authorization,cookie:" + a.ContextKey
	}
	if a.RejectedRouteDef == "" {
		a.RejectedRouteDef = "/login"
	}
}

// Validate requires a real signing key outside development.
func (a *AuthConfig) Validate(isDev bool) error {
	if a.SigningKey == "" {
		if !isDev {
			return errors.New("PORTAL_AUTH_SIGNING_KEY is required")
		}
		a.SigningKey = devSigningKey
	}
	if len(a.SigningKey) < 32 {
		return errors.New("PORTAL_AUTH_SIGNING_KEY must be at least 32 bytes")
	}
	return nil
}

func (a AuthConfig) GetSigningKey() string                     { return a.SigningKey }
func (a AuthConfig) GetSigningKeyID() string                   { return a.SigningKeyID }
func (a AuthConfig) GetPreviousSigningKeys() map[string]string { return a.PreviousSigningKeys }
func (a AuthConfig) GetContextKey() string                     { return a.ContextKey }
func (a AuthConfig) GetTokenExpiration() time.Duration         { return a.TokenExpiration }
func (a AuthConfig) GetTokenLookup() string                    { return a.TokenLookup }
func (a AuthConfig) GetAuthScheme() string                     { return a.AuthScheme }
func (a AuthConfig) GetIssuer() string                         { return a.Issuer }
func (a AuthConfig) GetAudience() []string                     { return a.Audience }
func (a AuthConfig) GetRejectedRouteKey() string               { return a.RejectedRouteKey }
func (a AuthConfig) GetRejectedRouteDefault() string           { return a.RejectedRouteDef }
func (a AuthConfig) GetSecureCookies() bool                    { return a.SecureCookies }
