package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

var (
	ErrTokenMismatch    = errors.New("CSRF token mismatch")
	ErrTokenMissing     = errors.New("CSRF token missing")
	ErrTokenExpired     = errors.New("CSRF token expired")
	ErrSecureKeyMissing = errors.New("CSRF secure key required")
)

// DefaultNonceLength is the number of random bytes in each token
const DefaultNonceLength = 16

// DefaultTemplateHelpersKey is the Locals key helper maps are merged into.
const DefaultTemplateHelpersKey = "template_helpers"

// DefaultContextKey is the default key for storing CSRF tokens in context
const DefaultContextKey = "csrf_token"

// DefaultFormFieldName is the default name for the CSRF token form field
const DefaultFormFieldName = "_token"

// DefaultHeaderName is the default header name for CSRF tokens
const DefaultHeaderName = "X-CSRF-Token"

// Config defines the configuration for CSRF middleware.
//
// Tokens are stateless: an HMAC over a timestamp, a nonce and the caller's
// session key. Nothing is stored server side.
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	// SecureKey signs tokens, at least 32 bytes
	SecureKey []byte

	// SessionKey binds tokens to a visitor. Defaults to the client IP.
	SessionKey func(router.Context) string

	ContextKey    string
	FormFieldName string
	HeaderName    string

	// TokenLookup, e.g. "form:_token,header:X-CSRF-Token"
	TokenLookup string

	// SafeMethods defines HTTP methods that don't require CSRF protection
	SafeMethods []string

	// Expiration is how long a token is accepted for
	Expiration time.Duration

	ErrorHandler   router.ErrorHandler
	SuccessHandler router.HandlerFunc

	// TemplateHelpersKey is the Locals key helpers are merged into
	TemplateHelpersKey string
}

// TokenExtractor defines a function to extract token from request
type TokenExtractor func(router.Context) string

// New creates a new CSRF middleware
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := configDefault(config...)
		extractors := getExtractors(cfg.TokenLookup, cfg.FormFieldName, cfg.HeaderName)

		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			token, err := generateToken(cfg.SecureKey, cfg.SessionKey(ctx), time.Now())
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, token)
			ctx.Locals(cfg.ContextKey+"_field", cfg.FormFieldName)
			ctx.Locals(cfg.ContextKey+"_header", cfg.HeaderName)
			ctx.LocalsMerge(cfg.TemplateHelpersKey, TemplateHelpers(token, cfg.FormFieldName, cfg.HeaderName))

			if slices.Contains(cfg.SafeMethods, strings.ToUpper(ctx.Method())) {
				return cfg.SuccessHandler(ctx)
			}

			received := ""
			for _, extractor := range extractors {
				if received = extractor(ctx); received != "" {
					break
				}
			}

			if received == "" {
				return cfg.ErrorHandler(ctx, ErrTokenMissing)
			}

			if err := validateToken(cfg.SecureKey, cfg.SessionKey(ctx), received, cfg.Expiration, time.Now()); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

// Token returns the token the middleware stored for this request.
func Token(ctx router.Context, contextKey ...string) string {
	key := DefaultContextKey
	if len(contextKey) > 0 && contextKey[0] != "" {
		key = contextKey[0]
	}
	token, _ := ctx.Locals(key).(string)
	return token
}

// TemplateHelpers renders the values forms and layouts embed.
func TemplateHelpers(token, fieldName, headerName string) map[string]any {
	return map[string]any{
		"csrf_token":       token,
		"csrf_field":       `<input type="hidden" name="` + fieldName + `" value="` + token + `">`,
		"csrf_meta":        `<meta name="csrf-token" content="` + token + `">`,
		"csrf_header_name": headerName,
	}
}

func generateToken(key []byte, sessionKey string, now time.Time) (string, error) {
	if len(key) == 0 {
		return "", ErrSecureKeyMissing
	}

	nonce := make([]byte, DefaultNonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	payload := fmt.Sprintf("%d:%s:%s", now.UTC().Unix(), hex.EncodeToString(nonce), sessionKey)
	token := payload + ":" + hex.EncodeToString(sign(key, payload))
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

func validateToken(key []byte, sessionKey, token string, expiration time.Duration, now time.Time) error {
	if len(key) == 0 {
		return ErrSecureKeyMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenMismatch
	}

	// the session key itself may contain colons
	parts := strings.Split(string(decoded), ":")
	if len(parts) < 4 {
		return ErrTokenMismatch
	}

	timestamp, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}

	signature, err := hex.DecodeString(parts[len(parts)-1])
	if err != nil {
		return ErrTokenMismatch
	}

	payload := strings.Join(parts[:len(parts)-1], ":")
	if !hmac.Equal(signature, sign(key, payload)) {
		return ErrTokenMismatch
	}

	bound := strings.Join(parts[2:len(parts)-1], ":")
	if subtle.ConstantTimeCompare([]byte(bound), []byte(sessionKey)) != 1 {
		return ErrTokenMismatch
	}

	if expiration > 0 && now.UTC().After(time.Unix(timestamp, 0).Add(expiration)) {
		return ErrTokenExpired
	}

	return nil
}

func sign(key []byte, payload string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

func getExtractors(tokenLookup, formField, header string) []TokenExtractor {
	if tokenLookup == "" {
		return []TokenExtractor{
			extractorFromForm(formField),
			extractorFromHeader(header),
		}
	}

	var extractors []TokenExtractor
	for _, part := range strings.Split(tokenLookup, ",") {
		source, name, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || name == "" {
			continue
		}
		switch source {
		case "form":
			extractors = append(extractors, extractorFromForm(name))
		case "header":
			extractors = append(extractors, extractorFromHeader(name))
		}
	}
	return extractors
}

func extractorFromForm(fieldName string) TokenExtractor {
	return func(ctx router.Context) string {
		return ctx.FormValue(fieldName)
	}
}

func extractorFromHeader(headerName string) TokenExtractor {
	return func(ctx router.Context) string {
		return ctx.Header(headerName)
	}
}

func ipSessionKey(ctx router.Context) string {
	return "ip_" + ctx.IP()
}

func configDefault(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}
	}

	if cfg.Expiration == 0 {
		cfg.Expiration = 24 * time.Hour
	}

	if cfg.SessionKey == nil {
		cfg.SessionKey = ipSessionKey
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.TemplateHelpersKey == "" {
		cfg.TemplateHelpersKey = DefaultTemplateHelpersKey
	}

	cfg.SecureKey = initializeSecureKey(cfg.SecureKey)

	return cfg
}

func defaultErrorHandler(ctx router.Context, err error) error {
	switch err {
	case ErrTokenMissing:
		return ctx.Status(router.StatusBadRequest).SendString("CSRF token missing")
	case ErrTokenMismatch:
		return ctx.Status(router.StatusForbidden).SendString("CSRF token mismatch")
	case ErrTokenExpired:
		return ctx.Status(router.StatusForbidden).SendString("CSRF token expired")
	default:
		return ctx.Status(router.StatusInternalServerError).SendString("CSRF validation error")
	}
}

// initializeSecureKey panics on short keys and generates one when unset.
// A generated key does not survive restarts.
func initializeSecureKey(current []byte) []byte {
	if len(current) > 0 {
		if len(current) < 32 {
			panic(fmt.Errorf("csrf: secure key must be at least 32 bytes, got %d", len(current)))
		}
		return current
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		panic(fmt.Errorf("csrf: unable to initialize secure key: %w", err))
	}
	return key
}
