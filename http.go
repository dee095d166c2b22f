package portal

import (
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-portal/middleware/jwtware"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RawCredentialKey is the Locals key the session middleware stores the raw
// credential under.
const RawCredentialKey = "auth_credential"

// RouteAuthenticator is the HTTP face of the Provider: cookies, redirects
// and the per request AuthState.
type RouteAuthenticator struct {
	provider         AuthProvider
	resolver         StateResolver
	validator        TokenValidator
	cfg              Config
	cookieDuration   time.Duration
	activity         ActivitySink
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

func NewHTTPAuthenticator(provider *Provider, validator TokenValidator, cfg Config) (*RouteAuthenticator, error) {
	if provider == nil {
		return nil, errors.New("provider is required", errors.CategoryInternal)
	}
	if validator == nil {
		return nil, errors.New("token validator is required", errors.CategoryInternal)
	}

	cookieDuration := DefaultSessionTTL
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = cfg.GetTokenExpiration()
	}

	a := &RouteAuthenticator{
		provider:       provider,
		resolver:       provider,
		validator:      validator,
		cfg:            cfg,
		cookieDuration: cookieDuration,
		activity:       provider.activity,
		Logger:         defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// SessionMiddleware resolves the AuthState for every request. It never
// rejects: guards decide what an anonymous or pending state may see.
func (a *RouteAuthenticator) SessionMiddleware() router.MiddlewareFunc {
	lookup := a.cfg.GetTokenLookup()
	if lookup == "" {
		lookup = "header:" + router.HeaderAuthorization + ",cookie:" + a.cfg.GetContextKey()
	}

	return jwtware.New(jwtware.Config{
		ContextKey:     a.cfg.GetContextKey() + "_claims",
		RawTokenKey:    RawCredentialKey,
		TokenLookup:    lookup,
		AuthScheme:     a.cfg.GetAuthScheme(),
		TokenValidator: MiddlewareValidator(a.validator),
		SuccessHandler: func(ctx router.Context) error {
			claims, _ := ctx.Locals(a.cfg.GetContextKey() + "_claims").(AuthClaims)
			raw, _ := ctx.Locals(RawCredentialKey).(string)
			setAuthState(ctx, a.resolver.Resolve(ctx.Context(), claims, raw))
			return ctx.Next()
		},
		ErrorHandler: func(ctx router.Context, err error) error {
			if !errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				a.Logger.Debug("session credential rejected", "error", err, "path", ctx.OriginalURL())
			}
			setAuthState(ctx, Anonymous())
			return ctx.Next()
		},
	})
}

// Login calls the provider and, on success, sets the session cookie and the
// request's AuthState.
func (a *RouteAuthenticator) Login(ctx router.Context, username, password string) (*LoginResult, error) {
	result, err := a.provider.Login(ctx.Context(), username, password)
	if err != nil {
		a.Logger.Error("Login error", "error", err)
		return nil, err
	}

	a.setCookieToken(ctx, result.Token, time.Until(result.ExpiresAt))
	setAuthState(ctx, AuthState{
		User:       result.User,
		SessionID:  result.SessionID,
		Credential: result.Token,
	})
	return result, nil
}

// Logout clears the cookie and the request's AuthState before the store
// call returns, so nothing later in the request sees the old user.
func (a *RouteAuthenticator) Logout(ctx router.Context) error {
	state := GetAuthState(ctx)

	a.cookieDel(ctx, a.cfg.GetContextKey())
	setAuthState(ctx, Anonymous())

	return a.provider.Logout(ctx.Context(), state)
}

func (a *RouteAuthenticator) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" || !isLocalPath(r) {
		if len(def) > 0 {
			return def[0]
		}
		return a.GetRedirectOrDefault(ctx)
	}
	a.cookieDel(ctx, rejectedRoute)
	return r
}

func (a *RouteAuthenticator) GetRedirectOrDefault(ctx router.Context) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	r := ctx.Cookies(rejectedRoute)
	if r == "" || !isLocalPath(r) {
		r = a.cfg.GetRejectedRouteDefault()
	}
	a.cookieDel(ctx, rejectedRoute)
	return r
}

func (a *RouteAuthenticator) SetRedirect(ctx router.Context) {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	a.Logger.Info("Setting redirect cookie", "key", rejectedRoute, "path", ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   a.cfg.GetSecureCookies(),
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	if duration <= 0 {
		duration = a.cookieDuration
	}
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   a.cfg.GetSecureCookies(),
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cfg.GetSecureCookies(),
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication error, redirecting to login",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	a.SetRedirect(c)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect("/login", statusCode)
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth:
		return a.AuthErrorHandler(c, richErr)
	default:
		return c.Status(richErr.Code).Render("errors/500", TemplateData(c, router.ViewContext{
			"error": richErr,
		}))
	}
}

// isLocalPath rejects absolute and protocol relative URLs in redirects.
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//")
}
