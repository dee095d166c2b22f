package portal

import (
	"net/http"
	"strconv"

	"github.com/goliatone/go-router"
)

// Decision is the outcome of a route guard check.
type Decision int

const (
	// DecisionPending holds the request while session state is unknown
	DecisionPending Decision = iota
	// DecisionRedirectLogin sends anonymous visitors to the login page
	DecisionRedirectLogin
	// DecisionDenied is an authenticated user missing the required group
	DecisionDenied
	// DecisionAllow renders the protected handler
	DecisionAllow
)

func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionRedirectLogin:
		return "redirect_login"
	case DecisionDenied:
		return "denied"
	case DecisionAllow:
		return "allow"
	}
	return "unknown"
}

// Decide applies the guard checks in order: loading, then authentication,
// then group membership. An empty requiredGroup only needs a user.
func Decide(state AuthState, requiredGroup string) Decision {
	if state.Loading {
		return DecisionPending
	}

	if state.User == nil {
		return DecisionRedirectLogin
	}

	if requiredGroup != "" && !state.User.InGroup(requiredGroup) {
		return DecisionDenied
	}

	return DecisionAllow
}

// PendingRetryAfter is the Retry-After hint, in seconds, on pending pages.
const PendingRetryAfter = 2

// Protect guards a page. Anonymous visitors are redirected to /login with
// the rejected path remembered, members of the wrong group get the access
// denied page.
func (a *RouteAuthenticator) Protect(requiredGroup ...string) router.MiddlewareFunc {
	group := firstOrEmpty(requiredGroup)
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			state := GetAuthState(ctx)
			switch Decide(state, group) {
			case DecisionPending:
				ctx.SetHeader("Retry-After", strconv.Itoa(PendingRetryAfter))
				return ctx.Status(http.StatusServiceUnavailable).Render("errors/pending", TemplateData(ctx, router.ViewContext{
					"retry_after": PendingRetryAfter,
					"path":        ctx.OriginalURL(),
				}))
			case DecisionRedirectLogin:
				return a.AuthErrorHandler(ctx, ErrUnauthenticated)
			case DecisionDenied:
				a.denied(ctx, state, group)
				return ctx.Status(http.StatusForbidden).Render("errors/403", TemplateData(ctx, router.ViewContext{
					"required_group": group,
					"message":        "You do not have permission to view this page.",
				}))
			}
			return ctx.Next()
		}
	}
}

// ProtectAPI is Protect for JSON endpoints: 503, 401 and 403 instead of
// pages and redirects.
func (a *RouteAuthenticator) ProtectAPI(requiredGroup ...string) router.MiddlewareFunc {
	group := firstOrEmpty(requiredGroup)
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			state := GetAuthState(ctx)
			switch Decide(state, group) {
			case DecisionPending:
				ctx.SetHeader("Retry-After", strconv.Itoa(PendingRetryAfter))
				return SendError(ctx, ErrSessionStoreUnavailable)
			case DecisionRedirectLogin:
				ctx.SetHeader("WWW-Authenticate", "Bearer")
				return SendError(ctx, ErrUnauthenticated)
			case DecisionDenied:
				a.denied(ctx, state, group)
				return SendError(ctx, ErrAccessDenied)
			}
			return ctx.Next()
		}
	}
}

func (a *RouteAuthenticator) denied(ctx router.Context, state AuthState, group string) {
	a.Logger.Info("access denied", "username", state.User.Username, "required_group", group, "path", ctx.Path())
	emitActivity(ctx.Context(), a.activity, a.Logger, ActivityEventAccessDenied, state.User.Username, map[string]any{
		"required_group": group,
		"path":           ctx.Path(),
	})
}

func firstOrEmpty(values []string) string {
	if len(values) > 0 {
		return values[0]
	}
	return ""
}
