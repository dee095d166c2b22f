package portal

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"golang.org/x/sync/errgroup"
)

// DefaultFetchTimeout bounds each dashboard render's API calls.
const DefaultFetchTimeout = 5 * time.Second

// DashboardController renders the landing redirect and both dashboards.
type DashboardController struct {
	Logger       Logger
	API          DashboardAPI
	Dashboards   DashboardPriority
	Activity     ActivitySink
	FetchTimeout time.Duration
}

func NewDashboardController(api DashboardAPI) *DashboardController {
	return &DashboardController{
		Logger:       defLogger{},
		API:          api,
		Dashboards:   DefaultDashboards,
		Activity:     noopActivitySink{},
		FetchTimeout: DefaultFetchTimeout,
	}
}

func (d *DashboardController) WithLogger(logger Logger) *DashboardController {
	if logger != nil {
		d.Logger = logger
	}
	return d
}

func (d *DashboardController) WithActivitySink(sink ActivitySink) *DashboardController {
	d.Activity = normalizeActivitySink(sink)
	return d
}

// RegisterDashboardRoutes binds each page to its guard. /admin and /user
// take their group from the dashboard list.
func RegisterDashboardRoutes[T any](app router.Router[T], auther HTTPAuthenticator, d *DashboardController) {
	app.Get("/", d.Home).SetName("home")
	app.Get("/dashboard", d.Dashboard, auther.Protect()).SetName("dashboard")

	for _, route := range d.Dashboards {
		var handler router.HandlerFunc
		switch route.Group {
		case GroupAdmin:
			handler = d.Admin
		case GroupUser:
			handler = d.User
		default:
			continue
		}
		app.Get(route.Path, handler, auther.Protect(route.Group)).SetName("dashboard." + route.Path[1:])
	}
}

func (d *DashboardController) Home(ctx router.Context) error {
	return ctx.Redirect("/dashboard", http.StatusFound)
}

// Dashboard sends the user to exactly one landing page. Users without a
// matching group get an explicit page, never a default route.
func (d *DashboardController) Dashboard(ctx router.Context) error {
	user, _ := CurrentUser(ctx)

	route, err := d.Dashboards.Resolve(user)
	if err == nil {
		return ctx.Redirect(route.Path, http.StatusFound)
	}

	if !errors.Is(err, ErrNoDashboard) {
		return ctx.Redirect("/login", http.StatusFound)
	}

	d.Logger.Warn("no dashboard for user", "username", user.Username, "groups", user.Groups)
	emitActivity(ctx.Context(), d.Activity, d.Logger, ActivityEventDashboardUnresolved, user.Username, map[string]any{
		"groups": user.Groups,
	})

	return ctx.Status(http.StatusOK).Render("errors/no_dashboard", TemplateData(ctx, router.ViewContext{
		"message": ErrNoDashboard.Message,
	}))
}

// Admin fetches the user list and stats together. If either call fails
// both are shown empty.
func (d *DashboardController) Admin(ctx router.Context) error {
	state := GetAuthState(ctx)
	reqCtx, cancel := context.WithTimeout(ctx.Context(), d.FetchTimeout)
	defer cancel()

	var users []UserInfo
	var stats AdminStats

	g, gctx := errgroup.WithContext(reqCtx)
	g.Go(func() (err error) {
		users, err = d.API.AdminUsers(gctx, state.Credential)
		return err
	})
	g.Go(func() (err error) {
		stats, err = d.API.AdminStats(gctx, state.Credential)
		return err
	})

	if err := g.Wait(); err != nil {
		d.Logger.Error("failed to fetch admin data", "error", err)
		users, stats = nil, AdminStats{}
	}

	if users == nil {
		users = []UserInfo{}
	}

	return ctx.Render("admin", TemplateData(ctx, router.ViewContext{
		"title": "Admin Dashboard",
		"users": users,
		"stats": stats,
	}))
}

// User fetches the profile and activity feed together, with the same
// all or nothing fallback as Admin.
func (d *DashboardController) User(ctx router.Context) error {
	state := GetAuthState(ctx)
	reqCtx, cancel := context.WithTimeout(ctx.Context(), d.FetchTimeout)
	defer cancel()

	var profile UserProfile
	var activities []ActivityEntry

	g, gctx := errgroup.WithContext(reqCtx)
	g.Go(func() (err error) {
		profile, err = d.API.UserProfile(gctx, state.Credential)
		return err
	})
	g.Go(func() (err error) {
		activities, err = d.API.UserActivities(gctx, state.Credential)
		return err
	})

	if err := g.Wait(); err != nil {
		d.Logger.Error("failed to fetch user data", "error", err)
		profile, activities = UserProfile{}, nil
	}

	if activities == nil {
		activities = []ActivityEntry{}
	}

	if profile.Username == "" {
		profile.Username = state.User.Username
	}

	return ctx.Render("user", TemplateData(ctx, router.ViewContext{
		"title":      "User Dashboard",
		"profile":    profile,
		"activities": activities,
	}))
}
