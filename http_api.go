package portal

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"golang.org/x/sync/errgroup"
)

// APIVersion is reported by the API root.
const APIVersion = "1.0.0"

// APIController serves the JSON API the dashboards read from.
type APIController struct {
	Logger        Logger
	Provider      AuthProvider
	Auther        *RouteAuthenticator
	Repo          RepositoryManager
	Directory     Directory
	Sessions      SessionStore
	HealthTimeout time.Duration
	now           func() time.Time
}

func NewAPIController(provider AuthProvider, auther *RouteAuthenticator, repo RepositoryManager, directory Directory, sessions SessionStore) *APIController {
	return &APIController{
		Logger:        defLogger{},
		Provider:      provider,
		Auther:        auther,
		Repo:          repo,
		Directory:     directory,
		Sessions:      sessions,
		HealthTimeout: 3 * time.Second,
		now:           time.Now,
	}
}

func (c *APIController) WithLogger(logger Logger) *APIController {
	if logger != nil {
		c.Logger = logger
	}
	return c
}

// RegisterAPIRoutes mounts the API on app, which should already be scoped
// to /api and run the session middleware.
func RegisterAPIRoutes[T any](app router.Router[T], c *APIController) {
	authenticated := c.Auther.ProtectAPI()
	admin := c.Auther.ProtectAPI(GroupAdmin)

	app.Get("/", c.Root).SetName("api.root")
	app.Get("/health", c.Health).SetName("api.health")

	app.Post("/auth/register", c.Register).SetName("api.auth.register")
	app.Post("/auth/login", c.Login).SetName("api.auth.login")
	app.Get("/auth/me", c.Me, authenticated).SetName("api.auth.me")
	app.Post("/auth/logout", c.Logout, authenticated).SetName("api.auth.logout")

	app.Get("/admin/users", c.AdminUsers, admin).SetName("api.admin.users")
	app.Get("/admin/stats", c.AdminStats, admin).SetName("api.admin.stats")

	app.Get("/user/profile", c.UserProfile, authenticated).SetName("api.user.profile")
	app.Get("/user/activities", c.UserActivities, authenticated).SetName("api.user.activities")
}

func (c *APIController) Root(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, map[string]string{
		"message": "Portal API",
		"version": APIVersion,
	})
}

func (c *APIController) Register(ctx router.Context) error {
	payload := new(RegisterRequest)
	if err := ctx.Bind(payload); err != nil {
		return SendError(ctx, errors.Wrap(err, errors.CategoryBadInput, "Invalid request payload").
			WithCode(errors.CodeBadRequest))
	}

	account, err := c.Provider.Register(ctx.Context(), *payload)
	if err != nil {
		c.Logger.Warn("api register error", "username", payload.Username, "error", err)
		return SendError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, map[string]string{
		"message":  "User registered successfully",
		"username": account.Username,
	})
}

func (c *APIController) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return SendError(ctx, errors.Wrap(err, errors.CategoryBadInput, "Invalid request payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return SendError(ctx, NewValidationError(err, "username", "password"))
	}

	result, err := c.Provider.Login(ctx.Context(), payload.Username, payload.Password)
	if err != nil {
		return SendError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, TokenResponse{
		AccessToken: result.Token,
		TokenType:   "bearer",
		ExpiresIn:   result.ExpiresIn,
		User:        result.User,
	})
}

func (c *APIController) Me(ctx router.Context) error {
	user, _ := CurrentUser(ctx)

	account, err := c.Repo.Accounts().GetByIdentifier(ctx.Context(), user.Username)
	if err != nil {
		if errors.IsNotFound(err) {
			return SendError(ctx, errors.New("User not found", errors.CategoryNotFound).
				WithCode(errors.CodeNotFound))
		}
		return SendError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, newUserInfo(account, user.Groups))
}

func (c *APIController) Logout(ctx router.Context) error {
	state := GetAuthState(ctx)
	setAuthState(ctx, Anonymous())

	if err := c.Provider.Logout(ctx.Context(), state); err != nil {
		return SendError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"message": "Successfully logged out",
	})
}

// AdminUsers lists every account with its directory groups. Rows that
// cannot be read are skipped.
func (c *APIController) AdminUsers(ctx router.Context) error {
	accounts, err := c.Repo.Accounts().ListAccounts(ctx.Context())
	if err != nil {
		return SendError(ctx, errors.Wrap(err, errors.CategoryInternal, "failed to list accounts"))
	}

	users := make([]UserInfo, 0, len(accounts))
	for _, account := range accounts {
		if account == nil || account.Username == "" {
			continue
		}
		users = append(users, newUserInfo(account, c.groupsFor(ctx.Context(), account)))
	}

	return ctx.JSON(router.StatusOK, users)
}

func (c *APIController) AdminStats(ctx router.Context) error {
	reqCtx := ctx.Context()
	accounts := c.Repo.Accounts()

	// Without the directory the stored group column is all there is, and
	// the database can count it directly.
	directoryUp := c.Directory.Ping(reqCtx) == nil
	if !directoryUp {
		c.Logger.Warn("directory unavailable, counting stored groups")
	}

	var stats AdminStats
	var rows []*Account

	g, gctx := errgroup.WithContext(reqCtx)
	g.Go(func() (err error) {
		stats.TotalUsers, err = accounts.CountAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.ActiveSessions, err = accounts.CountActiveSince(gctx, startOfDay(c.now()))
		return err
	})
	if directoryUp {
		g.Go(func() (err error) {
			rows, err = accounts.ListAccounts(gctx)
			return err
		})
	} else {
		g.Go(func() (err error) {
			stats.GroupAUsers, err = accounts.CountByGroup(gctx, GroupAdmin)
			return err
		})
		g.Go(func() (err error) {
			stats.GroupBUsers, err = accounts.CountByGroup(gctx, GroupUser)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return SendError(ctx, errors.Wrap(err, errors.CategoryInternal, "failed to compute stats"))
	}

	for _, account := range rows {
		if account == nil || account.Username == "" {
			continue
		}
		groups := c.groupsFor(reqCtx, account)
		if HasGroup(groups, GroupAdmin) {
			stats.GroupAUsers++
		}
		if HasGroup(groups, GroupUser) {
			stats.GroupBUsers++
		}
	}

	return ctx.JSON(router.StatusOK, stats)
}

func (c *APIController) UserProfile(ctx router.Context) error {
	user, _ := CurrentUser(ctx)

	account, err := c.Repo.Accounts().GetByIdentifier(ctx.Context(), user.Username)
	if err != nil {
		if errors.IsNotFound(err) {
			return SendError(ctx, errors.New("User not found", errors.CategoryNotFound).
				WithCode(errors.CodeNotFound))
		}
		return SendError(ctx, err)
	}

	profile := UserProfile{
		Username:   account.Username,
		Email:      account.Email,
		FirstName:  account.FirstName,
		LastName:   account.LastName,
		Groups:     c.groupsFor(ctx.Context(), account),
		CreatedAt:  account.CreatedAt,
		LastLogin:  account.LastLogin,
		LoginCount: account.LoginCount,
	}
	if account.CreatedAt != nil {
		profile.DaysActive = int(c.now().Sub(*account.CreatedAt).Hours() / 24)
	}

	if latest, err := c.Repo.Activities().Latest(ctx.Context(), account.Username, 1); err == nil && len(latest) > 0 {
		ts := latest[0].Timestamp
		profile.LastActivity = &ts
	}

	return ctx.JSON(router.StatusOK, profile)
}

func (c *APIController) UserActivities(ctx router.Context) error {
	user, _ := CurrentUser(ctx)

	records, err := c.Repo.Activities().Latest(ctx.Context(), user.Username, DefaultActivityLimit)
	if err != nil {
		return SendError(ctx, errors.Wrap(err, errors.CategoryInternal, "failed to load activities"))
	}

	out := make([]ActivityEntry, 0, len(records))
	for _, record := range records {
		out = append(out, ActivityEntry{
			Timestamp:   record.Timestamp,
			Description: record.Activity,
			UserID:      record.Username,
		})
	}

	return ctx.JSON(router.StatusOK, out)
}

// Health pings every backing service concurrently.
func (c *APIController) Health(ctx router.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx.Context(), c.HealthTimeout)
	defer cancel()

	checks := map[string]func(context.Context) error{
		"directory": c.Directory.Ping,
		"database":  c.Repo.Ping,
		"sessions":  c.Sessions.Ping,
	}

	results := make(map[string]string, len(checks))
	errs := make(map[string]error, len(checks))
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}

	var g errgroup.Group
	statuses := make([]error, len(names))
	for i, name := range names {
		g.Go(func() error {
			statuses[i] = checks[name](reqCtx)
			return nil
		})
	}
	_ = g.Wait()

	status := StatusHealthy
	for i, name := range names {
		results[name] = ServiceConnected
		if statuses[i] != nil {
			errs[name] = statuses[i]
			results[name] = ServiceDisconnected
			status = StatusUnhealthy
		}
	}

	if len(errs) > 0 {
		c.Logger.Warn("health check failures", "errors", errs)
	}

	return ctx.JSON(router.StatusOK, HealthStatus{
		Status:    status,
		Services:  results,
		Timestamp: c.now().UTC(),
	})
}

// groupsFor asks the directory, falling back to the stored copy.
func (c *APIController) groupsFor(ctx context.Context, account *Account) []string {
	groups, err := c.Directory.Groups(ctx, account.Username)
	if err != nil {
		c.Logger.Debug("directory groups lookup failed, using stored groups", "username", account.Username, "error", err)
		return NormalizeGroups(account.Groups)
	}
	return NormalizeGroups(groups)
}

// SendError renders err as {error, text_code, validation?} with the status
// the rich error carries.
func SendError(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	code := richErr.Code
	if code == 0 {
		code = http.StatusInternalServerError
	}

	message := richErr.Message
	if richErr.Category == errors.CategoryInternal {
		message = "An unexpected server error occurred"
	}

	body := map[string]any{
		"error":     message,
		"text_code": richErr.TextCode,
	}
	if fields := ValidationFields(richErr); len(fields) > 0 {
		body["validation"] = fields
	}

	return ctx.JSON(code, body)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
