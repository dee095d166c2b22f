package portal

import (
	"net/http"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// MsgRegistrationSuccess is shown on the login page after registering.
const MsgRegistrationSuccess = "Registration successful! You can now login."

// HTTPAuthenticator is what the UI controllers need from the route
// authenticator.
type HTTPAuthenticator interface {
	Login(ctx router.Context, username, password string) (*LoginResult, error)
	Logout(ctx router.Context) error
	GetRedirect(ctx router.Context, def ...string) string
	Protect(requiredGroup ...string) router.MiddlewareFunc
}

func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Get(controller.Routes.Login, controller.LoginShow).
		SetName("sign-in.get")
	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).
		SetName("sign-out.get")
	app.Post(controller.Routes.Logout, controller.LogOut).
		SetName("sign-out.post")

	app.Get(controller.Routes.Register, controller.RegistrationShow).
		SetName("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	return controller
}

type AuthControllerRoutes struct {
	Login     string
	Logout    string
	Register  string
	Dashboard string
}

type AuthControllerViews struct {
	Login    string
	Register string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Provider     AuthProvider
	Auther       HTTPAuthenticator
	Routes       *AuthControllerRoutes
	Views        *AuthControllerViews
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		if logger != nil {
			ac.Logger = logger
		}
		return ac
	}
}

func WithAuthProvider(provider AuthProvider) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Provider = provider
		return ac
	}
}

func WithHTTPAuthenticator(auther HTTPAuthenticator) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Auther = auther
		return ac
	}
}

func WithDebug(debug bool) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Debug = debug
		return ac
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Login:     "/login",
			Logout:    "/logout",
			Register:  "/register",
			Dashboard: "/dashboard",
		},
		Views: &AuthControllerViews{
			Login:    "login",
			Register: "register",
		},
	}
	c.ErrorHandler = c.defaultErrHandler

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Provider == nil {
		panic("Missing AuthProvider in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	return c
}

func (a *AuthController) LoginShow(ctx router.Context) error {
	if _, ok := CurrentUser(ctx); ok {
		return ctx.Redirect(a.Routes.Dashboard, http.StatusFound)
	}

	data := router.ViewContext{
		"errors": map[string]string{},
		"record": LoginRequest{},
	}
	if ctx.Query("registered", "") == "1" {
		data["success_message"] = MsgRegistrationSuccess
	}

	return ctx.Render(a.Views.Login, TemplateData(ctx, data))
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return ctx.Status(http.StatusBadRequest).Render(a.Views.Login, TemplateData(ctx, router.ViewContext{
			"errors":        map[string]string{"form": "Failed to parse form"},
			"error_message": "Failed to parse form",
			"record":        LoginRequest{},
		}))
	}

	record := LoginRequest{Username: payload.Username}

	if err := payload.Validate(); err != nil {
		fields := FormatValidationErrorToMap(err)
		return ctx.Render(a.Views.Login, TemplateData(ctx, router.ViewContext{
			"errors":        fields,
			"error_message": FirstValidationMessage(fields, "username", "password"),
			"record":        record,
		}))
	}

	if a.Debug {
		a.Logger.Debug("login attempt", "payload", print.MaybePrettyJSON(record))
	}

	if _, err := a.Auther.Login(ctx, payload.Username, payload.Password); err != nil {
		return ctx.Render(a.Views.Login, TemplateData(ctx, router.ViewContext{
			"errors":        map[string]string{"authentication": userMessage(err)},
			"error_message": userMessage(err),
			"record":        record,
		}))
	}

	redirect := a.Auther.GetRedirect(ctx, a.Routes.Dashboard)
	return ctx.Redirect(redirect, http.StatusSeeOther)
}

// LogOut drops the session and returns to the login page.
func (a *AuthController) LogOut(ctx router.Context) error {
	if err := a.Auther.Logout(ctx); err != nil {
		a.Logger.Warn("logout error", "error", err)
	}
	return ctx.Redirect(a.Routes.Login, http.StatusSeeOther)
}

func (a *AuthController) RegistrationShow(ctx router.Context) error {
	return ctx.Render(a.Views.Register, TemplateData(ctx, router.ViewContext{
		"errors": map[string]string{},
		"record": RegisterRequest{Group: GroupUser},
		"groups": KnownGroups(),
	}))
}

// RegistrationCreate validates the form before any backend call, so a
// mismatched or short password never reaches the directory.
func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register parse payload", "error", err)
		return a.renderRegistration(ctx.Status(http.StatusBadRequest), RegisterRequest{},
			map[string]string{"form": "Failed to parse form"}, "Failed to parse form")
	}

	req := payload.Normalize()
	record := req
	record.Password, record.ConfirmPassword = "", ""

	if err := req.ValidateForm(); err != nil {
		fields := FormatValidationErrorToMap(err)
		return a.renderRegistration(ctx, record, fields, FirstValidationMessage(fields, RegistrationErrorOrder...))
	}

	account, err := a.Provider.Register(ctx.Context(), req)
	if err != nil {
		a.Logger.Error("register account error", "username", req.Username, "error", err)
		fields := ValidationFields(err)
		if fields == nil {
			fields = map[string]string{"form": userMessage(err)}
		}
		return a.renderRegistration(ctx, record, fields, userMessage(err))
	}

	a.Logger.Info("account registered", "username", account.Username)

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": MsgRegistrationSuccess,
	}).Redirect(a.Routes.Login+"?registered=1", http.StatusSeeOther)
}

func (a *AuthController) renderRegistration(ctx router.Context, record RegisterRequest, fields map[string]string, message string) error {
	return ctx.Render(a.Views.Register, TemplateData(ctx, router.ViewContext{
		"errors":        fields,
		"error_message": message,
		"record":        record,
		"groups":        KnownGroups(),
	}))
}

func (a *AuthController) defaultErrHandler(ctx router.Context, err error) error {
	a.Logger.Error("auth controller error", "error", err)
	return ctx.Status(http.StatusInternalServerError).Render("errors/500", TemplateData(ctx, router.ViewContext{
		"message": userMessage(err),
	}))
}

// userMessage returns the message a rich error carries, or a generic one.
func userMessage(err error) string {
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Message != "" {
		if richErr.Category == errors.CategoryInternal {
			return "An unexpected error occurred, please try again"
		}
		return richErr.Message
	}
	return "An unexpected error occurred, please try again"
}
