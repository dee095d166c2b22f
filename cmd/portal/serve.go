package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	portal "github.com/goliatone/go-portal"
	"github.com/goliatone/go-portal/apiclient"
	"github.com/goliatone/go-portal/middleware/csrf"
	"github.com/goliatone/go-portal/repository"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
	"golang.org/x/sync/errgroup"
)

func runServe(ctx context.Context, args []string) error {
	fs, envFile := newFlagSet("serve")
	addr := fs.String("addr", "", "override PORTAL_HTTP_ADDR")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := bootstrap(ctx, *envFile, true)
	if err != nil {
		return err
	}
	defer app.Close()

	if *addr != "" {
		app.Config.SetHTTPAddr(*addr)
	}

	srv, err := newHTTPServer(app)
	if err != nil {
		return err
	}

	logger := app.GetLogger("serve")
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", app.Config.HTTP.Addr)
		return srv.Serve(app.Config.HTTP.Addr)
	})

	if purger, ok := app.Sessions.(repository.Purger); ok {
		sweeper := repository.NewSweeper(purger, app.Config.Session.SweepInterval, app.GetLogger("sweeper"))
		g.Go(func() error {
			return sweeper.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		sctx, cancel := context.WithTimeout(context.Background(), app.Config.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newHTTPServer(app *App) (router.Server[*fiber.App], error) {
	cfg := app.Config

	engine := django.NewPathForwardingFileSystem(http.FS(portal.GetViewsFS()), "/", ".html")
	engine.Reload(cfg.IsDev)
	engine.AddFuncMap(portal.TemplateHelpers())

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:          true,
			StrictRouting:         false,
			PassLocalsToViews:     true,
			DisableStartupMessage: !cfg.IsDev,
			Views:                 engine,
		}))
	})

	r := srv.Router()
	r.WithLogger(app.GetLogger("router"))

	tokens := portal.NewTokenService(&cfg.Auth, app.GetLogger("tokens"))

	provider := portal.NewProvider(app.Directory, app.Repo, app.Sessions, tokens).
		WithLogger(app.GetLogger("auth")).
		WithActivitySink(app.Activity).
		WithLookupTimeout(cfg.Session.LookupTimeout)

	auther, err := portal.NewHTTPAuthenticator(provider, tokens, &cfg.Auth)
	if err != nil {
		return nil, err
	}
	auther.WithLogger(app.GetLogger("auth:http"))

	// the session middleware runs first so csrf tokens bind to the session
	r.Use(auther.SessionMiddleware())
	r.Use(csrf.New(csrf.Config{
		SecureKey:  []byte(cfg.HTTP.CSRFKey),
		Skip:       isAPIRequest,
		SessionKey: csrfSessionKey,
	}))
	r.Use(mflash.New(mflash.ConfigDefault))

	portal.RegisterAuthRoutes(r,
		portal.WithControllerLogger(app.GetLogger("auth:controller")),
		portal.WithAuthProvider(provider),
		portal.WithHTTPAuthenticator(auther),
		portal.WithDebug(cfg.IsDev),
	)

	api := portal.NewAPIController(provider, auther, app.Repo, app.Directory, app.Sessions).
		WithLogger(app.GetLogger("api"))
	portal.RegisterAPIRoutes(r.Group("/api"), api)

	client := apiclient.New(cfg.APIClient.BaseURL,
		apiclient.WithTimeout(cfg.APIClient.Timeout),
		apiclient.WithLogger(app.GetLogger("apiclient")),
	)
	dashboards := portal.NewDashboardController(client).
		WithLogger(app.GetLogger("dashboard")).
		WithActivitySink(app.Activity)
	dashboards.FetchTimeout = cfg.APIClient.Timeout
	portal.RegisterDashboardRoutes(r, auther, dashboards)

	return srv, nil
}

func isAPIRequest(ctx router.Context) bool {
	return strings.HasPrefix(ctx.Path(), "/api/") || ctx.Path() == "/api"
}

func csrfSessionKey(ctx router.Context) string {
	if state := portal.GetAuthState(ctx); state.SessionID != "" {
		return "ses_" + state.SessionID
	}
	return "ip_" + ctx.IP()
}
