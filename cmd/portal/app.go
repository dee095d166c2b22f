package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	portal "github.com/goliatone/go-portal"
	"github.com/goliatone/go-portal/activitymap"
	portalredis "github.com/goliatone/go-portal/adapters/redis"
	"github.com/goliatone/go-portal/config"
	"github.com/goliatone/go-portal/provider/ldap"
	"github.com/goliatone/go-portal/provider/local"
	"github.com/goliatone/go-portal/repository"
	"github.com/goliatone/go-print"
	"github.com/uptrace/bun"
)

// App holds the wired components shared by every command.
type App struct {
	Config    config.AppConfig
	DB        *bun.DB
	Repo      portal.RepositoryManager
	Directory portal.Directory
	Sessions  portal.SessionStore
	Activity  portal.ActivitySink
	logger    *glog.BaseLogger
	closers   []func() error
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.GetLogger("app").Warn("close failed", "error", err)
		}
	}
}

func newLogger(cfg config.LogConfig) *glog.BaseLogger {
	opts := []glog.Option{
		glog.WithName("portal"),
		glog.WithLevel(logLevel(cfg.Level)),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	}
	if cfg.Format == "pretty" {
		opts = append(opts, glog.WithLoggerTypePretty())
	} else {
		opts = append(opts, glog.WithLoggerTypeJSON())
	}
	return glog.NewLogger(opts...)
}

func logLevel(level string) string {
	switch strings.ToLower(level) {
	case "trace":
		return glog.Trace
	case "debug":
		return glog.Debug
	case "warn":
		return glog.Warn
	case "error":
		return glog.Error
	}
	return glog.Info
}

// bootstrap loads configuration and opens the database. Stores and the
// directory are only opened when withRuntime is set.
func bootstrap(ctx context.Context, envFile string, withRuntime bool) (*App, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{Config: cfg, logger: newLogger(cfg.Log)}
	if cfg.IsDev {
		app.GetLogger("config").Debug("configuration loaded", "config", print.MaybePrettyJSON(redacted(cfg)))
	}

	db, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	app.DB = db
	app.closers = append(app.closers, db.Close)

	app.Repo = portal.NewRepositoryManager(db)
	if err := app.Repo.Validate(); err != nil {
		app.Close()
		return nil, err
	}

	if !withRuntime {
		return app, nil
	}

	if cfg.Database.AutoMigrate {
		if _, err := portal.Migrate(ctx, db, app.GetLogger("migrate")); err != nil {
			app.Close()
			return nil, err
		}
	}

	if err := app.openDirectory(); err != nil {
		app.Close()
		return nil, err
	}

	if err := app.openSessions(ctx); err != nil {
		app.Close()
		return nil, err
	}

	app.Activity = activitymap.NewRecorder(app.Repo).WithLogger(app.GetLogger("activity"))

	return app, nil
}

func (a *App) openDirectory() error {
	cfg := a.Config
	switch cfg.Directory.Backend {
	case config.DirectoryLDAP:
		a.Directory = ldap.NewDirectory(ldap.Config{
			URL:           cfg.LDAP.URL,
			BaseDN:        cfg.Directory.BaseDN,
			AdminDN:       cfg.LDAP.AdminDN,
			AdminPassword: cfg.LDAP.AdminPassword,
			UsersOU:       cfg.LDAP.UsersOU,
			GroupsOU:      cfg.LDAP.GroupsOU,
			Timeout:       cfg.LDAP.Timeout,
		}, ldap.WithLogger(a.GetLogger("directory:ldap")))
	case config.DirectoryLocal:
		a.Directory = local.NewDirectory(a.DB,
			local.WithBaseDN(cfg.Directory.BaseDN),
			local.WithLogger(a.GetLogger("directory:local")),
		)
	default:
		return fmt.Errorf("unknown directory backend %q", cfg.Directory.Backend)
	}
	return nil
}

func (a *App) openSessions(ctx context.Context) error {
	cfg := a.Config
	if cfg.Session.Store != config.SessionStoreRedis {
		a.Sessions = repository.NewSessionStore(a.DB)
		return nil
	}

	client := portalredis.NewClient(portalredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, client.Close)

	store := portalredis.NewSessionStoreWithPrefix(client, cfg.Redis.Prefix)
	if err := store.Ping(ctx); err != nil {
		// sessions resolve as pending until redis is reachable
		a.GetLogger("sessions").Warn("redis not reachable at startup", "addr", cfg.Redis.Addr, "error", err)
	}
	a.Sessions = store
	return nil
}

func redacted(cfg config.AppConfig) config.AppConfig {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	cfg.Auth.SigningKey = mask(cfg.Auth.SigningKey)
	cfg.Auth.PreviousSigningKeys = nil
	cfg.HTTP.CSRFKey = mask(cfg.HTTP.CSRFKey)
	cfg.Redis.Password = mask(cfg.Redis.Password)
	cfg.LDAP.AdminPassword = mask(cfg.LDAP.AdminPassword)
	return cfg
}
