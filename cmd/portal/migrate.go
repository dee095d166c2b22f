package main

import (
	"context"

	portal "github.com/goliatone/go-portal"
)

func runMigrate(ctx context.Context, args []string) error {
	fs, envFile := newFlagSet("migrate")
	rollback := fs.Bool("rollback", false, "roll back the last migration group")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := bootstrap(ctx, *envFile, false)
	if err != nil {
		return err
	}
	defer app.Close()

	logger := app.GetLogger("migrate")

	if *rollback {
		_, err = portal.Rollback(ctx, app.DB, logger)
		return err
	}

	_, err = portal.Migrate(ctx, app.DB, logger)
	return err
}
