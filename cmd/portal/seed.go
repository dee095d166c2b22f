package main

import (
	"context"
	"os"

	"github.com/goliatone/go-portal/provider/local"
	"github.com/goliatone/go-portal/seed"
)

func runSeed(ctx context.Context, args []string) error {
	fs, envFile := newFlagSet("seed")
	fixturesFile := fs.String("fixtures", "", "yaml fixtures file, defaults to the built in demo accounts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	app, err := bootstrap(ctx, *envFile, true)
	if err != nil {
		return err
	}
	defer app.Close()

	fixtures, err := loadFixtures(*fixturesFile)
	if err != nil {
		return err
	}

	seeder := seed.New(app.Repo).WithLogger(app.GetLogger("seed"))
	if dir, ok := app.Directory.(*local.Directory); ok {
		seeder.WithDirectory(dir)
	}

	result, err := seeder.Run(ctx, fixtures)
	if err != nil {
		return err
	}

	app.GetLogger("seed").Info("seed complete",
		"accounts_created", result.AccountsCreated,
		"accounts_skipped", result.AccountsSkipped,
		"directory_created", result.DirectoryCreated,
	)
	return nil
}

func loadFixtures(path string) ([]seed.Fixture, error) {
	if path == "" {
		return seed.DefaultFixtures()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return seed.LoadFixtures(f)
}
