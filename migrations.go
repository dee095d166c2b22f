package portal

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrate applies every pending embedded migration. It returns the names of
// the migrations applied in this run.
func Migrate(ctx context.Context, db *bun.DB, logger Logger) ([]string, error) {
	if logger == nil {
		logger = DefaultLogger()
	}

	migrator, err := newMigrator(db)
	if err != nil {
		return nil, err
	}

	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}

	if err := migrator.Lock(ctx); err != nil {
		return nil, fmt.Errorf("lock migrations: %w", err)
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if group.IsZero() {
		logger.Info("no new migrations to run")
		return []string{}, nil
	}

	applied := make([]string, 0, len(group.Migrations))
	for _, m := range group.Migrations {
		applied = append(applied, m.Name)
	}
	logger.Info("migrated", "group", group.ID, "migrations", applied)
	return applied, nil
}

// Rollback reverts the last applied migration group.
func Rollback(ctx context.Context, db *bun.DB, logger Logger) ([]string, error) {
	if logger == nil {
		logger = DefaultLogger()
	}

	migrator, err := newMigrator(db)
	if err != nil {
		return nil, err
	}

	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}

	group, err := migrator.Rollback(ctx)
	if err != nil {
		return nil, fmt.Errorf("rollback: %w", err)
	}

	if group.IsZero() {
		logger.Info("no migration group to roll back")
		return []string{}, nil
	}

	reverted := make([]string, 0, len(group.Migrations))
	for _, m := range group.Migrations {
		reverted = append(reverted, m.Name)
	}
	logger.Info("rolled back", "group", group.ID, "migrations", reverted)
	return reverted, nil
}

func newMigrator(db *bun.DB) (*migrate.Migrator, error) {
	migrations := migrate.NewMigrations()
	if err := migrations.Discover(GetMigrationsFS()); err != nil {
		return nil, fmt.Errorf("discover migrations: %w", err)
	}
	return migrate.NewMigrator(db, migrations), nil
}
