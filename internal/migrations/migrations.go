// Package migrations embeds the schema and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS

// goose keeps its configuration in package globals.
var mu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Up applies every pending migration for the given database/sql driver
// name.
func Up(ctx context.Context, db *sql.DB, driver string) error {
	dialect, dir, err := target(driver)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("migrate %s: %w", driver, err)
	}
	return nil
}

func target(driver string) (dialect, dir string, err error) {
	switch driver {
	case "pgx", "postgres":
		return "postgres", "postgres", nil
	case "sqlite", "sqlite3":
		return "sqlite3", "sqlite", nil
	}
	return "", "", fmt.Errorf("migrations: unsupported driver %q", driver)
}
