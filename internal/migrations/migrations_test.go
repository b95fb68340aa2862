package migrations

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared&_time_format=sqlite")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUp_SQLiteCreatesTables(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, Up(ctx, db, "sqlite"))
	// second run is a no-op
	require.NoError(t, Up(ctx, db, "sqlite"))

	for _, table := range []string{"organizations", "members"} {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestUp_LiveNameIsUnique(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, Up(ctx, db, "sqlite3"))

	insert := `INSERT INTO organizations (id, created_at, deleted_at, name) VALUES (?, CURRENT_TIMESTAMP, ?, 'acme')`
	_, err := db.ExecContext(ctx, insert, "a", "2024-01-01 00:00:00")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "b", nil)
	require.NoError(t, err, "soft-deleted row must not block the name")
	_, err = db.ExecContext(ctx, insert, "c", nil)
	assert.Error(t, err)
}

func TestUp_UnsupportedDriver(t *testing.T) {
	err := Up(context.Background(), nil, "mysql")
	assert.ErrorContains(t, err, "unsupported driver")
}

func TestUp_PostgresUsesPostgresDir(t *testing.T) {
	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, Up(context.Background(), nil, "pgx"))
	assert.Equal(t, "postgres", gotDir)
}

func TestUp_WrapsGooseError(t *testing.T) {
	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	boom := errors.New("boom")
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return boom
	}
	err := Up(context.Background(), nil, "postgres")
	assert.ErrorIs(t, err, boom)
}

func TestMigrations_EmbedsBothDialects(t *testing.T) {
	for _, dir := range []string{"postgres", "sqlite"} {
		entries, err := Migrations.ReadDir(dir)
		require.NoError(t, err)
		assert.NotEmpty(t, entries, dir)
	}
}
