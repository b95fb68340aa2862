// Package app wires configuration, storage and the cleanup services into
// a scheduled process.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adhocore/gronx"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/gophdata/internal/cleanup"
	"github.com/dmitrijs2005/gophdata/internal/config"
	"github.com/dmitrijs2005/gophdata/internal/logging"
	"github.com/dmitrijs2005/gophdata/internal/migrations"
	"github.com/dmitrijs2005/gophdata/internal/organizations"
	"github.com/dmitrijs2005/gophdata/internal/repository"
	"github.com/dmitrijs2005/gophdata/internal/results"
	"github.com/dmitrijs2005/gophdata/internal/sqlstore"
)

const pingTimeout = 5 * time.Second

// job is one cleanup pass over a single table.
type job struct {
	name string
	run  func(ctx context.Context, cutoff time.Time, batchSize int) results.Result[int]
}

type App struct {
	config        *config.Config
	logger        logging.Logger
	db            *sql.DB
	organizations *organizations.Service
	jobs          []job
	now           func() time.Time
}

// NewApp opens the database, applies migrations and builds the cleanup
// jobs.
func NewApp(cfg *config.Config, logger logging.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	db, err := sql.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := migrations.Up(ctx, db, cfg.DatabaseDriver); err != nil {
		_ = db.Close()
		return nil, err
	}

	app, err := newApp(cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(cfg *config.Config, db *sql.DB, logger logging.Logger, opts ...repository.Option) (*App, error) {
	dialect, err := sqlstore.DialectFor(cfg.DatabaseDriver)
	if err != nil {
		return nil, err
	}
	repos, err := organizations.NewRepositories(db, dialect, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("repositories init error: %w", err)
	}
	svc := organizations.NewService(repos)

	members := cleanup.New[*organizations.Member](repos.AllMembers, logger.With("job", "members"))
	orgs := cleanup.New[*organizations.Organization](repos.Organizations, logger.With("job", "organizations"),
		cleanup.WithGuard[*organizations.Organization](svc.OrganizationGuard()))

	return &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		organizations: svc,
		// members go first so their organizations can pass the guard in
		// the same run
		jobs: []job{
			{name: "members", run: members.CleanAll},
			{name: "organizations", run: orgs.CleanAll},
		},
		now: time.Now,
	}, nil
}

// Cleanup runs every job once with cutoff = now - retention. A failing job
// does not stop the ones after it.
func (app *App) Cleanup(ctx context.Context) error {
	cutoff := app.now().Add(-app.config.CleanupRetention)

	var errs []error
	for _, j := range app.jobs {
		r := j.run(ctx, cutoff, app.config.CleanupBatchSize)
		if r.HasError() {
			app.logger.Error(ctx, "cleanup failed", "job", j.name, "error", r.Err())
			errs = append(errs, fmt.Errorf("%s: %w", j.name, r.Err()))
			continue
		}
		app.logger.Info(ctx, "cleanup done", "job", j.name, "deleted", r.Value(), "cutoff", cutoff)
	}
	return errors.Join(errs...)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// Run executes Cleanup on the configured cron schedule until ctx is done
// or the process is signalled. It closes the database before returning.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.initSignalHandler(cancelFunc)()
	defer app.db.Close()

	app.logger.Info(ctx, "Starting cleanup scheduler...", "schedule", app.config.CleanupSchedule)

	if app.config.RunOnStart {
		_ = app.Cleanup(ctx)
	}

	for {
		now := app.now()
		next, err := gronx.NextTickAfter(app.config.CleanupSchedule, now, false)
		if err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
		app.logger.Debug(ctx, "next cleanup", "at", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			app.logger.Info(ctx, "Stopping cleanup scheduler")
			return nil
		case <-timer.C:
			_ = app.Cleanup(ctx)
		}
	}
}
