package container

import (
	"context"
	"fmt"

	"gocal/adapters/kalman"
	"gocal/adapters/postgres"
	"gocal/app"
	"gocal/internal"
	"gocal/internal/config"
	"gocal/internal/errors"
	"gocal/internal/migration"
	"gocal/internal/testkit"
	"gocal/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Repositories (data access layer); nil when persistence is disabled
	SeriesRepo ports.SeriesRepository
	RunRepo    ports.RunRepository

	Smoother *kalman.Smoother
	Service  *app.CalendarizationService

	// TestKit backs the repositories in in-memory mode
	TestKit *testkit.TestKit
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))
	internal.DefaultLogger = logger

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Smoother: kalman.NewSmoother(logger),
	}, nil
}

// Init wires persistence according to the configuration: postgres when a
// database URL is set, in-memory repositories when requested, none otherwise
func (c *Container) Init(ctx context.Context) error {
	switch {
	case c.Config.Database.Enabled():
		db, err := OpenDatabase(ctx, c.Config.Database)
		if err != nil {
			return err
		}
		if err := migration.NewRunner().Run(ctx, db); err != nil {
			db.Close()
			return errors.Wrap(err, "database migration failed")
		}
		return c.InitWithDatabase(db)
	case c.Config.Database.InMemory:
		c.InitInMemory()
	default:
		c.Logger.Info("no DATABASE_URL configured, persistence disabled")
		c.initService()
	}
	return nil
}

// OpenDatabase connects to PostgreSQL and verifies the connection
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.URL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.URL)
	if err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to connect to database")
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	return db, nil
}

// InitWithDatabase initializes components that require database access
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	c.DB = db
	c.SeriesRepo = postgres.NewSeriesRepository(db)
	c.RunRepo = postgres.NewRunRepository(db)
	c.initService()

	c.Logger.Info("container initialized with database connection")
	return nil
}

// InitInMemory backs persistence with process-local repositories
func (c *Container) InitInMemory() {
	c.TestKit = testkit.NewTestKit()
	c.SeriesRepo = c.TestKit.SeriesRepository()
	c.RunRepo = c.TestKit.RunRepository()
	c.initService()

	c.Logger.Info("container initialized with in-memory repositories")
}

func (c *Container) initService() {
	cal := c.Config.Calendarize
	c.Service = app.NewCalendarizationService(c.Smoother, c.SeriesRepo, c.RunRepo, app.ServiceConfig{
		MaxConcurrency: cal.MaxConcurrency,
		MaxGridDays:    cal.MaxGridDays,
		DefaultWeights: cal.DefaultWeights,
	}, c.Logger)
}

// Shutdown releases the database connection
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		c.DB = nil
	}
	return nil
}
