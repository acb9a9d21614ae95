package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/therealutkarshpriyadarshi/examprep/internal/config"
	"github.com/therealutkarshpriyadarshi/examprep/internal/logging"
	"github.com/therealutkarshpriyadarshi/examprep/internal/metrics"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

// DB wraps the database connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection
func New(cfg config.DatabaseConfig) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d pool_min_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
		cfg.MaxConns, cfg.MinConns,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Set connection pool settings
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Ping the database to verify connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Health checks if the database is healthy
func (db *DB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// EnsureSchema creates the tables the service needs if they do not exist yet
func (db *DB) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id                    TEXT PRIMARY KEY,
		email                 TEXT NOT NULL UNIQUE,
		password_hash         TEXT NOT NULL DEFAULT '',
		display_name          TEXT NOT NULL DEFAULT '',
		plan                  TEXT NOT NULL DEFAULT 'free',
		daily_remaining_quota INTEGER NOT NULL DEFAULT 0 CHECK (daily_remaining_quota >= 0),
		last_summary_date     DATE,
		is_admin              BOOLEAN NOT NULL DEFAULT false,
		plan_expiry_date      TIMESTAMPTZ,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_plan_expiry ON profiles (plan_expiry_date) WHERE plan <> 'free'`,
	`CREATE TABLE IF NOT EXISTS coupons (
		id            TEXT PRIMARY KEY,
		plan_applied  TEXT NOT NULL,
		duration_days INTEGER NOT NULL CHECK (duration_days > 0),
		usage_limit   INTEGER NOT NULL CHECK (usage_limit > 0),
		times_used    INTEGER NOT NULL DEFAULT 0,
		redeemed_by   TEXT[] NOT NULL DEFAULT '{}',
		is_active     BOOLEAN NOT NULL DEFAULT true,
		created_by    TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS support_tickets (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL DEFAULT '',
		email      TEXT NOT NULL,
		subject    TEXT NOT NULL,
		message    TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'open',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS webhooks (
		id         TEXT PRIMARY KEY,
		created_by TEXT NOT NULL,
		url        TEXT NOT NULL,
		events     JSONB NOT NULL,
		secret     TEXT NOT NULL DEFAULT '',
		is_active  BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS webhook_deliveries (
		id            TEXT PRIMARY KEY,
		webhook_id    TEXT NOT NULL REFERENCES webhooks (id) ON DELETE CASCADE,
		event         TEXT NOT NULL,
		payload       TEXT NOT NULL,
		status        TEXT NOT NULL,
		status_code   INTEGER NOT NULL DEFAULT 0,
		response_body TEXT NOT NULL DEFAULT '',
		retry_count   INTEGER NOT NULL DEFAULT 0,
		next_retry_at TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_pending ON webhook_deliveries (next_retry_at) WHERE status = 'pending'`,
}

// Repository provides database operations
type Repository struct {
	db *DB
	// loc is the calendar used for DATE columns
	loc    *time.Location
	logger *logging.Logger
}

// NewRepository creates a new repository. DATE columns are read back as midnight in loc.
func NewRepository(db *DB, loc *time.Location, logger *logging.Logger) *Repository {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Repository{db: db, loc: loc, logger: logger}
}

// observe records the outcome and latency of a database operation.
// It is deferred with a pointer to the named error result.
// Failures other than not-found and invalid-state outcomes are also logged.
func (r *Repository) observe(operation string, start time.Time, err *error) {
	duration := time.Since(start)
	status := "success"
	if *err != nil && !errors.Is(*err, models.ErrNotFound) && !errors.Is(*err, models.ErrInvalidState) {
		status = "error"
		r.logger.LogDatabaseOperation(operation, duration, *err)
	}
	metrics.RecordDatabaseOperation(operation, status, duration.Seconds())
}

// persistenceError wraps a driver error into the persistence failure kind
func persistenceError(action string, err error) error {
	return fmt.Errorf("%w: failed to %s: %v", models.ErrPersistence, action, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// dayIn maps a DATE value, which pgx returns as UTC midnight, onto midnight in loc
func dayIn(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
