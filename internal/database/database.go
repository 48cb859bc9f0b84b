package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/foxxcyber/equiptrack/internal/config"
)

// DB wraps the connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger *logrus.Logger
}

// Connect creates a new database connection pool
func Connect(databaseURL string, logger *logrus.Logger) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Info("Database connected successfully")
	return &DB{Pool: pool, logger: logger}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.Pool.Close()
}

// RunMigrations applies pending migrations in version order
func RunMigrations(ctx context.Context, db *DB) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, version := range migrationVersions() {
		var exists bool
		err := db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", version, err)
		}

		if exists {
			continue
		}

		db.logger.WithField("version", version).Info("Applying migration")

		tx, err := db.Pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", version, err)
		}

		if _, err := tx.Exec(ctx, migrations[version]); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to apply migration %d: %w", version, err)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %d: %w", version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", version, err)
		}
	}

	return nil
}

func migrationVersions() []int {
	versions := make([]int, 0, len(migrations))
	for v := range migrations {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions
}

// EnsureAdminUser creates the admin user if it doesn't exist
func EnsureAdminUser(ctx context.Context, db *DB, cfg *config.Config) error {
	if cfg.AdminPassword == "" {
		db.logger.Warn("ADMIN_PASSWORD not set, skipping admin user creation")
		return nil
	}

	var exists bool
	err := db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)",
		cfg.AdminEmail,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for admin user: %w", err)
	}

	if exists {
		db.logger.Debug("Admin user already exists")
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO users (email, password_hash, name, role)
		VALUES ($1, $2, 'admin', 'admin')
	`, cfg.AdminEmail, string(hashedPassword))
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	db.logger.WithField("email", cfg.AdminEmail).Info("Admin user created")
	return nil
}

// isUniqueViolation reports whether err is a unique constraint failure on constraint
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
}

// migrations maps a schema version to its SQL
var migrations = map[int]string{
	1: migration001,
	2: migration002,
	3: migration003,
	4: migration004,
}

const migration001 = `
CREATE EXTENSION IF NOT EXISTS "pg_trgm";

CREATE TABLE IF NOT EXISTS users (
    id SERIAL PRIMARY KEY,
    email VARCHAR(255) UNIQUE NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    name VARCHAR(100),
    role VARCHAR(20) NOT NULL DEFAULT 'user',
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    last_login_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS equipment_models (
    id SERIAL PRIMARY KEY,
    model VARCHAR(100) NOT NULL,
    manufacturer VARCHAR(100),
    category VARCHAR(50),
    description TEXT,
    created_by INT REFERENCES users(id) ON DELETE SET NULL,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    CONSTRAINT equipment_models_model_key UNIQUE (model)
);

CREATE INDEX IF NOT EXISTS idx_equipment_models_model_trgm ON equipment_models USING gin (model gin_trgm_ops);
CREATE INDEX IF NOT EXISTS idx_equipment_models_category ON equipment_models(category);
`

const migration002 = `
CREATE TABLE IF NOT EXISTS movement_documents (
    id SERIAL PRIMARY KEY,
    user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    source VARCHAR(10) NOT NULL DEFAULT 'text',
    responsible VARCHAR(255),
    origin VARCHAR(255),
    movement_date VARCHAR(10),
    total_units INT NOT NULL DEFAULT 0,
    raw_text TEXT,
    s3_bucket VARCHAR(100),
    s3_key VARCHAR(500),
    original_filename VARCHAR(255),
    content_type VARCHAR(100),
    file_size_bytes BIGINT,
    expires_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS document_equipment (
    id SERIAL PRIMARY KEY,
    document_id INT NOT NULL REFERENCES movement_documents(id) ON DELETE CASCADE,
    model VARCHAR(100) NOT NULL,
    product_code VARCHAR(100),
    quantity INT NOT NULL CHECK (quantity > 0),
    mac_addresses TEXT[] NOT NULL DEFAULT '{}',
    catalog_model_id INT REFERENCES equipment_models(id) ON DELETE SET NULL,
    position INT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_movement_documents_user ON movement_documents(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_movement_documents_expires ON movement_documents(expires_at) WHERE expires_at IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_document_equipment_document ON document_equipment(document_id, position);
`

const migration003 = `
CREATE TABLE IF NOT EXISTS reconciliation_runs (
    id SERIAL PRIMARY KEY,
    user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    label VARCHAR(200),
    mac_count INT NOT NULL DEFAULT 0,
    found_count INT NOT NULL DEFAULT 0,
    unmatched_count INT NOT NULL DEFAULT 0,
    invalid_count INT NOT NULL DEFAULT 0,
    duplicate_count INT NOT NULL DEFAULT 0,
    indexed BOOLEAN NOT NULL DEFAULT FALSE,
    elapsed_ms BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS reconciliation_macs (
    id SERIAL PRIMARY KEY,
    run_id INT NOT NULL REFERENCES reconciliation_runs(id) ON DELETE CASCADE,
    mac VARCHAR(32) NOT NULL,
    status VARCHAR(20) NOT NULL,
    location VARCHAR(255),
    position INT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_reconciliation_runs_user ON reconciliation_runs(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_reconciliation_macs_run ON reconciliation_macs(run_id, position);
`

// A stored image belongs to at most one document
const migration004 = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_movement_documents_s3_key ON movement_documents(s3_key) WHERE s3_key IS NOT NULL;
`
