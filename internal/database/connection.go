package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/happypaws/dogwalk-backend/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewConnection creates a new database connection
func NewConnection(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxLifetime / 2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate applies all pending embedded migrations
func Migrate(ctx context.Context, db *sqlx.DB, logger *logrus.Logger) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(logger)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db.DB)
	if err != nil {
		return fmt.Errorf("get migration version: %w", err)
	}
	logger.WithField("version", version).Info("Database migrations applied")

	return nil
}
