package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/infra/config"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const pingTimeout = 5 * time.Second

// NewPostgresConnection opens the alert service's connection pool, sized from
// configuration, and verifies the database is reachable before handing the
// pool out. Idle connections are kept short-lived so the daily scan never
// inherits one the server already dropped.
func NewPostgresConnection(cfg *config.AppConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
