package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"orderpay-be/internal/logger"

	_ "github.com/lib/pq"
)

const (
	maxOpenConns    = 20
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
	pingTimeout     = 5 * time.Second
)

var ErrNoDSN = errors.New("database DSN is empty")

// NewDatabase opens a pooled Postgres handle and verifies it with a ping.
func NewDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	return newDatabaseWithDriver(ctx, dsn, "postgres")
}

func newDatabaseWithDriver(ctx context.Context, dsn, driver string) (*sql.DB, error) {
	if dsn == "" {
		return nil, ErrNoDSN
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	logger.L().Info("Database connection established")
	return db, nil
}
