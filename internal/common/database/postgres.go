package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gcloud-docgen/internal/common/config"
	"gcloud-docgen/internal/common/errors"

	_ "github.com/lib/pq"
)

// PostgresClient holds the pool behind the proposal records.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens the pool without connecting. applicationName shows up in
// pg_stat_activity so document workers can be told apart from other clients.
func NewPostgres(cfg config.PostgresConfig, applicationName string) (*PostgresClient, error) {
	dsn := cfg.GetDSN()
	if applicationName != "" {
		dsn += fmt.Sprintf(" application_name='%s'", applicationName)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	maxOpen := cfg.MaxConnections
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping reports an unreachable database as DATABASE_CONNECTION_FAILED.
func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return errors.NewDatabaseConnectionFailedError(err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
