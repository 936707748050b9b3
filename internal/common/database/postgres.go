package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"propensity-scoring/internal/common/config"

	_ "github.com/lib/pq"
)

// recommendationSchema holds the ranked products recorded per scoring request.
const recommendationSchema = `
CREATE TABLE IF NOT EXISTS customer_products (
	id             UUID PRIMARY KEY,
	customer_id    TEXT NOT NULL,
	request_id     TEXT NOT NULL,
	product        TEXT NOT NULL,
	product_order  INT NOT NULL,
	score          DOUBLE PRECISION NOT NULL,
	schema_version TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	UNIQUE (request_id, product)
);
CREATE INDEX IF NOT EXISTS idx_customer_products_customer
	ON customer_products (customer_id, created_at DESC);
`

type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// EnsureSchema creates the recommendation tables if they are missing.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, recommendationSchema); err != nil {
		return fmt.Errorf("ensure recommendation schema: %w", err)
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
