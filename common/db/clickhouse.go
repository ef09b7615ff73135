package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/altos-data/chmig/common/config"
	"github.com/altos-data/chmig/common/logger"
)

// EngineError wraps a failure reported by ClickHouse while executing a
// rendered statement.
type EngineError struct {
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine execution failed: %v", e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// ClickHouse wraps a database/sql handle with common operations
type ClickHouse struct {
	*sql.DB
	log *logger.Logger
}

// New opens a ClickHouse connection and verifies it with a ping
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*ClickHouse, error) {
	conn, err := sql.Open("clickhouse", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	log.Info("clickhouse connected", "host", cfg.Database.Host, "db", cfg.Database.Database)

	return &ClickHouse{
		DB:  conn,
		log: log,
	}, nil
}

// Close closes the connection pool
func (c *ClickHouse) Close() error {
	c.log.Info("closing clickhouse connection")
	return c.DB.Close()
}

// Apply executes a rendered statement against ClickHouse.
func (c *ClickHouse) Apply(ctx context.Context, statement string) error {
	if _, err := c.ExecContext(ctx, statement); err != nil {
		return &EngineError{Err: err}
	}
	return nil
}

// Preview logs the statement that would be executed without touching the
// database. Used by dry runs only.
func (c *ClickHouse) Preview(ctx context.Context, statement string) error {
	c.log.Info("dry run", "sql", statement)
	return nil
}
