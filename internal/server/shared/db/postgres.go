// Package db opens the PostgreSQL connection and applies the embedded
// schema migrations at startup.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dkravets/backoffice/internal/server/repositories/repomanager"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to PostgreSQL via the pgx stdlib driver, verifies the
// connection and runs migrations through the repository manager.
func Open(ctx context.Context, dsn string, m repomanager.RepositoryManager) (*sql.DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := m.RunMigrations(ctx, conn); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return conn, nil
}
