package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"questionnaire-service/internal/config"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens the database file and applies the pragmas the store
// relies on. SQLite serializes writers, so the pool is pinned to one
// connection.
func OpenSQLite(ctx context.Context, cfg config.SQLiteConfig) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", cfg.Path, err)
	}
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	log.Printf("Opened SQLite database at %s", cfg.Path)
	return conn, nil
}
