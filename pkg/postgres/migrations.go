package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// RunMigrations executes the schema statements owned by service.
func RunMigrations(ctx context.Context, db *sql.DB, service string, logger *slog.Logger) error {
	migrations, err := getServiceMigrations(service)
	if err != nil {
		return err
	}
	for i, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d for %s: %w", i+1, service, err)
		}
	}
	logger.Info("migrations completed", "service", service, "count", len(migrations))
	return nil
}

func getServiceMigrations(service string) ([]string, error) {
	switch service {
	case "userdb":
		return []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255) NOT NULL UNIQUE,
				age INTEGER NOT NULL CHECK (age BETWEEN 0 AND 150),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
		}, nil
	case "notifications":
		return []string{
			`CREATE TABLE IF NOT EXISTS idempotency_keys (
				event_id VARCHAR(64) PRIMARY KEY,
				processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_idempotency_keys_processed_at ON idempotency_keys (processed_at)`,
		}, nil
	default:
		return nil, fmt.Errorf("no migrations for service %q", service)
	}
}
