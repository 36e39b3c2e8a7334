package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

const (
	connectAttempts = 30
	connectBackoff  = 2 * time.Second
)

// Connect establishes a connection to PostgreSQL with retries.
func Connect(ctx context.Context, databaseURL string, logger *slog.Logger) (*sql.DB, error) {
	var db *sql.DB
	var err error

	for i := 1; i <= connectAttempts; i++ {
		db, err = sql.Open("postgres", databaseURL)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = db.PingContext(pingCtx)
			cancel()
			if err == nil {
				logger.Info("connected to postgres")
				return db, nil
			}
			db.Close()
		}

		logger.Warn("postgres not ready, retrying", "attempt", i, "error", err, "backoff", connectBackoff)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}

	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", connectAttempts, err)
}
