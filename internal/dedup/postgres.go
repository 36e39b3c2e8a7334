package dedup

import (
	"context"
	"database/sql"
	"time"
)

// PostgresSet keeps sent event IDs in the idempotency_keys table. Entries
// older than ttl no longer count as seen.
type PostgresSet struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewPostgresSet creates a set over db. The table is created by the
// "notifications" migrations.
func NewPostgresSet(db *sql.DB, ttl time.Duration) *PostgresSet {
	return &PostgresSet{db: db, ttl: ttl, now: time.Now}
}

// Seen reports whether eventID was marked within the TTL window.
func (s *PostgresSet) Seen(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM idempotency_keys WHERE event_id = $1 AND processed_at > $2)",
		eventID, s.now().Add(-s.ttl),
	).Scan(&exists)
	return exists, err
}

// Mark records eventID as sent now.
func (s *PostgresSet) Mark(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (event_id, processed_at) VALUES ($1, $2)
		 ON CONFLICT (event_id) DO UPDATE SET processed_at = EXCLUDED.processed_at`,
		eventID, s.now(),
	)
	return err
}

// Purge deletes expired keys and returns how many were removed.
func (s *PostgresSet) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM idempotency_keys WHERE processed_at <= $1", s.now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
