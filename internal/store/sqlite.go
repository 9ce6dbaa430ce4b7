package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode so reads during a poll cycle never block the
	// post-send record write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// HasProcessed reports whether a reply has already been recorded for the
// (folder, message id) key.
func (s *SQLiteStore) HasProcessed(
	ctx context.Context, folder, messageID string,
) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM processed_messages WHERE folder = ? AND message_id = ?",
		folder, messageID,
	)
	if err != nil {
		return false, fmt.Errorf("looking up processed record: %w", err)
	}
	return count > 0, nil
}

// MarkProcessed records that a reply was sent for the given key.
// INSERT OR IGNORE makes the second mark for the same key a no-op, which
// keeps the operation idempotent.
func (s *SQLiteStore) MarkProcessed(
	ctx context.Context, folder, messageID string,
) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO processed_messages (folder, message_id, replied_at) VALUES (?, ?, ?)",
		folder, messageID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording processed message %s/%s: %w", folder, messageID, err)
	}
	return nil
}

// ProcessedCount returns the number of processed records for a folder.
func (s *SQLiteStore) ProcessedCount(
	ctx context.Context, folder string,
) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM processed_messages WHERE folder = ?",
		folder,
	)
	if err != nil {
		return 0, fmt.Errorf("counting processed records: %w", err)
	}
	return count, nil
}
