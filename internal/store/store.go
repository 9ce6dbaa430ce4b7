package store

import (
	"context"
	"time"
)

// ProcessedRecord is the durable evidence that a message has already been
// replied to. Records are created once per confirmed send and never
// updated.
type ProcessedRecord struct {
	Folder    string    `db:"folder"`
	MessageID string    `db:"message_id"`
	RepliedAt time.Time `db:"replied_at"`
}

// Store is the persistence interface for the reply dedup state. A fresh
// process must see every record written by its predecessors, so
// implementations are durable.
type Store interface {
	// HasProcessed reports whether a reply has already been recorded for
	// the (folder, message id) key. Pure lookup, safe before any network
	// I/O.
	HasProcessed(ctx context.Context, folder, messageID string) (bool, error)

	// MarkProcessed records that a reply was sent. Idempotent: marking the
	// same key twice is not an error and has no additional effect.
	MarkProcessed(ctx context.Context, folder, messageID string) error

	// ProcessedCount returns the number of records for a folder.
	ProcessedCount(ctx context.Context, folder string) (int, error)

	Close() error
}
