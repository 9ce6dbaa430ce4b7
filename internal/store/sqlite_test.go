package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasProcessedUnknownKey(t *testing.T) {
	s := newStore(t, ":memory:")

	done, err := s.HasProcessed(context.Background(), "Support", "m1@example.com")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestMarkProcessedIsIdempotent(t *testing.T) {
	s := newStore(t, ":memory:")
	ctx := context.Background()

	require.NoError(t, s.MarkProcessed(ctx, "Support", "m1@example.com"))
	require.NoError(t, s.MarkProcessed(ctx, "Support", "m1@example.com"))

	done, err := s.HasProcessed(ctx, "Support", "m1@example.com")
	require.NoError(t, err)
	assert.True(t, done)

	count, err := s.ProcessedCount(ctx, "Support")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "double mark must not create a second record")
}

func TestKeysAreScopedByFolder(t *testing.T) {
	s := newStore(t, ":memory:")
	ctx := context.Background()

	require.NoError(t, s.MarkProcessed(ctx, "Support", "m1@example.com"))

	done, err := s.HasProcessed(ctx, "Billing", "m1@example.com")
	require.NoError(t, err)
	assert.False(t, done, "same message id in another folder is a separate key")
}

func TestRecordsSurviveReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.MarkProcessed(ctx, "Support", "m1@example.com"))
	require.NoError(t, s.Close())

	// A fresh process must see its predecessor's records.
	s2, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s2.Close()

	done, err := s2.HasProcessed(ctx, "Support", "m1@example.com")
	require.NoError(t, err)
	assert.True(t, done)
}

func newStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
