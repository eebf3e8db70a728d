package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectFileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "logs.db")

	conn, err := Connect(Options{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	assert.Equal(t, path, conn.Path())
	assert.FileExists(t, path)

	// Both migrations are applied: the logs table exists and carries the
	// tag column added by the additive migration.
	var count int
	err = conn.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('logs') WHERE name = 'tag'`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	for _, index := range []string{"idx_logs_timestamp", "idx_logs_level", "idx_logs_label", "idx_logs_tag"} {
		var n int
		err = conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?`, index).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, index)
	}

	size, ok := conn.SizeBytes()
	assert.True(t, ok)
	assert.Greater(t, size, int64(0))
}

func TestConnectAppliesSizeCapToEveryConnection(t *testing.T) {
	conn, err := Connect(Options{
		Path:         filepath.Join(t.TempDir(), "logs.db"),
		MaxSizeBytes: 256 * 1024,
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Force each query onto a fresh connection; the cap rides in the DSN,
	// so every one must report it.
	conn.SetMaxIdleConns(0)
	want := int64(256 * 1024 / defaultPageSize)
	for i := 0; i < 5; i++ {
		var maxPages int64
		require.NoError(t, conn.QueryRow(`PRAGMA max_page_count`).Scan(&maxPages))
		assert.Equal(t, want, maxPages)
	}
}

func TestConnectInMemory(t *testing.T) {
	conn, err := Connect(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	assert.Empty(t, conn.Path())

	_, ok := conn.SizeBytes()
	assert.False(t, ok)

	_, err = conn.Exec(`INSERT INTO logs (timestamp, level, message) VALUES ('2025-01-01T00:00:00.000000000Z', 'info', 'hello')`)
	assert.NoError(t, err)
}

func TestConnectIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.db")

	first, err := Connect(Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Reopening runs migrations again; they must be no-ops.
	second, err := Connect(Options{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	var n int
	err = second.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'logs'`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
