package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chathub/internal/database"
	dbconfig "chathub/pkg/database"
)

// newTestManager opens a fresh database under t.TempDir with the full
// migration set applied.
func newTestManager(t *testing.T) *database.Manager {
	t.Helper()

	manager, err := database.NewManager(&dbconfig.Config{
		DatabasePath:    filepath.Join(t.TempDir(), "test.db"),
		MaxConnections:  5,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

// frozenClock returns a clock the test can advance through the pointer.
func frozenClock() (*time.Time, func() time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &now, func() time.Time { return now }
}
