package sessions

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/qrkiosk/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "sessions.db")

	repo, err := Open(context.Background(), "sqlite://"+path, "k", logging.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	testRepositoryBehaviour(t, openTestSQLite)
}

func TestSQLiteRepository_MigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	first, err := Open(ctx, "sqlite://"+path, "k", logging.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(ctx, "sqlite://"+path, "k", logging.NopLogger{})
	require.NoError(t, err)
	defer second.Close()

	active, err := second.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}
