package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetupRepository opens a repository over a fresh database file in a temp dir
func SetupRepository(t *testing.T) *Repository {
	t.Helper()

	ctx := context.Background()
	repo, err := NewRepository(ctx, filepath.Join(t.TempDir(), "webhooks.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = repo.Close(ctx)
	})
	return repo
}
