package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, "session")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "session", "one"))
	require.NoError(t, kv.Set(ctx, "session", "two"))
	value, err := kv.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, "two", value)

	require.NoError(t, kv.Delete(ctx, "session"))
	require.NoError(t, kv.Delete(ctx, "session"))
	_, err = kv.Get(ctx, "session")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore(t *testing.T) {
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer store.Close()

	exerciseKV(t, store)
}

func TestSQLiteStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "profilePic_u1", "file-1"))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get(ctx, "profilePic_u1")
	require.NoError(t, err)
	assert.Equal(t, "file-1", value)
}

func TestMemory(t *testing.T) {
	exerciseKV(t, NewMemory())
}
