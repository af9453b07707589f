package kv

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-wellness/backend/internal/config"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	sqliteStore, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}

	if addr := os.Getenv("REDIS_TEST_ADDR"); addr != "" {
		redisStore, err := NewRedisStore(ctx, RedisOptions{Addr: addr, Namespace: "wellness-test:" + t.Name() + ":"})
		require.NoError(t, err)
		stores["redis"] = redisStore
	}

	t.Cleanup(func() {
		for _, store := range stores {
			_ = store.Close()
		}
	})
	return stores
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Set(ctx, "chatSessions", []byte(`[]`)))
			require.NoError(t, store.Set(ctx, "chatHistory_a", []byte(`[1]`)))
			require.NoError(t, store.Set(ctx, "chatHistory_b", []byte(`[2]`)))
			require.NoError(t, store.Set(ctx, "chatHistory_b", []byte(`[3]`)))

			value, err := store.Get(ctx, "chatHistory_b")
			require.NoError(t, err)
			assert.Equal(t, `[3]`, string(value))

			keys, err := store.Keys(ctx, "chatHistory_")
			require.NoError(t, err)
			sort.Strings(keys)
			assert.Equal(t, []string{"chatHistory_a", "chatHistory_b"}, keys)

			require.NoError(t, store.Remove(ctx, "chatHistory_a"))
			require.NoError(t, store.Remove(ctx, "chatHistory_a"), "removing a missing key is not an error")
			_, err = store.Get(ctx, "chatHistory_a")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wellness.db")

	first, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "userProfile", []byte(`{"name":"Alex"}`)))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Get(ctx, "userProfile")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Alex"}`, string(got))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Driver: "etcd"})
	assert.Error(t, err)

	store, err := Open(context.Background(), config.StorageConfig{Driver: config.StorageMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
}

func TestGlobEscape(t *testing.T) {
	assert.Equal(t, `a\*b\?\[c\]`, globEscape("a*b?[c]"))
}
