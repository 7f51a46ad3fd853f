package database

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/agridoc/agridoc/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testStores(t *testing.T) map[string]KV {
	t.Helper()

	sqliteDB, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	fileStore, err := NewFileStore(filepath.Join(t.TempDir(), "kv"))
	require.NoError(t, err)

	stores := map[string]KV{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"sqlite": sqliteDB,
	}
	t.Cleanup(func() {
		for _, kv := range stores {
			kv.Close()
		}
	})
	return stores
}

func TestKV_GetMissing(t *testing.T) {
	for name, kv := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get(context.Background(), "agri_history")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestKV_SetGetReplace(t *testing.T) {
	ctx := context.Background()
	for name, kv := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, kv.Set(ctx, "agri_history", []byte(`{"version":1,"items":[]}`)))
			got, err := kv.Get(ctx, "agri_history")
			require.NoError(t, err)
			assert.Equal(t, `{"version":1,"items":[]}`, string(got))

			require.NoError(t, kv.Set(ctx, "agri_history", []byte(`[]`)))
			got, err = kv.Get(ctx, "agri_history")
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(got))
		})
	}
}

func TestKV_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	for name, kv := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, kv.Set(ctx, "agri_history", []byte("a")))
			require.NoError(t, kv.Set(ctx, "agri_history.corrupt", []byte("b")))

			got, err := kv.Get(ctx, "agri_history")
			require.NoError(t, err)
			assert.Equal(t, "a", string(got))
		})
	}
}

func TestKV_Delete(t *testing.T) {
	ctx := context.Background()
	for name, kv := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, kv.Set(ctx, "k", []byte("v")))
			require.NoError(t, kv.Delete(ctx, "k"))
			_, err := kv.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, kv.Delete(ctx, "never-set"))
		})
	}
}

func TestKV_ConcurrentSet(t *testing.T) {
	ctx := context.Background()
	for name, kv := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, kv.Set(ctx, "k", []byte("value")))
				}()
			}
			wg.Wait()

			got, err := kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "value", string(got))
		})
	}
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()

	value := []byte("tomato")
	require.NoError(t, kv.Set(ctx, "k", value))
	value[0] = 'p'

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "tomato", string(got))

	got[0] = 'p'
	again, _ := kv.Get(ctx, "k")
	assert.Equal(t, "tomato", string(again))
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, kv.Set(context.Background(), "agri_history", []byte("[]")))
	require.NoError(t, kv.Set(context.Background(), "agri_history", []byte("[1]")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "agri_history.json", entries[0].Name())
}

func TestSQLiteDB_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agridoc.db")
	ctx := context.Background()

	db, err := NewSQLiteDB(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Set(ctx, "agri_history", []byte("[]")))
	require.NoError(t, db.Close())

	db, err = NewSQLiteDB(path, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	got, err := db.Get(ctx, "agri_history")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	kv, err := Open(ctx, config.StorageConfig{Type: "memory"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, kv)

	kv, err = Open(ctx, config.StorageConfig{Type: "file", Path: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, kv)

	_, err = Open(ctx, config.StorageConfig{Type: "redis"}, zap.NewNop())
	assert.Error(t, err)
}
