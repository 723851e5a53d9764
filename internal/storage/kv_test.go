package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kvDrivers(t *testing.T) map[string]KV {
	t.Helper()

	fileKV, err := NewFileKV(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)

	sqliteKV, err := NewSQLiteKV(filepath.Join(t.TempDir(), "tixly.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteKV.Close() })

	return map[string]KV{
		"memory": NewMemory(),
		"file":   fileKV,
		"sqlite": sqliteKV,
	}
}

func TestKV_Contract(t *testing.T) {
	ctx := context.Background()

	for name, kv := range kvDrivers(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("missing key is absent", func(t *testing.T) {
				v, err := kv.Get(ctx, "missing")
				require.NoError(t, err)
				assert.Nil(t, v)
			})

			t.Run("put then get", func(t *testing.T) {
				require.NoError(t, kv.Put(ctx, "k1", []byte(`{"a":1}`)))
				v, err := kv.Get(ctx, "k1")
				require.NoError(t, err)
				assert.Equal(t, []byte(`{"a":1}`), v)
			})

			t.Run("put overwrites", func(t *testing.T) {
				require.NoError(t, kv.Put(ctx, "k2", []byte("one")))
				require.NoError(t, kv.Put(ctx, "k2", []byte("two")))
				v, err := kv.Get(ctx, "k2")
				require.NoError(t, err)
				assert.Equal(t, []byte("two"), v)
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				require.NoError(t, kv.Put(ctx, "k3", []byte("x")))
				require.NoError(t, kv.Delete(ctx, "k3"))
				require.NoError(t, kv.Delete(ctx, "k3"))

				v, err := kv.Get(ctx, "k3")
				require.NoError(t, err)
				assert.Nil(t, v)
			})

			t.Run("rejects bad keys", func(t *testing.T) {
				assert.Error(t, kv.Put(ctx, "../escape", []byte("x")))
				_, err := kv.Get(ctx, "")
				assert.Error(t, err)
			})
		})
	}
}

func TestFileKV_Permissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	kv, err := NewFileKV(dir)
	require.NoError(t, err)

	require.NoError(t, kv.Put(context.Background(), WalletKey, []byte("secret")))

	info, err := os.Stat(filepath.Join(dir, WalletKey+".json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileKV_SurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	ctx := context.Background()

	kv, err := NewFileKV(dir)
	require.NoError(t, err)
	require.NoError(t, kv.Put(ctx, ProfileKey, []byte("p")))

	reopened, err := NewFileKV(dir)
	require.NoError(t, err)
	v, err := reopened.Get(ctx, ProfileKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("p"), v)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	kv, err := Open(ctx, Options{Driver: DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, kv)

	kv, err = Open(ctx, Options{Driver: DriverFile, Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileKV{}, kv)

	_, err = Open(ctx, Options{Driver: DriverFile})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Driver: DriverPostgres})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Driver: "redis"})
	assert.Error(t, err)
}
