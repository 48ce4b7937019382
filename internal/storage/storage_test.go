package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stores returns every Store implementation, each with a fresh area
func stores(t *testing.T) map[string]Store {
	t.Helper()

	db, err := OpenDB(filepath.Join(t.TempDir(), "kv.sqlite3"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDB(db) })

	return map[string]Store{
		"memory": NewMemory(AreaLocal),
		"sqlite": NewSQLite(db, AreaLocal),
	}
}

func TestStoreGetSetRemove(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.Empty(t, got)

			require.NoError(t, s.Set(ctx, map[string][]byte{
				"remote_config":    []byte(`{"version":"1"}`),
				"config_timestamp": []byte(`1000`),
			}))

			got, err = s.Get(ctx, "remote_config", "config_timestamp", "config_version")
			require.NoError(t, err)
			assert.Len(t, got, 2)
			assert.JSONEq(t, `{"version":"1"}`, string(got["remote_config"]))

			// Overwrite
			require.NoError(t, s.Set(ctx, map[string][]byte{"config_timestamp": []byte(`2000`)}))
			got, err = s.Get(ctx, "config_timestamp")
			require.NoError(t, err)
			assert.Equal(t, "2000", string(got["config_timestamp"]))

			require.NoError(t, s.Remove(ctx, "remote_config", "config_timestamp", "never_set"))
			got, err = s.Get(ctx, "remote_config", "config_timestamp")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestStoreNotifiesInWriteOrder(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var seen []Change
			unsubscribe := s.OnChanged(func(c Change) { seen = append(seen, c) })

			require.NoError(t, s.Set(ctx, map[string][]byte{"settings": []byte(`{"a.x":true}`)}))
			require.NoError(t, s.Set(ctx, map[string][]byte{"settings": []byte(`{"a.x":false}`)}))
			require.NoError(t, s.Remove(ctx, "settings"))
			require.NoError(t, s.Remove(ctx, "settings")) // nothing left, no event

			require.Len(t, seen, 3)
			assert.Nil(t, seen[0].Old)
			assert.Equal(t, `{"a.x":true}`, string(seen[0].New))
			assert.Equal(t, `{"a.x":true}`, string(seen[1].Old))
			assert.Equal(t, `{"a.x":false}`, string(seen[1].New))
			assert.Nil(t, seen[2].New)
			assert.Equal(t, AreaLocal, seen[2].Area)

			unsubscribe()
			require.NoError(t, s.Set(ctx, map[string][]byte{"settings": []byte(`{}`)}))
			assert.Len(t, seen, 3)
		})
	}
}

func TestSQLiteAreasAreIsolated(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDB(filepath.Join(t.TempDir(), "kv.sqlite3"), nil)
	require.NoError(t, err)
	defer CloseDB(db)

	local := NewSQLite(db, AreaLocal)
	synced := NewSQLite(db, AreaSync)

	require.NoError(t, local.Set(ctx, map[string][]byte{"settings": []byte(`1`)}))
	got, err := synced.Get(ctx, "settings")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryGetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(AreaSync)
	require.NoError(t, m.Set(ctx, map[string][]byte{"k": []byte("abc")}))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	got["k"][0] = 'z'

	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again["k"]))
}
