// ABOUTME: Contract tests shared by every Store backend
// ABOUTME: Covers round-trip, clear idempotence and empty-store behaviour

package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns a fresh instance of every Store implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	sqliteStore, err := NewSQLiteStore(filepath.Join(dir, "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Store{
		"file":   NewFileStore(filepath.Join(dir, "sessions.json")),
		"sqlite": sqliteStore,
		"memory": NewMemoryStore(nil),
	}
}

func TestStore_LoadEmpty(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			record, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, record)
		})
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	records := []Record{
		{},
		{"12345": "abc"},
		{"12345": "abc", "@alice:example.org": "f3c1-77", "67890": ""},
	}

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, want := range records {
				require.NoError(t, s.Save(ctx, want))

				got, err := s.Load(ctx)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestStore_SaveReplacesWholeMapping(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, Record{"a": "1", "b": "2"}))
			require.NoError(t, s.Save(ctx, Record{"c": "3"}))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, Record{"c": "3"}, got)
		})
	}
}

func TestStore_ClearIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, Record{"u1": "t1", "u2": "t2"}))

			require.NoError(t, s.Clear(ctx, "u1"))
			once, err := s.Load(ctx)
			require.NoError(t, err)

			require.NoError(t, s.Clear(ctx, "u1"))
			twice, err := s.Load(ctx)
			require.NoError(t, err)

			assert.Equal(t, Record{"u2": "t2"}, once)
			assert.Equal(t, once, twice)
		})
	}
}

func TestStore_ClearMissingUser(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Clear(ctx, "nobody"))

			record, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, record)
		})
	}
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(Record{"u": "t"})

	record, err := s.Load(ctx)
	require.NoError(t, err)
	record["u"] = "changed"

	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t", again["u"])
}

func TestMemoryStore_ClearWithoutEntryDoesNotSave(t *testing.T) {
	s := NewMemoryStore(nil)

	require.NoError(t, s.Clear(context.Background(), "nobody"))

	assert.Equal(t, 0, s.Saves())
}
