package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/mudwatch/internal/database"
	"github.com/bryan-buckman/mudwatch/internal/model"
)

func roundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	var groups model.GroupSnapshot
	found, err := store.Load(ctx, model.KindGroups, &groups)
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, groups)

	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	want := model.GroupSnapshot{
		"Alice": {Leader: "Alice", OriginalLeader: "Alice", Name: "Hunt", Continent: "Mainland",
			Members: []string{"Alice", "Bob", "Cid"}, StartedAt: started, MovedToContinentAt: started},
	}
	require.NoError(t, store.Save(ctx, model.KindGroups, want))

	var got model.GroupSnapshot
	found, err = store.Load(ctx, model.KindGroups, &got)
	require.NoError(t, err)
	require.True(t, found)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	roundTrip(t, store)

	_, err = os.Stat(filepath.Join(dir, "status.groups.json"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileStoreCorrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store.Path(model.KindForum), []byte("{nope"), 0o644))

	var posts []model.Post
	_, err = store.Load(context.Background(), model.KindForum, &posts)
	require.Error(t, err)
}

func TestDBStore(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	roundTrip(t, NewDBStore(db))
}
