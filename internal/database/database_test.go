package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/mudwatch/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestRebind(t *testing.T) {
	s := &sqlStore{dollarPH: true}
	require.Equal(t, "a = $1 AND b = $2", s.rebind("a = ? AND b = ?"))

	s.dollarPH = false
	require.Equal(t, "a = ?", s.rebind("a = ?"))
}

func TestGroupSessions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, ok, err := db.ActiveGroupSession(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	first, err := db.OpenGroupSession(ctx, "Alice", "Mainland", 6, base)
	require.NoError(t, err)

	// Reopening closes the previous session of the same leader.
	second, err := db.OpenGroupSession(ctx, "Alice", "Islands", 6, base.Add(time.Hour))
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = db.OpenGroupSession(ctx, "Bob", "Mainland", 4, base.Add(2*time.Hour))
	require.NoError(t, err)

	active, ok, err := db.ActiveGroupSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Bob", active.Leader)

	require.NoError(t, db.CloseGroupSession(ctx, "Bob", base.Add(3*time.Hour)))
	err = db.CloseGroupSession(ctx, "Bob", base.Add(3*time.Hour))
	require.True(t, errors.Is(err, ErrNotFound))

	sessions, err := db.GroupSessions(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	require.Equal(t, base.Add(time.Hour), sessions[0].FinishedAt)
	require.True(t, sessions[1].Ongoing())
	require.Equal(t, "Islands", sessions[1].Continent)
	require.Equal(t, base.Add(3*time.Hour), sessions[2].FinishedAt)

	active, ok, err = db.ActiveGroupSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, second, active.ID)
}

func TestQueryStats(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	require.NoError(t, db.RecordDeath(ctx, model.Death{Adventurer: "Ann", Killer: "a troll", At: base}))
	require.NoError(t, db.RecordDeath(ctx, model.Death{Adventurer: "Ann", Killer: "a dragon", At: base.Add(time.Minute)}))
	require.NoError(t, db.RecordDeath(ctx, model.Death{Adventurer: "Bob", Killer: "a troll", At: base.Add(2 * time.Minute)}))
	require.NoError(t, db.RecordRaise(ctx, model.Raise{Adventurer: "Ann", Raiser: "Cid", At: base.Add(3 * time.Minute)}))

	rows, err := db.QueryStats(ctx, StatQuery{Table: TableAlerts, GroupBy: "adventurer", AlertType: IntPtr(AlertTypeDeath)})
	require.NoError(t, err)
	require.Equal(t, []StatRow{{Key: "Ann", Count: 2}, {Key: "Bob", Count: 1}}, rows)

	rows, err = db.QueryStats(ctx, StatQuery{
		Table: TableAlerts, GroupBy: "adventurer", AlertType: IntPtr(AlertTypeDeath),
		MatchColumn: "doer", MatchValue: "A TROLL",
	})
	require.NoError(t, err)
	require.Equal(t, []StatRow{{Key: "Ann", Count: 1}, {Key: "Bob", Count: 1}}, rows)

	rows, err = db.QueryStats(ctx, StatQuery{Table: TableAlerts, GroupBy: "adventurer", From: base.Add(90 * time.Second)})
	require.NoError(t, err)
	require.Equal(t, []StatRow{{Key: "Ann", Count: 1}, {Key: "Bob", Count: 1}}, rows)

	_, err = db.QueryStats(ctx, StatQuery{Table: TableAlerts, GroupBy: "id; DROP TABLE alerts"})
	require.Error(t, err)

	killers, err := db.KillerNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a dragon", "a troll"}, killers)

	log, err := db.AlertLog(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, log, 4)
	require.Equal(t, AlertTypeRaise, log[3].Type)
	require.Equal(t, "Cid", log[3].Doer)
}

func TestSalesAndBounds(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, _, ok, err := db.Bounds(ctx, TableSales, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, db.RecordSale(ctx, model.Sale{Seller: "Ann", Item: "sword", Price: 100, At: base}))
	require.NoError(t, db.RecordSale(ctx, model.Sale{Seller: "Ann", Item: "shield", Price: 50, At: base.Add(time.Hour)}))
	require.NoError(t, db.RecordSale(ctx, model.Sale{Seller: "Bob", Item: "sword", Price: 500, At: base.Add(2 * time.Hour)}))

	rows, err := db.QueryStats(ctx, StatQuery{Table: TableSales, GroupBy: "seller", Sum: "price", OrderBySum: true})
	require.NoError(t, err)
	require.Equal(t, []StatRow{{Key: "Bob", Count: 1, Sum: 500}, {Key: "Ann", Count: 2, Sum: 150}}, rows)

	first, last, ok, err := db.Bounds(ctx, TableSales, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, base, first)
	require.Equal(t, base.Add(2*time.Hour), last)

	_, _, _, err = db.Bounds(ctx, "nope", time.Time{}, time.Time{})
	require.Error(t, err)
}

func TestEpicHistory(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	gid, err := db.OpenGroupSession(ctx, "Carol", "Mainland", 8, base)
	require.NoError(t, err)

	require.NoError(t, db.RecordEpicEvent(ctx, model.EpicEvent{Epic: "Hydra", Kind: model.EpicAppeared, At: base}))
	require.NoError(t, db.RecordEpicEvent(ctx, model.EpicEvent{Epic: "Hydra", Kind: model.EpicKilled, GroupSessionID: &gid, At: base.Add(time.Hour)}))
	require.NoError(t, db.RecordEpicEvent(ctx, model.EpicEvent{Epic: "Lich", Kind: model.EpicKilled, At: base.Add(time.Hour)}))

	history, err := db.EpicHistory(ctx, "Hydra")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Nil(t, history[0].GroupSessionID)
	require.Equal(t, model.EpicKilled, history[1].Kind)
	require.Equal(t, gid, *history[1].GroupSessionID)
	require.Equal(t, "Carol", history[1].Leader)

	names, err := db.EpicNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Hydra", "Lich"}, names)

	byGroup, solo, err := db.EpicKills(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, int64(1), byGroup)
	require.Equal(t, int64(1), solo)
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, ok, err := db.LoadSnapshot(ctx, "groups")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, db.SaveSnapshot(ctx, "groups", []byte(`{"a":1}`)))
	require.NoError(t, db.SaveSnapshot(ctx, "groups", []byte(`{"a":2}`)))

	data, ok, err := db.LoadSnapshot(ctx, "groups")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"a":2}`, string(data))
}
