package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bryan-buckman/mudwatch/internal/model"
)

// sqlStore holds the queries shared by both backends. Queries are written
// with ? placeholders and rebound for PostgreSQL.
type sqlStore struct {
	conn     *sql.DB
	dollarPH bool
}

// rebind converts ? placeholders to $n when needed.
func (s *sqlStore) rebind(query string) string {
	if !s.dollarPH {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.conn.ExecContext(ctx, s.rebind(query), args...)
}

func (s *sqlStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, s.rebind(query), args...)
}

func (s *sqlStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.conn.QueryRowContext(ctx, s.rebind(query), args...)
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

// window appends the optional [from, to] filter on column.
func window(where []string, args []any, column string, from, to time.Time) ([]string, []any) {
	if !from.IsZero() {
		where = append(where, column+" >= ?")
		args = append(args, from.Unix())
	}
	if !to.IsZero() {
		where = append(where, column+" <= ?")
		args = append(args, to.Unix())
	}
	return where, args
}

func whereClause(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(where, " AND ")
}

// --- Stat Write Methods ---

func (s *sqlStore) recordAlert(ctx context.Context, typ int, adventurer, doer, gameTime string, at time.Time) error {
	_, err := s.exec(ctx,
		"INSERT INTO alerts (type, adventurer, doer, game_time, ts) VALUES (?, ?, ?, ?, ?)",
		typ, adventurer, doer, gameTime, unix(at))
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// RecordDeath appends a death to the alert log.
func (s *sqlStore) RecordDeath(ctx context.Context, d model.Death) error {
	return s.recordAlert(ctx, AlertTypeDeath, d.Adventurer, d.Killer, d.GameTime, d.At)
}

// RecordRaise appends a raise to the alert log.
func (s *sqlStore) RecordRaise(ctx context.Context, r model.Raise) error {
	return s.recordAlert(ctx, AlertTypeRaise, r.Adventurer, r.Raiser, r.GameTime, r.At)
}

// RecordSale appends a finished sale.
func (s *sqlStore) RecordSale(ctx context.Context, sale model.Sale) error {
	_, err := s.exec(ctx,
		"INSERT INTO sales (seller, item, price, ts) VALUES (?, ?, ?, ?)",
		sale.Seller, sale.Item, sale.Price, unix(sale.At))
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

// OpenGroupSession closes any open session of leader and starts a new one.
func (s *sqlStore) OpenGroupSession(ctx context.Context, leader, continent string, size int, at time.Time) (int64, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		s.rebind("UPDATE group_sessions SET finished = ? WHERE leader = ? AND finished = 0"),
		unix(at), leader); err != nil {
		return 0, fmt.Errorf("close previous session: %w", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		s.rebind("INSERT INTO group_sessions (leader, continent, size, started, finished) VALUES (?, ?, ?, ?, 0) RETURNING id"),
		leader, continent, size, unix(at)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// CloseGroupSession finishes the open session of leader. It returns
// ErrNotFound when the leader has none.
func (s *sqlStore) CloseGroupSession(ctx context.Context, leader string, at time.Time) error {
	res, err := s.exec(ctx,
		"UPDATE group_sessions SET finished = ? WHERE leader = ? AND finished = 0",
		unix(at), leader)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("open session of %s: %w", leader, ErrNotFound)
	}
	return nil
}

// ActiveGroupSession returns the most recently started open session.
func (s *sqlStore) ActiveGroupSession(ctx context.Context) (model.GroupSession, bool, error) {
	var (
		gs      model.GroupSession
		started int64
	)
	err := s.queryRow(ctx,
		"SELECT id, leader, continent, size, started FROM group_sessions WHERE finished = 0 ORDER BY started DESC, id DESC LIMIT 1",
	).Scan(&gs.ID, &gs.Leader, &gs.Continent, &gs.Size, &started)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GroupSession{}, false, nil
	}
	if err != nil {
		return model.GroupSession{}, false, fmt.Errorf("active session: %w", err)
	}
	gs.StartedAt = fromUnix(started)
	return gs, true, nil
}

// RecordEpicEvent appends to the epic history.
func (s *sqlStore) RecordEpicEvent(ctx context.Context, e model.EpicEvent) error {
	var groupID sql.NullInt64
	if e.GroupSessionID != nil {
		groupID = sql.NullInt64{Int64: *e.GroupSessionID, Valid: true}
	}
	_, err := s.exec(ctx,
		"INSERT INTO epic_events (name, type, group_id, ts) VALUES (?, ?, ?, ?)",
		e.Epic, int(e.Kind), groupID, unix(e.At))
	if err != nil {
		return fmt.Errorf("insert epic event: %w", err)
	}
	return nil
}

// --- Stat Read Methods ---

// QueryStats runs a grouped count, ordered by count (or sum) descending and
// then by key.
func (s *sqlStore) QueryStats(ctx context.Context, q StatQuery) ([]StatRow, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	sum := "0"
	if q.Sum != "" {
		sum = "COALESCE(SUM(" + q.Sum + "), 0)"
	}

	var (
		where []string
		args  []any
	)
	if q.AlertType != nil {
		where = append(where, "type = ?")
		args = append(args, *q.AlertType)
	}
	if q.MatchColumn != "" {
		where = append(where, "LOWER("+q.MatchColumn+") = LOWER(CAST(? AS TEXT))")
		args = append(args, q.MatchValue)
	}
	where, args = window(where, args, "ts", q.From, q.To)

	order := "c DESC, k ASC"
	if q.OrderBySum {
		order = "s DESC, c DESC, k ASC"
	}

	stmt := "SELECT " + q.GroupBy + " AS k, COUNT(*) AS c, " + sum + " AS s FROM " + q.Table +
		whereClause(where) + " GROUP BY " + q.GroupBy + " ORDER BY " + order

	rows, err := s.query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var out []StatRow
	for rows.Next() {
		var r StatRow
		if err := rows.Scan(&r.Key, &r.Count, &r.Sum); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var timeColumn = map[string]string{
	TableAlerts: "ts",
	TableSales:  "ts",
	TableGroups: "started",
	TableEpics:  "ts",
}

// Bounds returns the first and last timestamp of table within the window.
// ok is false when the window holds no rows.
func (s *sqlStore) Bounds(ctx context.Context, table string, from, to time.Time) (time.Time, time.Time, bool, error) {
	col, known := timeColumn[table]
	if !known {
		return time.Time{}, time.Time{}, false, fmt.Errorf("unknown stat table %q", table)
	}

	where, args := window(nil, nil, col, from, to)
	var first, last sql.NullInt64
	err := s.queryRow(ctx,
		"SELECT MIN("+col+"), MAX("+col+") FROM "+table+whereClause(where), args...,
	).Scan(&first, &last)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("bounds of %s: %w", table, err)
	}
	if !first.Valid || !last.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	return fromUnix(first.Int64), fromUnix(last.Int64), true, nil
}

// AlertLog returns the alerts in the window in insertion order.
func (s *sqlStore) AlertLog(ctx context.Context, from, to time.Time) ([]AlertRecord, error) {
	where, args := window(nil, nil, "ts", from, to)
	rows, err := s.query(ctx,
		"SELECT type, adventurer, doer, game_time, ts FROM alerts"+whereClause(where)+" ORDER BY ts, id", args...)
	if err != nil {
		return nil, fmt.Errorf("alert log: %w", err)
	}
	defer rows.Close()

	var out []AlertRecord
	for rows.Next() {
		var (
			r  AlertRecord
			ts int64
		)
		if err := rows.Scan(&r.Type, &r.Adventurer, &r.Doer, &r.GameTime, &ts); err != nil {
			return nil, err
		}
		r.At = fromUnix(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GroupSessions returns the sessions started within the window in
// insertion order.
func (s *sqlStore) GroupSessions(ctx context.Context, from, to time.Time) ([]model.GroupSession, error) {
	where, args := window(nil, nil, "started", from, to)
	rows, err := s.query(ctx,
		"SELECT id, leader, continent, size, started, finished FROM group_sessions"+whereClause(where)+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("group sessions: %w", err)
	}
	defer rows.Close()

	var out []model.GroupSession
	for rows.Next() {
		var (
			gs                model.GroupSession
			started, finished int64
		)
		if err := rows.Scan(&gs.ID, &gs.Leader, &gs.Continent, &gs.Size, &started, &finished); err != nil {
			return nil, err
		}
		gs.StartedAt = fromUnix(started)
		gs.FinishedAt = fromUnix(finished)
		out = append(out, gs)
	}
	return out, rows.Err()
}

// EpicHistory returns the events of one epic with the leader of the
// attributed group, oldest first.
func (s *sqlStore) EpicHistory(ctx context.Context, name string) ([]model.EpicEvent, error) {
	rows, err := s.query(ctx, `
		SELECT e.name, e.type, e.group_id, g.leader, e.ts
		FROM epic_events e
		LEFT JOIN group_sessions g ON g.id = e.group_id
		WHERE e.name = ?
		ORDER BY e.ts, e.id`, name)
	if err != nil {
		return nil, fmt.Errorf("epic history: %w", err)
	}
	defer rows.Close()

	var out []model.EpicEvent
	for rows.Next() {
		var (
			e       model.EpicEvent
			kind    int
			groupID sql.NullInt64
			leader  sql.NullString
			ts      int64
		)
		if err := rows.Scan(&e.Epic, &kind, &groupID, &leader, &ts); err != nil {
			return nil, err
		}
		e.Kind = model.EpicEventKind(kind)
		if groupID.Valid {
			id := groupID.Int64
			e.GroupSessionID = &id
		}
		e.Leader = leader.String
		e.At = fromUnix(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// EpicKills counts the kills in the window, split by whether a group was
// attributed.
func (s *sqlStore) EpicKills(ctx context.Context, from, to time.Time) (int64, int64, error) {
	where, args := window([]string{"type = ?"}, []any{int(model.EpicKilled)}, "ts", from, to)
	var byGroup, solo sql.NullInt64
	err := s.queryRow(ctx,
		"SELECT SUM(CASE WHEN group_id IS NOT NULL THEN 1 ELSE 0 END), SUM(CASE WHEN group_id IS NULL THEN 1 ELSE 0 END) FROM epic_events"+
			whereClause(where), args...,
	).Scan(&byGroup, &solo)
	if err != nil {
		return 0, 0, fmt.Errorf("epic kills: %w", err)
	}
	return byGroup.Int64, solo.Int64, nil
}

func (s *sqlStore) names(ctx context.Context, stmt string, args ...any) ([]string, error) {
	rows, err := s.query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// EpicNames returns every epic seen so far.
func (s *sqlStore) EpicNames(ctx context.Context) ([]string, error) {
	return s.names(ctx, "SELECT DISTINCT name FROM epic_events ORDER BY name")
}

// KillerNames returns every killer in the death log.
func (s *sqlStore) KillerNames(ctx context.Context) ([]string, error) {
	return s.names(ctx, "SELECT DISTINCT doer FROM alerts WHERE type = ? ORDER BY doer", AlertTypeDeath)
}

// --- Snapshot Methods ---

// LoadSnapshot returns the stored document of kind.
func (s *sqlStore) LoadSnapshot(ctx context.Context, kind string) ([]byte, bool, error) {
	var data string
	err := s.queryRow(ctx, "SELECT data FROM snapshots WHERE kind = ?", kind).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot %s: %w", kind, err)
	}
	return []byte(data), true, nil
}

// SaveSnapshot replaces the stored document of kind.
func (s *sqlStore) SaveSnapshot(ctx context.Context, kind string, data []byte) error {
	_, err := s.exec(ctx, `
		INSERT INTO snapshots (kind, data, updated) VALUES (?, ?, ?)
		ON CONFLICT (kind) DO UPDATE SET data = excluded.data, updated = excluded.updated`,
		kind, string(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", kind, err)
	}
	return nil
}
