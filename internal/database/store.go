// Package database provides storage backends for the stats log and the
// persisted snapshots.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bryan-buckman/mudwatch/internal/model"
)

// ErrNotFound is returned when a write targets a row that does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for database operations.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// Stat writes
	RecordDeath(ctx context.Context, d model.Death) error
	RecordRaise(ctx context.Context, r model.Raise) error
	RecordSale(ctx context.Context, s model.Sale) error
	OpenGroupSession(ctx context.Context, leader, continent string, size int, at time.Time) (int64, error)
	CloseGroupSession(ctx context.Context, leader string, at time.Time) error
	ActiveGroupSession(ctx context.Context) (model.GroupSession, bool, error)
	RecordEpicEvent(ctx context.Context, e model.EpicEvent) error

	// Stat reads
	QueryStats(ctx context.Context, q StatQuery) ([]StatRow, error)
	Bounds(ctx context.Context, table string, from, to time.Time) (first, last time.Time, ok bool, err error)
	AlertLog(ctx context.Context, from, to time.Time) ([]AlertRecord, error)
	GroupSessions(ctx context.Context, from, to time.Time) ([]model.GroupSession, error)
	EpicHistory(ctx context.Context, name string) ([]model.EpicEvent, error)
	EpicNames(ctx context.Context) ([]string, error)
	EpicKills(ctx context.Context, from, to time.Time) (byGroup, solo int64, err error)
	KillerNames(ctx context.Context) ([]string, error)

	// Snapshot operations
	LoadSnapshot(ctx context.Context, kind string) ([]byte, bool, error)
	SaveSnapshot(ctx context.Context, kind string, data []byte) error
}

// Stat tables.
const (
	TableAlerts = "alerts"
	TableSales  = "sales"
	TableGroups = "group_sessions"
	TableEpics  = "epic_events"
)

// Alert row types as stored in alerts.type.
const (
	AlertTypeDeath = 0
	AlertTypeRaise = 1
)

// groupable lists the columns QueryStats may group, filter or sum by.
var groupable = map[string]map[string]bool{
	TableAlerts: {"adventurer": true, "doer": true},
	TableSales:  {"seller": true, "item": true, "price": true},
}

// StatQuery is a grouped count over one stat table.
type StatQuery struct {
	Table   string
	GroupBy string
	// AlertType restricts alerts rows to one type.
	AlertType *int
	// MatchColumn/MatchValue add a case-insensitive equality filter.
	MatchColumn string
	MatchValue  string
	// Sum adds SUM(column) to every row.
	Sum        string
	OrderBySum bool
	From, To   time.Time
}

// StatRow is one group of a StatQuery.
type StatRow struct {
	Key   string
	Count int64
	Sum   int64
}

// AlertRecord is a raw row of the alerts table.
type AlertRecord struct {
	Type       int
	Adventurer string
	Doer       string
	GameTime   string
	At         time.Time
}

// Validate checks the query against the column whitelist.
func (q StatQuery) Validate() error {
	cols, ok := groupable[q.Table]
	if !ok {
		return fmt.Errorf("unknown stat table %q", q.Table)
	}
	if !cols[q.GroupBy] {
		return fmt.Errorf("cannot group %s by %q", q.Table, q.GroupBy)
	}
	if q.MatchColumn != "" && !cols[q.MatchColumn] {
		return fmt.Errorf("cannot filter %s by %q", q.Table, q.MatchColumn)
	}
	if q.Sum != "" && !cols[q.Sum] {
		return fmt.Errorf("cannot sum %s by %q", q.Table, q.Sum)
	}
	if q.AlertType != nil && q.Table != TableAlerts {
		return fmt.Errorf("alert type filter on %s", q.Table)
	}
	return nil
}

// IntPtr is a helper for StatQuery.AlertType.
func IntPtr(v int) *int { return &v }

// Open connects to the backend named by driver ("sqlite" or "postgres").
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return New(dsn)
	case "postgres", "postgresql":
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
