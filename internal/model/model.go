// Package model defines shared data structures.
package model

import (
	"strings"
	"time"
)

// Snapshot kinds. Each tracked domain persists exactly one snapshot.
const (
	KindAuctions = "auctions"
	KindGroups   = "groups"
	KindEpics    = "epics"
	KindForum    = "forum"
	KindAlerts   = "alerts"
	KindJournal  = "journal"
)

// NobodyBidder is what the auction page shows when an item has no bids.
const NobodyBidder = "Nobody"

// ListedItem is a single auction row.
type ListedItem struct {
	Seller           string `json:"seller"`
	Name             string `json:"name"`
	Bidder           string `json:"bidder"`
	Price            string `json:"price"`
	Buyout           string `json:"buyout"`
	Ends             string `json:"ends"`
	WarnedEndingSoon bool   `json:"warnedEndingSoon"`
}

// HasBidder reports whether someone bid on the item.
func (i ListedItem) HasBidder() bool {
	return i.Bidder != "" && !strings.EqualFold(i.Bidder, NobodyBidder)
}

// AuctionSnapshot maps a seller to their items in page order.
type AuctionSnapshot map[string][]ListedItem

// Clone returns a structurally independent copy.
func (s AuctionSnapshot) Clone() AuctionSnapshot {
	out := make(AuctionSnapshot, len(s))
	for seller, items := range s {
		out[seller] = append([]ListedItem(nil), items...)
	}
	return out
}

// Group is an adventuring party as seen on the parties page.
type Group struct {
	Leader             string    `json:"leader"`
	OriginalLeader     string    `json:"originalLeader"`
	Name               string    `json:"name"`
	Continent          string    `json:"continent"`
	Members            []string  `json:"members"`
	StartedAt          time.Time `json:"startedAt"`
	MovedToContinentAt time.Time `json:"movedToContinentAt"`
}

// Size returns the number of members.
func (g Group) Size() int {
	return len(g.Members)
}

// Clone returns a copy that shares no memory with g.
func (g Group) Clone() Group {
	g.Members = append([]string(nil), g.Members...)
	return g
}

// GroupSnapshot maps the current leader to the group.
type GroupSnapshot map[string]Group

// Epic is a boss spawn shown on the map server.
type Epic struct {
	Name      string    `json:"name"`
	Area      string    `json:"area"`
	Continent string    `json:"continent"`
	SpawnedAt time.Time `json:"spawnedAt"`
}

// Post is a row of the "Last Forum Posts" table.
type Post struct {
	Thread     string `json:"thread"`
	ThreadLink string `json:"threadLink"`
	Poster     string `json:"poster"`
	PosterLink string `json:"posterLink"`
}

// AlertType classifies live blog rows.
type AlertType int

const (
	AlertDeath AlertType = iota
	AlertRaise
	AlertShock
)

func (t AlertType) String() string {
	switch t {
	case AlertDeath:
		return "death"
	case AlertRaise:
		return "raise"
	case AlertShock:
		return "shock"
	default:
		return "unknown"
	}
}

// Alert is a parsed live blog row. Doer is the killer, raiser or shocker.
type Alert struct {
	Type       AlertType `json:"type"`
	Adventurer string    `json:"adventurer"`
	Doer       string    `json:"doer"`
	Time       string    `json:"time"`
}

// --- Stat events ---

// Death is recorded once per reported death alert.
type Death struct {
	Adventurer string
	Killer     string
	GameTime   string
	At         time.Time
}

// Raise is recorded once per reported raise alert.
type Raise struct {
	Adventurer string
	Raiser     string
	GameTime   string
	At         time.Time
}

// Sale is recorded when an auction ends with a buyer.
type Sale struct {
	Seller string
	Item   string
	Price  int64
	At     time.Time
}

// GroupSession is one raw leadership record. FinishedAt is zero while ongoing.
type GroupSession struct {
	ID         int64
	Leader     string
	Continent  string
	Size       int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Ongoing reports whether the session is still open.
func (s GroupSession) Ongoing() bool {
	return s.FinishedAt.IsZero()
}

// EpicEventKind is the type of an epic history row.
type EpicEventKind int

const (
	EpicAppeared EpicEventKind = iota
	EpicKilled
)

// EpicEvent is a row of the epic history. GroupSessionID is nil for
// kills that no tracked group was around for.
type EpicEvent struct {
	Epic           string
	Kind           EpicEventKind
	GroupSessionID *int64
	Leader         string
	At             time.Time
}
