package processor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/mudwatch/internal/database"
	"github.com/bryan-buckman/mudwatch/internal/model"
	"github.com/bryan-buckman/mudwatch/internal/notify"
	"github.com/bryan-buckman/mudwatch/internal/snapshot"
)

var now = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	page, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: unexpected status 404", url)
	}
	return []byte(page), nil
}

func (f *fakeFetcher) FetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(string(body)))
}

// fakeNotifier keeps every channel's messages oldest first.
type fakeNotifier struct {
	mu      sync.Mutex
	next    int
	msgs    map[string][]notify.Handle
	deleted int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{msgs: make(map[string][]notify.Handle)}
}

func (n *fakeNotifier) Notify(_ context.Context, channel, text string) (notify.Handle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	h := notify.Handle{Channel: channel, ID: strconv.Itoa(n.next), Text: text}
	n.msgs[channel] = append(n.msgs[channel], h)
	return h, nil
}

func (n *fakeNotifier) Edit(_ context.Context, h notify.Handle, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, m := range n.msgs[h.Channel] {
		if m.ID == h.ID {
			n.msgs[h.Channel][i].Text = text
			return nil
		}
	}
	return errors.New("no such message")
}

func (n *fakeNotifier) FindRecent(_ context.Context, channel string, pred func(string) bool, limit int) (notify.Handle, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	msgs := n.msgs[channel]
	for i, seen := len(msgs)-1, 0; i >= 0 && (limit <= 0 || seen < limit); i, seen = i-1, seen+1 {
		if pred(msgs[i].Text) {
			return msgs[i], true, nil
		}
	}
	return notify.Handle{}, false, nil
}

func (n *fakeNotifier) DeleteAllRecent(_ context.Context, channel string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted += len(n.msgs[channel])
	delete(n.msgs, channel)
	return nil
}

func (n *fakeNotifier) texts(channel string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.msgs[channel] {
		out = append(out, m.Text)
	}
	return out
}

type env struct {
	deps     Deps
	fetcher  *fakeFetcher
	notifier *fakeNotifier
	db       *database.DB
	store    snapshot.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	db, err := database.New(filepath.Join(dir, "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := snapshot.NewFileStore(dir)
	require.NoError(t, err)

	e := &env{
		fetcher:  &fakeFetcher{pages: make(map[string]string)},
		notifier: newFakeNotifier(),
		db:       db,
		store:    store,
	}
	e.deps = Deps{
		Fetcher:   e.fetcher,
		Snapshots: store,
		Notifier:  e.notifier,
		Stats:     db,
		Log:       zerolog.Nop(),
		Now:       func() time.Time { return now },
	}
	return e
}

func (e *env) seed(t *testing.T, kind string, v any) {
	t.Helper()
	require.NoError(t, e.store.Save(context.Background(), kind, v))
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12,500", 12500, true},
		{"300 coins", 300, true},
		{"0", 0, true},
		{"-", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParsePrice(tt.in)
		require.Equal(t, tt.ok, ok, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}

func TestElapsed(t *testing.T) {
	require.Equal(t, "+00:00", Elapsed(0))
	require.Equal(t, "+01:05", Elapsed(65*time.Minute))
	require.Equal(t, "+26:59", Elapsed(26*time.Hour+59*time.Minute+59*time.Second))
	require.Equal(t, "+00:00", Elapsed(-time.Minute))
}

const auctionsURL = "http://mud.example/auctions"

func TestAuctionsVanishedSeller(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, model.KindAuctions, model.AuctionSnapshot{
		"Bob": {{Seller: "Bob", Name: "Sword", Bidder: "Nobody", Price: "100", Buyout: "1,500", Ends: "3h"}},
		"Ann": {{Seller: "Ann", Name: "Helm", Bidder: "Cid", Price: "70", Buyout: "90", Ends: "5h"}},
	})
	e.fetcher.pages[auctionsURL] = `<table>
<tr><td>1</td><td>Helm</td><td>Ann</td><td>Cid</td><td>80</td><td>90</td><td>1h 30m</td></tr>
</table>`

	p := NewAuctions(e.deps, auctionsURL, "")
	require.NoError(t, p.Run(ctx))

	require.ElementsMatch(t, []string{
		"Bob's item 'Sword' had been bought out for 1,500.",
		"The auction for Ann's item 'Helm' will end in less than two hours. Current bid is 80 by Cid.",
	}, e.notifier.texts(notify.ChannelAuctions))

	rows, err := e.db.QueryStats(ctx, database.StatQuery{Table: database.TableSales, GroupBy: "seller", Sum: "price"})
	require.NoError(t, err)
	require.Equal(t, []database.StatRow{{Key: "Bob", Count: 1, Sum: 1500}}, rows)

	var saved model.AuctionSnapshot
	found, err := e.store.Load(ctx, model.KindAuctions, &saved)
	require.NoError(t, err)
	require.True(t, found)
	require.NotContains(t, saved, "Bob")
	require.True(t, saved["Ann"][0].WarnedEndingSoon)

	// The warning fires once.
	require.NoError(t, p.Run(ctx))
	require.Len(t, e.notifier.texts(notify.ChannelAuctions), 2)
}

func TestAuctionsEmptyPageSkips(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	prev := model.AuctionSnapshot{"Bob": {{Seller: "Bob", Name: "Sword", Bidder: "Nobody", Ends: "3h"}}}
	e.seed(t, model.KindAuctions, prev)
	e.fetcher.pages[auctionsURL] = `<table><tr><th>#</th></tr></table>`

	err := NewAuctions(e.deps, auctionsURL, "").Run(ctx)
	require.True(t, errors.Is(err, ErrSkipped))
	require.Empty(t, e.notifier.texts(notify.ChannelAuctions))

	var saved model.AuctionSnapshot
	_, err = e.store.Load(ctx, model.KindAuctions, &saved)
	require.NoError(t, err)
	require.Equal(t, prev, saved)
}

func TestAuctionsFetchError(t *testing.T) {
	e := newEnv(t)
	require.Error(t, NewAuctions(e.deps, auctionsURL, "").Run(context.Background()))
}

const (
	groupsURL = "http://mud.example/parties"
	epicsURL  = "http://mud.example/map"
)

func partiesPage(leader, name, continent string, members ...string) string {
	var b strings.Builder
	b.WriteString("<table>\n")
	fmt.Fprintf(&b, "<tr><td colspan=\"3\">%s is leading '%s' on %s.</td></tr>\n", leader, name, continent)
	for i, m := range members {
		fmt.Fprintf(&b, "<tr><td>%d</td><td>Warrior</td><td>%s</td></tr>\n", i+1, m)
	}
	b.WriteString("</table>")
	return b.String()
}

func TestGroupsLeaderChange(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	started := now.Add(-90 * time.Minute)

	alice := model.Group{
		Leader: "Alice", OriginalLeader: "Alice", Name: "Hunt", Continent: "Mainland",
		Members: []string{"Alice", "Bob", "Cid", "Dan", "Eve"}, StartedAt: started, MovedToContinentAt: started,
	}
	e.seed(t, model.KindGroups, model.GroupSnapshot{"Alice": alice})
	_, err := e.notifier.Notify(ctx, notify.ChannelGroups, StartedMessage(alice))
	require.NoError(t, err)
	_, err = e.db.OpenGroupSession(ctx, "Alice", "Mainland", 5, started)
	require.NoError(t, err)

	e.fetcher.pages[groupsURL] = partiesPage("Bob", "Hunt", "Mainland", "Bob", "Cid", "Dan", "Eve", "Fay")

	require.NoError(t, NewGroups(e.deps, groupsURL, nil).Run(ctx))

	require.Equal(t, []string{
		"Alice started group 'Hunt' on Mainland. Group consists of 5 adventurers.\n(+01:30) Bob became the new leader.",
	}, e.notifier.texts(notify.ChannelGroups))

	var saved model.GroupSnapshot
	_, err = e.store.Load(ctx, model.KindGroups, &saved)
	require.NoError(t, err)
	require.NotContains(t, saved, "Alice")
	require.Equal(t, "Alice", saved["Bob"].OriginalLeader)
	require.True(t, started.Equal(saved["Bob"].StartedAt))

	active, ok, err := e.db.ActiveGroupSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Bob", active.Leader)

	sessions, err := e.db.GroupSessions(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.True(t, sessions[0].FinishedAt.Equal(now))
	require.True(t, sessions[1].Ongoing())
}

func TestGroupsLeaderChangeWithResize(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	started := now.Add(-90 * time.Minute)

	alice := model.Group{
		Leader: "Alice", OriginalLeader: "Alice", Name: "Hunt", Continent: "Mainland",
		Members:   []string{"Alice", "Bob", "Cid", "Dan", "Eve", "Fay", "Gus", "Hal"},
		StartedAt: started, MovedToContinentAt: started,
	}
	e.seed(t, model.KindGroups, model.GroupSnapshot{"Alice": alice})
	_, err := e.notifier.Notify(ctx, notify.ChannelGroups, StartedMessage(alice))
	require.NoError(t, err)
	_, err = e.db.OpenGroupSession(ctx, "Alice", "Mainland", 8, started)
	require.NoError(t, err)

	// Alice leaves and the group drops from the 8 to the 4 bucket.
	e.fetcher.pages[groupsURL] = partiesPage("Bob", "Hunt", "Mainland", "Bob", "Cid", "Dan", "Eve", "Fay", "Gus", "Hal")

	require.NoError(t, NewGroups(e.deps, groupsURL, nil).Run(ctx))

	require.Equal(t, []string{
		"Alice started group 'Hunt' on Mainland. Group consists of 8 adventurers." +
			"\n(+01:30) Bob became the new leader." +
			"\n(+01:30) The group became smaller. Now it has only 7 adventurers.",
	}, e.notifier.texts(notify.ChannelGroups))

	sessions, err := e.db.GroupSessions(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, "Alice", sessions[0].Leader)
	require.True(t, sessions[0].FinishedAt.Equal(now))
	require.Equal(t, "Bob", sessions[1].Leader)
	require.Equal(t, 7, sessions[1].Size)
	require.True(t, sessions[1].Ongoing())
}

func TestGroupsMoveAndResizeRestartOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	started := now.Add(-time.Hour)

	ann := model.Group{
		Leader: "Ann", OriginalLeader: "Ann", Name: "Night", Continent: "Islands",
		Members: []string{"Ann", "Bo", "Cy"}, StartedAt: started, MovedToContinentAt: started,
	}
	e.seed(t, model.KindGroups, model.GroupSnapshot{"Ann": ann})
	_, err := e.notifier.Notify(ctx, notify.ChannelGroups, StartedMessage(ann))
	require.NoError(t, err)
	_, err = e.db.OpenGroupSession(ctx, "Ann", "Islands", 3, started)
	require.NoError(t, err)

	e.fetcher.pages[groupsURL] = partiesPage("Ann", "Night", "Mainland", "Ann", "Bo", "Cy", "Di", "Ed")

	require.NoError(t, NewGroups(e.deps, groupsURL, nil).Run(ctx))

	require.Equal(t, []string{
		"Ann started group 'Night' on Islands. Group consists of 3 adventurers." +
			"\n(+01:00) The group moved to Mainland." +
			"\n(+01:00) The group became bigger. Now it has as many as 5 adventurers.",
	}, e.notifier.texts(notify.ChannelGroups))

	sessions, err := e.db.GroupSessions(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, "Mainland", sessions[1].Continent)
	require.Equal(t, 5, sessions[1].Size)
	require.True(t, sessions[1].Ongoing())
}

func TestGroupsMessageMatchedByLeaderPrefix(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	started := now.Add(-30 * time.Minute)

	al := model.Group{
		Leader: "Al", OriginalLeader: "Al", Name: "Hunt", Continent: "Mainland",
		Members: []string{"Al", "Bo", "Cy"}, StartedAt: started, MovedToContinentAt: started,
	}
	hal := model.Group{
		Leader: "Hal", OriginalLeader: "Hal", Name: "Raid", Continent: "Islands",
		Members: []string{"Hal", "Ida", "Jo"}, StartedAt: started, MovedToContinentAt: started,
	}
	e.seed(t, model.KindGroups, model.GroupSnapshot{"Al": al, "Hal": hal})
	for _, g := range []model.Group{al, hal} {
		_, err := e.notifier.Notify(ctx, notify.ChannelGroups, StartedMessage(g))
		require.NoError(t, err)
	}

	e.fetcher.pages[groupsURL] = `<table>
<tr><td colspan="3">Al is leading 'Dawn' on Mainland.</td></tr>
<tr><td>1</td><td>Cleric</td><td>Al</td></tr>
<tr><td>2</td><td>Warrior</td><td>Bo</td></tr>
<tr><td>3</td><td>Mage</td><td>Cy</td></tr>
<tr><td colspan="3">Hal is leading 'Raid' on Islands.</td></tr>
<tr><td>1</td><td>Cleric</td><td>Hal</td></tr>
<tr><td>2</td><td>Warrior</td><td>Ida</td></tr>
<tr><td>3</td><td>Mage</td><td>Jo</td></tr>
</table>`

	require.NoError(t, NewGroups(e.deps, groupsURL, nil).Run(ctx))

	require.Equal(t, []string{
		"Al started group 'Hunt' on Mainland. Group consists of 3 adventurers.\n(+00:30) Al has changed group name to 'Dawn'.",
		"Hal started group 'Raid' on Islands. Group consists of 3 adventurers.",
	}, e.notifier.texts(notify.ChannelGroups))
}

func TestGroupsStartedAndOver(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, model.KindGroups, model.GroupSnapshot{})
	e.fetcher.pages[groupsURL] = partiesPage("Ann", "Night", "Islands", "Ann", "Bo", "Cy")

	p := NewGroups(e.deps, groupsURL, nil)
	require.NoError(t, p.Run(ctx))
	require.Equal(t, []string{"Ann started group 'Night' on Islands. Group consists of 3 adventurers."},
		e.notifier.texts(notify.ChannelGroups))

	e.fetcher.pages[groupsURL] = `<table></table>`
	require.NoError(t, p.Run(ctx))
	require.Equal(t, []string{"Ann started group 'Night' on Islands. Group consists of 3 adventurers.\n(+00:00) The group is over."},
		e.notifier.texts(notify.ChannelGroups))

	_, ok, err := e.db.ActiveGroupSession(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGroupsMissingMessageIsNotFatal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, model.KindGroups, model.GroupSnapshot{
		"Ann": {Leader: "Ann", OriginalLeader: "Ann", Name: "Night", Continent: "Islands",
			Members: []string{"Ann", "Bo", "Cy"}, StartedAt: now, MovedToContinentAt: now},
	})
	e.fetcher.pages[groupsURL] = partiesPage("Ann", "Night", "Mainland", "Ann", "Bo", "Cy")

	require.NoError(t, NewGroups(e.deps, groupsURL, nil).Run(ctx))
	require.Empty(t, e.notifier.texts(notify.ChannelGroups))
}

func TestEpicKillAttributedToActiveGroup(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	started := now.Add(-2 * time.Hour)

	carol := model.Group{
		Leader: "Carol", OriginalLeader: "Carol", Name: "Dragons", Continent: "Mainland",
		Members: []string{"Carol", "Dan", "Eve"}, StartedAt: started, MovedToContinentAt: started,
	}
	e.seed(t, model.KindGroups, model.GroupSnapshot{"Carol": carol})
	e.seed(t, model.KindEpics, []model.Epic{
		{Name: "Thordak", Area: "Fire Peak", Continent: "Mainland", SpawnedAt: now.Add(-5 * time.Hour)},
		{Name: "Hydra", Area: "Swamp", Continent: "Mainland", SpawnedAt: now.Add(-3 * time.Hour)},
	})
	_, err := e.notifier.Notify(ctx, notify.ChannelGroups, StartedMessage(carol))
	require.NoError(t, err)
	gid, err := e.db.OpenGroupSession(ctx, "Carol", "Mainland", 3, started)
	require.NoError(t, err)

	e.fetcher.pages[groupsURL] = partiesPage("Carol", "Dragons", "Mainland", "Carol", "Dan", "Eve")
	e.fetcher.pages[epicsURL] = `<body><div area="Swamp" continent="Mainland">Hydra</div></body>`

	epics := NewEpics(e.deps, epicsURL, nil)
	require.NoError(t, NewGroups(e.deps, groupsURL, epics).Run(ctx))

	history, err := e.db.EpicHistory(ctx, "Thordak")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, model.EpicKilled, history[0].Kind)
	require.NotNil(t, history[0].GroupSessionID)
	require.Equal(t, gid, *history[0].GroupSessionID)

	require.Equal(t, []string{
		"Carol started group 'Dragons' on Mainland. Group consists of 3 adventurers.\n(+02:00) Defeated Thordak.",
	}, e.notifier.texts(notify.ChannelGroups))

	require.Equal(t, []string{"**Mainland**\nHydra in Swamp (3 hours ago)"}, e.notifier.texts(notify.ChannelEpics))

	// Same report next cycle: nothing reposted.
	require.NoError(t, epics.Run(ctx))
	require.Equal(t, 0, e.notifier.deleted)
	require.Len(t, e.notifier.texts(notify.ChannelEpics), 1)
}

func TestEpicKillWithoutGroup(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, model.KindEpics, []model.Epic{
		{Name: "Thordak", Area: "Fire Peak", Continent: "Mainland", SpawnedAt: now.Add(-time.Hour)},
		{Name: "Hydra", Area: "Swamp", Continent: "Mainland", SpawnedAt: now.Add(-time.Hour)},
	})
	_, err := e.notifier.Notify(ctx, notify.ChannelEpics, "old report")
	require.NoError(t, err)
	e.fetcher.pages[epicsURL] = `<body><div area="Swamp" continent="Mainland">Hydra</div>
<div area="Dark Lair" continent="Valkyre">Lich</div></body>`

	require.NoError(t, NewEpics(e.deps, epicsURL, nil).Run(ctx))

	history, err := e.db.EpicHistory(ctx, "Thordak")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Nil(t, history[0].GroupSessionID)

	lich, err := e.db.EpicHistory(ctx, "Lich")
	require.NoError(t, err)
	require.Len(t, lich, 1)
	require.Equal(t, model.EpicAppeared, lich[0].Kind)

	require.Equal(t, 1, e.notifier.deleted)
	require.Equal(t, []string{"**Mainland**\nHydra in Swamp (1 hour ago)\n\n**Valkyre**\n**Lich in Dark Lair (just now)**"},
		e.notifier.texts(notify.ChannelEpics))
}

func TestEpicsReportOrder(t *testing.T) {
	p := NewEpics(Deps{}, "", []string{"Mainland", "Valkyre"})
	got := p.Report([]model.Epic{
		{Name: "Ogre", Area: "Cave", Continent: "Farlands", SpawnedAt: now.Add(-3 * time.Hour)},
		{Name: "Lich", Area: "Dark Tower", Continent: "Valkyre", SpawnedAt: now.Add(-30 * time.Minute)},
		{Name: "Imp", Area: "Pit", Continent: "Abyss", SpawnedAt: now.Add(-3 * time.Hour)},
		{Name: "Hydra", Area: "Swamp", Continent: "Mainland", SpawnedAt: now.Add(-2 * time.Hour)},
	}, now)

	require.Equal(t, "**Mainland**\nHydra in Swamp (2 hours ago)\n\n"+
		"**Valkyre**\n**Lich in Dark Tower (30 minutes ago)**\n\n"+
		"**Abyss**\nImp in Pit (3 hours ago)\n\n"+
		"**Farlands**\nOgre in Cave (3 hours ago)", got)
}

const (
	forumURL  = "http://mud.example/"
	alertsURL = "http://mud.example/alerts"
)

func TestForum(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, model.KindForum, []model.Post{{Thread: "Rules", Poster: "Ann"}})
	e.fetcher.pages[forumURL] = `<table>
<tr><td>Last Forum Posts</td></tr>
<tr><td><a href="/t/2">Bugs</a></td><td><a href="/u/bob">Bob</a></td><td>now</td><td>1</td></tr>
<tr><td><a href="/t/1">Rules</a></td><td><a href="/u/ann">Ann</a></td><td>today</td><td>3</td></tr>
</table>`

	require.NoError(t, NewForum(e.deps, forumURL, ForumHTML).Run(ctx))
	require.Equal(t, []string{
		"[Bob](http://mud.example/u/bob) made a new post in the thread '[Bugs](http://mud.example/t/2)'",
	}, e.notifier.texts(notify.ChannelForum))
}

func TestForumRSS(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.fetcher.pages[forumURL+"feed"] = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Forum</title>
<item><title>Rules</title><link>http://mud.example/t/1</link><author>ann@mud.example (Ann)</author></item>
</channel></rss>`

	p := NewForum(e.deps, forumURL+"feed", ForumRSS)
	require.NoError(t, p.Run(ctx))
	require.Empty(t, e.notifier.texts(notify.ChannelForum), "first run only records")

	var saved []model.Post
	found, err := e.store.Load(ctx, model.KindForum, &saved)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Rules", saved[0].Thread)
}

func TestAlerts(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, model.KindAlerts, []model.Alert{
		{Type: model.AlertDeath, Adventurer: "Zed", Doer: "a rat", Time: "09:00"},
	})
	e.fetcher.pages[alertsURL] = `<table>
<tr><td>10:05</td><td>Cid shocked Bot.</td></tr>
<tr><td>10:04</td><td>Bot was slain by a wolf.</td></tr>
<tr><td>10:03</td><td>The clerical genius Cid successfully raised Ann.</td></tr>
<tr><td>10:02</td><td>Ann was slain by a cave troll.</td></tr>
<tr><td>10:01</td><td>Ann logged in.</td></tr>
<tr><td>09:00</td><td>Zed was slain by a rat.</td></tr>
</table>`

	require.NoError(t, NewAlerts(e.deps, alertsURL, []string{"bot"}).Run(ctx))

	require.Equal(t, []string{"Ann was slain by a cave troll.\nRaised by Cid."}, e.notifier.texts(notify.ChannelAlerts))

	log, err := e.db.AlertLog(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, log, 3)
	require.Equal(t, "Ann", log[0].Adventurer)
	require.Equal(t, "10:02", log[0].GameTime)
	require.Equal(t, "Bot", log[1].Adventurer)
	require.Equal(t, database.AlertTypeRaise, log[2].Type)
}
