package processor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bryan-buckman/mudwatch/internal/model"
	"github.com/bryan-buckman/mudwatch/internal/notify"
	"github.com/bryan-buckman/mudwatch/internal/reconcile"
	"github.com/bryan-buckman/mudwatch/internal/scrape"
)

// NewEpicAge is how long an epic is highlighted in the report.
const NewEpicAge = time.Hour

// DefaultContinentOrder is the report order of the known continents.
var DefaultContinentOrder = []string{"Mainland", "Islands", "Valkyre", "Underworld"}

// Epics watches the map server for epic spawns. It is run by Groups.
type Epics struct {
	base
	url   string
	order []string
}

// NewEpics creates the epics processor. An empty order means
// DefaultContinentOrder.
func NewEpics(d Deps, url string, order []string) *Epics {
	if len(order) == 0 {
		order = DefaultContinentOrder
	}
	return &Epics{base: newBase(d, model.KindEpics, notify.ChannelEpics), url: url, order: order}
}

func age(spawned, now time.Time) string {
	if now.Sub(spawned) < time.Minute {
		return "just now"
	}
	return humanize.RelTime(spawned, now, "ago", "from now")
}

// Report renders the epic summary, grouped by continent.
func (p *Epics) Report(epics []model.Epic, now time.Time) string {
	rank := make(map[string]int, len(p.order))
	for i, c := range p.order {
		rank[strings.ToLower(c)] = i
	}

	byContinent := make(map[string][]model.Epic)
	var continents []string
	for _, e := range epics {
		if _, ok := byContinent[e.Continent]; !ok {
			continents = append(continents, e.Continent)
		}
		byContinent[e.Continent] = append(byContinent[e.Continent], e)
	}
	sort.SliceStable(continents, func(i, j int) bool {
		ri, iKnown := rank[strings.ToLower(continents[i])]
		rj, jKnown := rank[strings.ToLower(continents[j])]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown != jKnown:
			return iKnown
		default:
			return continents[i] < continents[j]
		}
	})

	if len(continents) == 0 {
		return "No epics are up."
	}

	var b strings.Builder
	for i, c := range continents {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "**%s**\n", c)
		for _, e := range byContinent[c] {
			line := fmt.Sprintf("%s in %s (%s)", e.Name, e.Area, age(e.SpawnedAt, now))
			if now.Sub(e.SpawnedAt) < NewEpicAge {
				line = "**" + line + "**"
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// originalLeader maps the current leader of a tracked group to the leader
// its message was started under.
func (p *Epics) originalLeader(ctx context.Context, leader string) string {
	var groups model.GroupSnapshot
	if _, err := p.Snapshots.Load(ctx, model.KindGroups, &groups); err != nil {
		p.log.Warn().Err(err).Msg("Failed to load groups snapshot")
	}
	if g, ok := groups[leader]; ok && g.OriginalLeader != "" {
		return g.OriginalLeader
	}
	return leader
}

func (p *Epics) killed(ctx context.Context, epic model.Epic, now time.Time) {
	ev := model.EpicEvent{Epic: epic.Name, Kind: model.EpicKilled, At: now}

	session, ok, err := p.Stats.ActiveGroupSession(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("Failed to read active group session")
	}
	if ok {
		id := session.ID
		ev.GroupSessionID = &id
		ev.Leader = session.Leader

		g := model.Group{OriginalLeader: p.originalLeader(ctx, session.Leader), StartedAt: session.StartedAt}
		p.appendToGroup(ctx, g, fmt.Sprintf("Defeated %s.", epic.Name), now)
	}
	p.log.Info().Str("epic", epic.Name).Str("leader", ev.Leader).Msg("Epic is gone")
	p.stat("epic", p.Stats.RecordEpicEvent(ctx, ev))
}

// Run implements Processor.
func (p *Epics) Run(ctx context.Context) error {
	p.log.Info().Msg("Checking epics")

	doc, err := p.Fetcher.FetchDocument(ctx, p.url)
	if err != nil {
		return err
	}
	fresh := scrape.ParseEpics(doc)

	var old []model.Epic
	if !p.load(ctx, &old) {
		old = nil
	}

	now := p.Now()
	res := reconcile.Epics(old, fresh, now)
	if res.Skipped {
		p.log.Warn().Msg("Map server shows no epics, keeping previous snapshot")
		return ErrSkipped
	}

	for _, ch := range res.Changes {
		switch ch.Kind {
		case model.EpicAppeared:
			p.log.Info().Str("epic", ch.Epic.Name).Str("area", ch.Epic.Area).Msg("Epic appeared")
			p.stat("epic", p.Stats.RecordEpicEvent(ctx, model.EpicEvent{Epic: ch.Epic.Name, Kind: model.EpicAppeared, At: now}))
		case model.EpicKilled:
			p.killed(ctx, ch.Epic, now)
		}
	}

	p.publish(ctx, p.Report(res.Next, now))
	return p.save(ctx, res.Next)
}

// publish replaces the channel contents with report unless the last posted
// summary already says the same.
func (p *Epics) publish(ctx context.Context, report string) {
	last, ok, err := p.Notifier.FindRecent(ctx, p.channel, func(string) bool { return true }, 1)
	if err != nil {
		p.log.Error().Err(err).Msg("Failed to read last report")
	}
	if ok && last.Text == report {
		return
	}
	if err := p.Notifier.DeleteAllRecent(ctx, p.channel); err != nil {
		p.log.Warn().Err(err).Msg("Failed to clear old reports")
	}
	p.send(ctx, report)
}
