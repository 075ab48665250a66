package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bryan-buckman/mudwatch/internal/database"
	"github.com/bryan-buckman/mudwatch/internal/model"
	"github.com/bryan-buckman/mudwatch/internal/notify"
	"github.com/bryan-buckman/mudwatch/internal/reconcile"
	"github.com/bryan-buckman/mudwatch/internal/scrape"
)

// Groups watches the adventuring parties page. It also drives the epics
// processor so that epic kills can be attributed to the group that was
// around when they happened.
type Groups struct {
	base
	url   string
	epics *Epics
}

// NewGroups creates the groups processor. epics may be nil.
func NewGroups(d Deps, url string, epics *Epics) *Groups {
	return &Groups{base: newBase(d, model.KindGroups, notify.ChannelGroups), url: url, epics: epics}
}

// Elapsed formats d as "+HH:MM".
func Elapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("+%02d:%02d", h, m)
}

// StartedMessage is the first line of a group's message. Later changes
// locate it by the "{originalLeader} started group " prefix.
func StartedMessage(g model.Group) string {
	return fmt.Sprintf("%s started group '%s' on %s. Group consists of %d adventurers.",
		g.Leader, g.Name, g.Continent, g.Size())
}

// ChangeLine renders the line appended to a group's message.
func ChangeLine(ev reconcile.GroupEvent) string {
	g := ev.Group
	switch ev.Kind {
	case reconcile.GroupRenamed:
		return fmt.Sprintf("%s has changed group name to '%s'.", g.Leader, g.Name)
	case reconcile.GroupMoved:
		return fmt.Sprintf("The group moved to %s.", g.Continent)
	case reconcile.GroupGrew:
		return fmt.Sprintf("The group became bigger. Now it has as many as %d adventurers.", g.Size())
	case reconcile.GroupShrank:
		return fmt.Sprintf("The group became smaller. Now it has only %d adventurers.", g.Size())
	case reconcile.GroupLeaderChanged:
		return fmt.Sprintf("%s became the new leader.", g.Leader)
	default:
		return "The group is over."
	}
}

// appendToGroup adds a timestamped line to the group's message.
func (b *base) appendToGroup(ctx context.Context, g model.Group, line string, now time.Time) {
	suffix := fmt.Sprintf("\n(%s) %s", Elapsed(now.Sub(g.StartedAt)), line)
	b.amend(ctx, notify.ChannelGroups, g.OriginalLeader+" started group ", suffix, "group of "+g.OriginalLeader)
}

func (p *Groups) closeSession(ctx context.Context, leader string, now time.Time) {
	err := p.Stats.CloseGroupSession(ctx, leader, now)
	if errors.Is(err, database.ErrNotFound) {
		p.log.Debug().Str("leader", leader).Msg("No open session to close")
		return
	}
	p.stat("group_close", err)
}

func (p *Groups) openSession(ctx context.Context, g model.Group, now time.Time) {
	_, err := p.Stats.OpenGroupSession(ctx, g.Leader, g.Continent, g.Size(), now)
	p.stat("group_open", err)
}

func (p *Groups) runEpics(ctx context.Context) {
	if p.epics == nil {
		return
	}
	if err := p.epics.Run(ctx); err != nil && !errors.Is(err, ErrSkipped) {
		p.log.Error().Err(err).Msg("Epics cycle failed")
	}
}

// Run implements Processor.
func (p *Groups) Run(ctx context.Context) error {
	p.log.Info().Msg("Checking groups")

	// A kill is credited to the active group, so epics go first while one is
	// open and after the groups pass otherwise.
	_, active, err := p.Stats.ActiveGroupSession(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("Failed to read active group session")
	}
	if active {
		p.runEpics(ctx)
	}

	doc, err := p.Fetcher.FetchDocument(ctx, p.url)
	if err != nil {
		return err
	}
	fresh := scrape.ParseGroups(scrape.Rows(doc))

	var old model.GroupSnapshot
	if !p.load(ctx, &old) {
		old = nil
	}

	now := p.Now()
	res := reconcile.Groups(old, fresh, now)

	// Every event carries the group's current size and continent, so one
	// restart per leader covers all of its changes in this pass.
	restarted := make(map[string]bool)
	for _, ev := range res.Events {
		p.log.Info().Str("event", ev.Kind.String()).Str("leader", ev.Group.Leader).Msg("Group changed")

		if ev.Kind == reconcile.GroupStarted {
			p.send(ctx, StartedMessage(ev.Group))
			p.openSession(ctx, ev.Group, now)
			continue
		}

		p.appendToGroup(ctx, ev.Group, ChangeLine(ev), now)

		switch {
		case ev.Kind == reconcile.GroupOver:
			p.closeSession(ctx, ev.Group.Leader, now)
		case ev.Kind == reconcile.GroupLeaderChanged:
			p.closeSession(ctx, ev.Previous.Leader, now)
			p.openSession(ctx, ev.Group, now)
			restarted[ev.Group.Leader] = true
		case ev.RestartsSession() && !restarted[ev.Group.Leader]:
			p.closeSession(ctx, ev.Group.Leader, now)
			p.openSession(ctx, ev.Group, now)
			restarted[ev.Group.Leader] = true
		}
	}

	if err := p.save(ctx, res.Next); err != nil {
		return err
	}

	if !active {
		p.runEpics(ctx)
	}
	p.log.Info().Int("events", len(res.Events)).Int("groups", len(res.Next)).Msg("Checked groups")
	return nil
}
