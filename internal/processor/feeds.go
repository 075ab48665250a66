package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/bryan-buckman/mudwatch/internal/model"
	"github.com/bryan-buckman/mudwatch/internal/notify"
	"github.com/bryan-buckman/mudwatch/internal/reconcile"
	"github.com/bryan-buckman/mudwatch/internal/scrape"
)

// Forum source modes.
const (
	ForumHTML = "html"
	ForumRSS  = "rss"
)

// Forum watches the front page post list, or the forum feed in rss mode.
type Forum struct {
	base
	url  string
	mode string
}

// NewForum creates the forum processor.
func NewForum(d Deps, url, mode string) *Forum {
	if mode == "" {
		mode = ForumHTML
	}
	return &Forum{base: newBase(d, model.KindForum, notify.ChannelForum), url: url, mode: mode}
}

// PostMessage renders a new post announcement.
func PostMessage(p model.Post) string {
	return fmt.Sprintf("[%s](%s) made a new post in the thread '[%s](%s)'", p.Poster, p.PosterLink, p.Thread, p.ThreadLink)
}

func (p *Forum) fetch(ctx context.Context) ([]model.Post, error) {
	if p.mode == ForumRSS {
		body, err := p.Fetcher.Fetch(ctx, p.url)
		if err != nil {
			return nil, err
		}
		return scrape.ParseForumFeed(body)
	}
	doc, err := p.Fetcher.FetchDocument(ctx, p.url)
	if err != nil {
		return nil, err
	}
	return scrape.ParseForum(scrape.Rows(doc), p.url), nil
}

// Run implements Processor.
func (p *Forum) Run(ctx context.Context) error {
	p.log.Info().Str("mode", p.mode).Msg("Checking forum")

	fresh, err := p.fetch(ctx)
	if err != nil {
		return err
	}

	var old []model.Post
	if !p.load(ctx, &old) {
		old = nil
	}

	res := reconcile.Forum(old, fresh)
	if res.Skipped {
		p.log.Warn().Msg("Forum shows no posts, keeping previous snapshot")
		return ErrSkipped
	}
	if res.Lost {
		p.log.Warn().Str("thread", old[0].Thread).Msg("Previous top post is gone, reporting nothing")
	}
	for _, post := range res.New {
		p.send(ctx, PostMessage(post))
	}

	p.log.Info().Int("new", len(res.New)).Msg("Checked forum")
	return p.save(ctx, res.Next)
}

// Alerts watches the live alert blog for deaths, raises and shocks.
type Alerts struct {
	base
	url     string
	exclude map[string]bool
}

// NewAlerts creates the alerts processor. Adventurers in exclude are still
// counted but never announced.
func NewAlerts(d Deps, url string, exclude []string) *Alerts {
	ex := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		ex[strings.ToLower(name)] = true
	}
	return &Alerts{base: newBase(d, model.KindAlerts, notify.ChannelAlerts), url: url, exclude: ex}
}

// DeathMessage is the announcement of a death; raises and shocks are
// appended to it.
func DeathMessage(a model.Alert) string {
	return fmt.Sprintf("%s was slain by %s.", a.Adventurer, a.Doer)
}

func (p *Alerts) announce(a model.Alert) bool {
	return !p.exclude[strings.ToLower(a.Adventurer)]
}

// Run implements Processor.
func (p *Alerts) Run(ctx context.Context) error {
	p.log.Debug().Msg("Checking alerts")

	doc, err := p.Fetcher.FetchDocument(ctx, p.url)
	if err != nil {
		return err
	}
	fresh, unmatched := scrape.ParseAlerts(scrape.Rows(doc))
	for _, text := range unmatched {
		p.log.Warn().Str("text", text).Msg("Unrecognized alert")
	}

	var old []model.Alert
	if !p.load(ctx, &old) {
		old = nil
	}

	res := reconcile.Alerts(old, fresh)
	if res.Skipped {
		p.log.Debug().Msg("Alert blog is empty, keeping previous snapshot")
		return ErrSkipped
	}
	if res.Lost {
		p.log.Warn().Msg("Previous top alert is gone, reporting nothing")
	}

	now := p.Now()
	for _, a := range res.New {
		prefix := a.Adventurer + " was slain by "
		switch a.Type {
		case model.AlertDeath:
			if p.announce(a) {
				p.send(ctx, DeathMessage(a))
			}
			p.stat("death", p.Stats.RecordDeath(ctx, model.Death{
				Adventurer: a.Adventurer, Killer: a.Doer, GameTime: a.Time, At: now,
			}))
		case model.AlertRaise:
			if p.announce(a) {
				p.amend(ctx, p.channel, prefix, fmt.Sprintf("\nRaised by %s.", a.Doer), "death of "+a.Adventurer)
			}
			p.stat("raise", p.Stats.RecordRaise(ctx, model.Raise{
				Adventurer: a.Adventurer, Raiser: a.Doer, GameTime: a.Time, At: now,
			}))
		case model.AlertShock:
			if p.announce(a) {
				p.amend(ctx, p.channel, prefix, "\nShocked.", "death of "+a.Adventurer)
			}
		}
	}

	if len(res.New) > 0 {
		p.log.Info().Int("new", len(res.New)).Msg("Checked alerts")
	}
	return p.save(ctx, res.Next)
}
