// Package processor runs one watch cycle per domain: fetch the page, parse
// it, reconcile against the stored snapshot, then announce, record and
// persist the outcome.
package processor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/bryan-buckman/mudwatch/internal/metrics"
	"github.com/bryan-buckman/mudwatch/internal/model"
	"github.com/bryan-buckman/mudwatch/internal/notify"
	"github.com/bryan-buckman/mudwatch/internal/snapshot"
)

// ErrSkipped is returned when a cycle kept the old snapshot because the page
// looked empty.
var ErrSkipped = errors.New("cycle skipped")

// MessageSearchLimit is how many recent messages are searched when a
// message has to be amended.
const MessageSearchLimit = 10

// Processor is one watched domain.
type Processor interface {
	Name() string
	Run(ctx context.Context) error
}

// Fetcher is the page source.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	FetchDocument(ctx context.Context, url string) (*goquery.Document, error)
}

// StatStore is the write side of the stats database.
type StatStore interface {
	RecordDeath(ctx context.Context, d model.Death) error
	RecordRaise(ctx context.Context, r model.Raise) error
	RecordSale(ctx context.Context, s model.Sale) error
	OpenGroupSession(ctx context.Context, leader, continent string, size int, at time.Time) (int64, error)
	CloseGroupSession(ctx context.Context, leader string, at time.Time) error
	ActiveGroupSession(ctx context.Context) (model.GroupSession, bool, error)
	RecordEpicEvent(ctx context.Context, e model.EpicEvent) error
}

// Deps are the collaborators shared by all processors.
type Deps struct {
	Fetcher   Fetcher
	Snapshots snapshot.Store
	Notifier  notify.Notifier
	Stats     StatStore
	Log       zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// base carries the plumbing every processor needs.
type base struct {
	Deps
	name    string
	channel string
	log     zerolog.Logger
}

func newBase(d Deps, name, channel string) base {
	if d.Now == nil {
		d.Now = time.Now
	}
	return base{Deps: d, name: name, channel: channel, log: d.Log.With().Str("domain", name).Logger()}
}

func (b *base) Name() string { return b.name }

// load reads the previous snapshot into v. A missing or unreadable snapshot
// counts as a first run.
func (b *base) load(ctx context.Context, v any) bool {
	found, err := b.Snapshots.Load(ctx, b.name, v)
	if err != nil {
		b.log.Error().Err(err).Msg("Failed to load snapshot, starting fresh")
		return false
	}
	if !found {
		b.log.Info().Msg("No previous snapshot")
	}
	return found
}

func (b *base) save(ctx context.Context, v any) error {
	if err := b.Snapshots.Save(ctx, b.name, v); err != nil {
		b.log.Error().Err(err).Msg("Failed to save snapshot")
		return err
	}
	return nil
}

// send posts to the processor's channel. Failures are logged; the cycle
// goes on.
func (b *base) send(ctx context.Context, text string) {
	if _, err := b.Notifier.Notify(ctx, b.channel, text); err != nil {
		b.log.Error().Err(err).Msg("Failed to send message")
	}
}

// amend appends suffix to the newest recent message of channel starting
// with prefix. A missing message is a warning.
func (b *base) amend(ctx context.Context, channel, prefix, suffix, what string) {
	h, ok, err := b.Notifier.FindRecent(ctx, channel, func(text string) bool {
		return strings.HasPrefix(text, prefix)
	}, MessageSearchLimit)
	if err != nil {
		b.log.Error().Err(err).Msg("Failed to search messages")
		return
	}
	if !ok {
		b.log.Warn().Msgf("could not find message for %s", what)
		return
	}
	if err := b.Notifier.Edit(ctx, h, h.Text+suffix); err != nil {
		b.log.Error().Err(err).Msg("Failed to edit message")
	}
}

// stat logs and counts a stats write.
func (b *base) stat(kind string, err error) {
	metrics.StatWrites.WithLabelValues(kind, metrics.Result(err)).Inc()
	if err != nil {
		b.log.Error().Err(err).Str("kind", kind).Msg("Failed to record stat")
	}
}
