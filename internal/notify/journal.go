package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/bryan-buckman/mudwatch/internal/metrics"
	"github.com/bryan-buckman/mudwatch/internal/model"
	"github.com/bryan-buckman/mudwatch/internal/snapshot"
)

// DefaultJournalSize is how many messages per channel are remembered.
const DefaultJournalSize = 50

// JournalOptions configure a Journaled notifier.
type JournalOptions struct {
	// Size bounds the per-channel journal. Zero means DefaultJournalSize.
	Size int
	// Rate is the number of transport calls per second. Zero disables pacing.
	Rate  float64
	Burst int
}

// Journaled adds a persisted per-channel journal of recent messages to a
// Transport. The journal is newest first and serves FindRecent and
// DeleteAllRecent.
type Journaled struct {
	transport Transport
	store     snapshot.Store
	size      int
	limiter   *rate.Limiter
	log       zerolog.Logger

	mu      sync.Mutex
	loaded  bool
	journal map[string][]Handle
}

var _ Notifier = (*Journaled)(nil)

// NewJournaled wraps t. The journal is loaded from store on first use.
func NewJournaled(t Transport, store snapshot.Store, opts JournalOptions, log zerolog.Logger) *Journaled {
	if opts.Size <= 0 {
		opts.Size = DefaultJournalSize
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.Rate > 0 {
		if opts.Burst <= 0 {
			opts.Burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst)
	}
	return &Journaled{
		transport: t,
		store:     store,
		size:      opts.Size,
		limiter:   limiter,
		log:       log,
		journal:   make(map[string][]Handle),
	}
}

// load reads the journal once. Must hold mu.
func (j *Journaled) load(ctx context.Context) error {
	if j.loaded {
		return nil
	}
	var stored map[string][]Handle
	if _, err := j.store.Load(ctx, model.KindJournal, &stored); err != nil {
		return fmt.Errorf("load journal: %w", err)
	}
	if stored != nil {
		j.journal = stored
	}
	j.loaded = true
	return nil
}

// save persists the journal. Must hold mu. Failures only cost history.
func (j *Journaled) save(ctx context.Context) {
	if err := j.store.Save(ctx, model.KindJournal, j.journal); err != nil {
		j.log.Warn().Err(err).Msg("Failed to save notification journal")
	}
}

func (j *Journaled) call(ctx context.Context, channel, op string, fn func() error) error {
	if err := j.limiter.Wait(ctx); err != nil {
		return err
	}
	err := fn()
	metrics.Notifications.WithLabelValues(channel, op, metrics.Result(err)).Inc()
	return err
}

// Notify sends text and records it as the newest message of channel.
func (j *Journaled) Notify(ctx context.Context, channel, text string) (Handle, error) {
	var id string
	err := j.call(ctx, channel, "send", func() error {
		var err error
		id, err = j.transport.Send(ctx, channel, text)
		return err
	})
	if err != nil {
		return Handle{}, fmt.Errorf("send to %s: %w", channel, err)
	}

	h := Handle{Channel: channel, ID: id, Text: text}

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.load(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Notification journal unavailable")
	}
	entries := append([]Handle{h}, j.journal[channel]...)
	if len(entries) > j.size {
		entries = entries[:j.size]
	}
	j.journal[channel] = entries
	j.save(ctx)
	return h, nil
}

// Edit replaces the text of a posted message.
func (j *Journaled) Edit(ctx context.Context, h Handle, text string) error {
	err := j.call(ctx, h.Channel, "edit", func() error {
		return j.transport.Edit(ctx, h.Channel, h.ID, text)
	})
	if err != nil {
		return fmt.Errorf("edit %s/%s: %w", h.Channel, h.ID, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.load(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Notification journal unavailable")
		return nil
	}
	for i, e := range j.journal[h.Channel] {
		if e.ID == h.ID {
			j.journal[h.Channel][i].Text = text
			j.save(ctx)
			break
		}
	}
	return nil
}

// FindRecent implements Notifier.
func (j *Journaled) FindRecent(ctx context.Context, channel string, pred func(text string) bool, limit int) (Handle, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.load(ctx); err != nil {
		return Handle{}, false, err
	}

	entries := j.journal[channel]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for _, e := range entries {
		if pred(e.Text) {
			return e, true, nil
		}
	}
	return Handle{}, false, nil
}

// DeleteAllRecent deletes every journaled message of channel. The journal
// is cleared even when some deletes fail.
func (j *Journaled) DeleteAllRecent(ctx context.Context, channel string) error {
	j.mu.Lock()
	if err := j.load(ctx); err != nil {
		j.mu.Unlock()
		return err
	}
	entries := j.journal[channel]
	delete(j.journal, channel)
	j.save(ctx)
	j.mu.Unlock()

	var errs []error
	for _, e := range entries {
		err := j.call(ctx, channel, "delete", func() error {
			return j.transport.Delete(ctx, channel, e.ID)
		})
		if err != nil {
			j.log.Warn().Err(err).Str("channel", channel).Str("id", e.ID).Msg("Failed to delete message")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
