// Package app wires the configured components together.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryan-buckman/mudwatch/internal/config"
	"github.com/bryan-buckman/mudwatch/internal/database"
	"github.com/bryan-buckman/mudwatch/internal/logging"
	"github.com/bryan-buckman/mudwatch/internal/notify"
	"github.com/bryan-buckman/mudwatch/internal/poller"
	"github.com/bryan-buckman/mudwatch/internal/processor"
	"github.com/bryan-buckman/mudwatch/internal/scrape"
	"github.com/bryan-buckman/mudwatch/internal/server"
	"github.com/bryan-buckman/mudwatch/internal/snapshot"
	"github.com/bryan-buckman/mudwatch/internal/stats"
)

// ShutdownTimeout bounds the HTTP server shutdown.
const ShutdownTimeout = 10 * time.Second

// App holds the running components.
type App struct {
	Config    *config.Config
	DB        database.Store
	Snapshots snapshot.Store
	Notifier  notify.Notifier
	Poller    *poller.Poller
	Reporter  *stats.Reporter

	log zerolog.Logger
}

// New opens the stores and builds every component. Close releases them.
func New(cfg *config.Config) (*App, error) {
	log := logging.For("app")

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	log.Info().Str("backend", db.DatabaseType()).Msg("Database ready")

	snaps, err := openSnapshots(cfg.Snapshots, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	transport, err := newTransport(cfg.Notify)
	if err != nil {
		db.Close()
		return nil, err
	}
	notifier := notify.NewJournaled(transport, snaps, notify.JournalOptions{
		Size:  cfg.Notify.JournalSize,
		Rate:  cfg.Notify.Rate,
		Burst: cfg.Notify.Burst,
	}, logging.For("notify"))

	a := &App{
		Config:    cfg,
		DB:        db,
		Snapshots: snaps,
		Notifier:  notifier,
		Poller:    poller.New(logging.For("poller"), cfg.Schedule.CycleTimeout),
		Reporter: stats.NewReporter(db, stats.Options{
			ExcludedLeaders: cfg.Stats.ExcludedLeaders,
			ItemSearchURL:   cfg.Sources.ItemSearch,
			Location:        cfg.Location(),
		}),
		log: log,
	}

	fetcher := scrape.NewFetcher(scrape.Options{
		UserAgent:             cfg.Sources.UserAgent,
		Timeout:               cfg.Sources.Timeout,
		MaxConcurrencyPerHost: cfg.Sources.PerHost,
		DelayBetweenRequests:  cfg.Sources.RequestDelay,
	}, logging.For("fetcher"))

	deps := processor.Deps{
		Fetcher:   fetcher,
		Snapshots: snaps,
		Notifier:  notifier,
		Stats:     db,
		Log:       logging.For("processor"),
	}
	if err := a.register(deps); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func openSnapshots(cfg config.SnapshotsConfig, db database.Store) (snapshot.Store, error) {
	if cfg.Backend == "database" {
		return snapshot.NewDBStore(db), nil
	}
	fs, err := snapshot.NewFileStore(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

func newTransport(cfg config.NotifyConfig) (notify.Transport, error) {
	switch cfg.Backend {
	case "discord":
		return notify.NewDiscordTransport(cfg.DiscordWebhooks, cfg.Timeout), nil
	case "telegram":
		t, err := notify.NewTelegramTransport(cfg.TelegramToken, cfg.TelegramChats)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return notify.NewLogTransport(logging.For("messages")), nil
	}
}

// register adds a processor for every configured source. Epics have no
// timer of their own; the groups cycle runs them.
func (a *App) register(d processor.Deps) error {
	src, sched := a.Config.Sources, a.Config.Schedule

	var epics *processor.Epics
	if src.Epics != "" {
		epics = processor.NewEpics(d, src.Epics, a.Config.Epics.ContinentOrder)
	}

	type entry struct {
		url  string
		spec string
		proc processor.Processor
	}
	entries := []entry{
		{src.Auctions, sched.Auctions, processor.NewAuctions(d, src.Auctions, src.ItemSearch)},
		{src.Groups, sched.Groups, processor.NewGroups(d, src.Groups, epics)},
		{src.Forum, sched.Forum, processor.NewForum(d, src.Forum, src.ForumMode)},
		{src.Alerts, sched.Alerts, processor.NewAlerts(d, src.Alerts, a.Config.Alerts.Exclude)},
	}
	for _, e := range entries {
		if e.url == "" {
			a.log.Info().Str("domain", e.proc.Name()).Msg("No source configured, domain disabled")
			continue
		}
		if err := a.Poller.Register(e.proc, e.spec); err != nil {
			return err
		}
	}
	return nil
}

// Run starts the schedule and, when configured, the HTTP API. It blocks
// until ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.Poller.Start()
	defer a.Poller.Stop()

	if a.Config.Server.Listen == "" {
		<-ctx.Done()
		return nil
	}

	srv := server.New(a.Reporter, a.Poller, logging.For("server"))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(a.Config.Server.Listen) }()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn().Err(err).Msg("Server shutdown")
	}
	return nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}
