// Package config loads the watcher configuration from defaults, an optional
// YAML file and MUDWATCH_ environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"

	"github.com/bryan-buckman/mudwatch/internal/logging"
	"github.com/bryan-buckman/mudwatch/internal/notify"
)

// EnvPrefix prefixes every environment override. The first underscore after
// the prefix separates the section: MUDWATCH_SOURCES_USER_AGENT sets
// sources.user_agent.
const EnvPrefix = "MUDWATCH_"

// ConfigPathEnvVar names the config file when --config is not given.
const ConfigPathEnvVar = "MUDWATCH_CONFIG"

// DefaultConfigPaths are tried in order when no path is given.
var DefaultConfigPaths = []string{
	"mudwatch.yaml",
	"mudwatch.yml",
	"/etc/mudwatch/mudwatch.yaml",
}

// Config is the full configuration.
type Config struct {
	Log       logging.Config  `koanf:"log"`
	Database  DatabaseConfig  `koanf:"database"`
	Snapshots SnapshotsConfig `koanf:"snapshots"`
	Sources   SourcesConfig   `koanf:"sources"`
	Schedule  ScheduleConfig  `koanf:"schedule"`
	Notify    NotifyConfig    `koanf:"notify"`
	Epics     EpicsConfig     `koanf:"epics"`
	Alerts    AlertsConfig    `koanf:"alerts"`
	Stats     StatsConfig     `koanf:"stats"`
	Server    ServerConfig    `koanf:"server"`
}

// DatabaseConfig selects the stats backend.
type DatabaseConfig struct {
	// Driver is sqlite or postgres.
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// SnapshotsConfig selects where snapshots and the message journal live.
type SnapshotsConfig struct {
	// Backend is file or database.
	Backend string `koanf:"backend"`
	Dir     string `koanf:"dir"`
}

// SourcesConfig holds the watched pages.
type SourcesConfig struct {
	Auctions   string `koanf:"auctions"`
	Groups     string `koanf:"groups"`
	Epics      string `koanf:"epics"`
	Forum      string `koanf:"forum"`
	Alerts     string `koanf:"alerts"`
	ItemSearch string `koanf:"item_search"`
	// ForumMode is html or rss.
	ForumMode string `koanf:"forum_mode"`

	UserAgent    string        `koanf:"user_agent"`
	Timeout      time.Duration `koanf:"timeout"`
	PerHost      int           `koanf:"per_host"`
	RequestDelay time.Duration `koanf:"request_delay"`
}

// ScheduleConfig holds one cron spec per scheduled domain. An empty spec
// disables the domain's timer.
type ScheduleConfig struct {
	Auctions     string        `koanf:"auctions"`
	Groups       string        `koanf:"groups"`
	Forum        string        `koanf:"forum"`
	Alerts       string        `koanf:"alerts"`
	CycleTimeout time.Duration `koanf:"cycle_timeout"`
}

// NotifyConfig selects and configures the message transport.
type NotifyConfig struct {
	// Backend is log, discord or telegram.
	Backend     string  `koanf:"backend"`
	JournalSize int     `koanf:"journal_size"`
	Rate        float64 `koanf:"rate"`
	Burst       int     `koanf:"burst"`

	Timeout         time.Duration     `koanf:"timeout"`
	DiscordWebhooks map[string]string `koanf:"discord_webhooks"`
	TelegramToken   string            `koanf:"telegram_token"`
	TelegramChats   map[string]int64  `koanf:"telegram_chats"`
}

// EpicsConfig tunes the epic report.
type EpicsConfig struct {
	ContinentOrder []string `koanf:"continent_order"`
}

// AlertsConfig tunes the alert announcements.
type AlertsConfig struct {
	// Exclude lists adventurers whose alerts are counted but not announced.
	Exclude []string `koanf:"exclude"`
}

// StatsConfig tunes the reports.
type StatsConfig struct {
	ExcludedLeaders []string `koanf:"excluded_leaders"`
	// Timezone renders report dates, an IANA name. Default UTC.
	Timezone string `koanf:"timezone"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Listen is the bind address. Empty disables the server.
	Listen string `koanf:"listen"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Log: logging.Config{Level: "info", Format: "console"},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "mudwatch.db",
		},
		Snapshots: SnapshotsConfig{
			Backend: "file",
			Dir:     "data",
		},
		Sources: SourcesConfig{
			ForumMode:    "html",
			UserAgent:    "mudwatch/1.0",
			Timeout:      30 * time.Second,
			PerHost:      2,
			RequestDelay: 500 * time.Millisecond,
		},
		Schedule: ScheduleConfig{
			Auctions:     "@every 5m",
			Groups:       "@every 5m",
			Forum:        "@every 5m",
			Alerts:       "@every 30s",
			CycleTimeout: 2 * time.Minute,
		},
		Notify: NotifyConfig{
			Backend:     "log",
			JournalSize: notify.DefaultJournalSize,
			Rate:        1,
			Burst:       5,
			Timeout:     15 * time.Second,
		},
		Server: ServerConfig{Listen: ":8080"},
	}
}

// Load reads the configuration. path may be empty, in which case
// MUDWATCH_CONFIG and DefaultConfigPaths are tried; a missing default file
// is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := splitLists(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envKey maps MUDWATCH_SECTION_SOME_KEY to section.some_key.
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if key == "config" {
		return ""
	}
	return strings.Replace(key, "_", ".", 1)
}

var listPaths = []string{
	"epics.continent_order",
	"alerts.exclude",
	"stats.excluded_leaders",
}

// splitLists turns comma separated environment values into lists.
func splitLists(k *koanf.Koanf) error {
	for _, path := range listPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}

	switch c.Snapshots.Backend {
	case "file", "database":
	default:
		errs = append(errs, fmt.Errorf("snapshots.backend must be file or database, got %q", c.Snapshots.Backend))
	}

	switch c.Sources.ForumMode {
	case "html", "rss":
	default:
		errs = append(errs, fmt.Errorf("sources.forum_mode must be html or rss, got %q", c.Sources.ForumMode))
	}

	specs := map[string]string{
		"auctions": c.Schedule.Auctions,
		"groups":   c.Schedule.Groups,
		"forum":    c.Schedule.Forum,
		"alerts":   c.Schedule.Alerts,
	}
	for name, spec := range specs {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("schedule.%s: %w", name, err))
		}
	}

	switch c.Notify.Backend {
	case "log":
	case "discord":
		if len(c.Notify.DiscordWebhooks) == 0 {
			errs = append(errs, errors.New("notify.discord_webhooks is required for the discord backend"))
		}
		errs = append(errs, unknownChannels("notify.discord_webhooks", keys(c.Notify.DiscordWebhooks))...)
	case "telegram":
		if c.Notify.TelegramToken == "" {
			errs = append(errs, errors.New("notify.telegram_token is required for the telegram backend"))
		}
		errs = append(errs, unknownChannels("notify.telegram_chats", keys(c.Notify.TelegramChats))...)
	default:
		errs = append(errs, fmt.Errorf("notify.backend must be log, discord or telegram, got %q", c.Notify.Backend))
	}
	if c.Notify.Rate < 0 {
		errs = append(errs, errors.New("notify.rate must not be negative"))
	}

	if c.Stats.Timezone != "" {
		if _, err := time.LoadLocation(c.Stats.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("stats.timezone: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Location returns the report timezone.
func (c *Config) Location() *time.Location {
	if c.Stats.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Stats.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func unknownChannels(field string, names []string) []error {
	known := make(map[string]bool, len(notify.Channels))
	for _, ch := range notify.Channels {
		known[ch] = true
	}
	var errs []error
	for _, name := range names {
		if !known[name] {
			errs = append(errs, fmt.Errorf("%s: %w: %s", field, notify.ErrUnknownChannel, name))
		}
	}
	return errs
}
