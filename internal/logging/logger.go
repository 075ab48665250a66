// Package logging configures the process-wide zerolog logger.
//
// Call Init once from main, then take a component logger with For:
//
//	log := logging.For("auctions")
//	log.Info().Int("items", n).Msg("Checked auctions")
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error. Default info.
	Level string `koanf:"level"`
	// Format is json or console. Default console.
	Format string `koanf:"format"`
	// Output defaults to os.Stderr.
	Output io.Writer `koanf:"-"`
}

var (
	mu   sync.RWMutex
	root = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Init (re)configures the root logger.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if !strings.EqualFold(cfg.Format, "json") {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "2006-01-02 15:04:05"}
	}

	mu.Lock()
	root = zerolog.New(out).With().Timestamp().Logger()
	mu.Unlock()
}

// ParseLevel converts a level name. Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the root logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// For returns a logger tagged with the component name.
func For(component string) zerolog.Logger {
	return Logger().With().Str("component", component).Logger()
}

// CronLogger adapts a zerolog logger to the interface robfig/cron expects.
type CronLogger struct {
	Log zerolog.Logger
}

// Info logs routine scheduler messages at debug level.
func (l CronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Log.Debug().Fields(keysAndValues).Msg(msg)
}

// Error logs scheduler failures.
func (l CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
