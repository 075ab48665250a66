package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogTransport writes messages to the log instead of a chat. It is the
// default backend and what dry runs use.
type LogTransport struct {
	log zerolog.Logger
}

// NewLogTransport creates a LogTransport.
func NewLogTransport(log zerolog.Logger) *LogTransport {
	return &LogTransport{log: log}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Send(_ context.Context, channel, text string) (string, error) {
	id := uuid.NewString()
	t.log.Info().Str("channel", channel).Str("id", id).Msg(text)
	return id, nil
}

func (t *LogTransport) Edit(_ context.Context, channel, id, text string) error {
	t.log.Info().Str("channel", channel).Str("id", id).Bool("edit", true).Msg(text)
	return nil
}

func (t *LogTransport) Delete(_ context.Context, channel, id string) error {
	t.log.Info().Str("channel", channel).Str("id", id).Msg("Deleted message")
	return nil
}
