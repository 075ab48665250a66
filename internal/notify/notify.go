// Package notify delivers messages to the chat channels and remembers what
// was posted so later cycles can edit or clean up their messages.
package notify

import (
	"context"
	"errors"
)

// Channel keys.
const (
	ChannelGroups   = "groups"
	ChannelAuctions = "auctions"
	ChannelEpics    = "epics"
	ChannelForum    = "forum"
	ChannelAlerts   = "alerts"
)

// Channels lists every channel key.
var Channels = []string{ChannelGroups, ChannelAuctions, ChannelEpics, ChannelForum, ChannelAlerts}

// ErrUnknownChannel is returned for a channel with no destination.
var ErrUnknownChannel = errors.New("unknown channel")

// Handle identifies a posted message.
type Handle struct {
	Channel string `json:"channel"`
	ID      string `json:"id"`
	Text    string `json:"text"`
}

// Notifier posts and edits messages.
type Notifier interface {
	Notify(ctx context.Context, channel, text string) (Handle, error)
	Edit(ctx context.Context, h Handle, text string) error
	// FindRecent returns the newest of the last limit messages of channel
	// whose text satisfies pred.
	FindRecent(ctx context.Context, channel string, pred func(text string) bool, limit int) (Handle, bool, error)
	DeleteAllRecent(ctx context.Context, channel string) error
}

// Transport talks to one chat backend. It knows nothing about history.
type Transport interface {
	Name() string
	Send(ctx context.Context, channel, text string) (id string, err error)
	Edit(ctx context.Context, channel, id, text string) error
	Delete(ctx context.Context, channel, id string) error
}
