package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

// discordMaxDescription is the embed description limit.
const discordMaxDescription = 4096

type discordEmbed struct {
	Description string `json:"description"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordMessage struct {
	ID string `json:"id"`
}

// DiscordTransport posts through one webhook per channel. Messages are
// sent as a single embed so that edits keep their layout.
type DiscordTransport struct {
	client   *resty.Client
	webhooks map[string]string
}

// NewDiscordTransport creates a transport for the given channel webhooks.
func NewDiscordTransport(webhooks map[string]string, timeout time.Duration) *DiscordTransport {
	client := resty.New().
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() == http.StatusTooManyRequests
		})
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	hooks := make(map[string]string, len(webhooks))
	for ch, u := range webhooks {
		hooks[ch] = strings.TrimRight(u, "/")
	}
	return &DiscordTransport{client: client, webhooks: hooks}
}

func (t *DiscordTransport) Name() string { return "discord" }

func (t *DiscordTransport) webhook(channel string) (string, error) {
	u, ok := t.webhooks[channel]
	if !ok || u == "" {
		return "", fmt.Errorf("%s: %w", channel, ErrUnknownChannel)
	}
	return u, nil
}

func payload(text string) discordPayload {
	if r := []rune(text); len(r) > discordMaxDescription {
		text = string(r[:discordMaxDescription-1]) + "…"
	}
	return discordPayload{Embeds: []discordEmbed{{Description: text}}}
}

func (t *DiscordTransport) Send(ctx context.Context, channel, text string) (string, error) {
	u, err := t.webhook(channel)
	if err != nil {
		return "", err
	}
	var msg discordMessage
	res, err := t.client.R().
		SetContext(ctx).
		SetQueryParam("wait", "true").
		SetBody(payload(text)).
		SetResult(&msg).
		Post(u)
	if err != nil {
		return "", err
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("discord send: unexpected status %d", res.StatusCode())
	}
	if msg.ID == "" {
		return "", fmt.Errorf("discord send: no message id in response")
	}
	return msg.ID, nil
}

func (t *DiscordTransport) Edit(ctx context.Context, channel, id, text string) error {
	u, err := t.webhook(channel)
	if err != nil {
		return err
	}
	res, err := t.client.R().
		SetContext(ctx).
		SetBody(payload(text)).
		Patch(u + "/messages/" + id)
	if err != nil {
		return err
	}
	if !res.IsSuccess() {
		return fmt.Errorf("discord edit: unexpected status %d", res.StatusCode())
	}
	return nil
}

func (t *DiscordTransport) Delete(ctx context.Context, channel, id string) error {
	u, err := t.webhook(channel)
	if err != nil {
		return err
	}
	res, err := t.client.R().SetContext(ctx).Delete(u + "/messages/" + id)
	if err != nil {
		return err
	}
	// Already gone is fine.
	if !res.IsSuccess() && res.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("discord delete: unexpected status %d", res.StatusCode())
	}
	return nil
}
