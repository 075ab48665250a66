package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramBot is the part of tgbotapi.BotAPI the transport uses.
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramTransport posts to one chat per channel.
type TelegramTransport struct {
	bot   TelegramBot
	chats map[string]int64
}

// NewTelegramTransport authorizes the bot token.
func NewTelegramTransport(token string, chats map[string]int64) (*TelegramTransport, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return NewTelegramTransportWithBot(bot, chats), nil
}

// NewTelegramTransportWithBot uses an existing bot client.
func NewTelegramTransportWithBot(bot TelegramBot, chats map[string]int64) *TelegramTransport {
	return &TelegramTransport{bot: bot, chats: chats}
}

func (t *TelegramTransport) Name() string { return "telegram" }

func (t *TelegramTransport) chat(channel string) (int64, error) {
	id, ok := t.chats[channel]
	if !ok {
		return 0, fmt.Errorf("%s: %w", channel, ErrUnknownChannel)
	}
	return id, nil
}

func messageID(id string) (int, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0, fmt.Errorf("bad telegram message id %q", id)
	}
	return n, nil
}

// The bot library does not take a context; ctx is only checked up front.

func (t *TelegramTransport) Send(ctx context.Context, channel, text string) (string, error) {
	chatID, err := t.chat(channel)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	sent, err := t.bot.Send(msg)
	if err != nil {
		return "", fmt.Errorf("telegram send: %w", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

func (t *TelegramTransport) Edit(ctx context.Context, channel, id, text string) error {
	chatID, err := t.chat(channel)
	if err != nil {
		return err
	}
	msgID, err := messageID(id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.DisableWebPagePreview = true
	if _, err := t.bot.Send(edit); err != nil {
		return fmt.Errorf("telegram edit: %w", err)
	}
	return nil
}

func (t *TelegramTransport) Delete(ctx context.Context, channel, id string) error {
	chatID, err := t.chat(channel)
	if err != nil {
		return err
	}
	msgID, err := messageID(id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
		return fmt.Errorf("telegram delete: %w", err)
	}
	return nil
}
