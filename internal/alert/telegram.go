package alert

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	Token       string
	ChatID      string
	APIEndpoint string // tgbotapi.APIEndpoint when empty
}

// Telegram sends alerts to a Telegram chat through a bot.
type Telegram struct {
	token    string
	chatID   int64
	endpoint string

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegram validates the config. The bot connects on the first alert.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram alert: token is required")
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(cfg.ChatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("telegram alert: invalid chat id %q: %w", cfg.ChatID, err)
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	return &Telegram{token: cfg.Token, chatID: chatID, endpoint: cfg.APIEndpoint}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Notify sends the alert text. The context only bounds waiting for the lock;
// tgbotapi has no per-request context.
func (t *Telegram) Notify(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bot, err := t.client()
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, a.Text())
	msg.DisableWebPagePreview = true
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (t *Telegram) client() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(t.token, t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	return bot, nil
}
