package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

const DefaultTelegramURL = "https://api.telegram.org"

type TelegramConfig struct {
	Token   string
	ChatID  string
	APIURL  string
	Timeout time.Duration
	Client  *http.Client
}

// chatRecipient is a numeric chat id or an @channel name, passed through as
// chat_id.
type chatRecipient string

func (r chatRecipient) Recipient() string { return string(r) }

// TelegramSender posts plain-text messages to one chat with link previews off.
type TelegramSender struct {
	bot   *tele.Bot
	chat  chatRecipient
	token string
}

func NewTelegramSender(cfg TelegramConfig) (*TelegramSender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		return nil, errors.New("telegram chat id is empty")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultTelegramURL
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.APIURL,
		Client:  client,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramSender{
		bot:   b,
		chat:  chatRecipient(strings.TrimSpace(cfg.ChatID)),
		token: cfg.Token,
	}, nil
}

func (s *TelegramSender) Send(ctx context.Context, b Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.bot.Send(s.chat, b.Text, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
		// Transport errors carry the request URL, which embeds the token.
		return fmt.Errorf("telegram sendMessage failed: %s", strings.ReplaceAll(err.Error(), s.token, "<token>"))
	}
	return nil
}
