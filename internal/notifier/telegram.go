package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "provermon/pkg/logx"
)

const defaultTelegramTimeout = 15 * time.Second

type TelegramConfig struct {
	Token   string
	ChatID  int64
	Timeout time.Duration

	// APIURL overrides the Bot API base URL (tests, local bot servers).
	APIURL string
}

// Telegram sends messages through a bot. It never polls for updates.
type Telegram struct {
	cfg TelegramConfig
	bot *tele.Bot
	log logx.Logger
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTelegramTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: cfg.Timeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Telegram{cfg: cfg, bot: b, log: log}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Send renders the message as HTML and sends it to the configured chat.
// telebot has no per-call context, so ctx is only checked up front; the
// client timeout bounds the call.
func (t *Telegram) Send(ctx context.Context, msg Message) error {
	if msg.Empty() {
		t.log.Warn("telegram payload empty; nothing to send", logx.String("kind", string(msg.Kind)))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := RenderHTML(msg).String()
	chat := &tele.Chat{ID: t.cfg.ChatID}
	opt := &tele.SendOptions{ParseMode: tele.ModeHTML, DisableWebPagePreview: true}
	if _, err := t.bot.Send(chat, text, opt); err != nil {
		// The request URL embeds the bot token; never surface it.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("%w: telegram: %w", ErrDelivery, err)
	}
	return nil
}
