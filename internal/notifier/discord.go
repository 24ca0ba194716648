package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "provermon/pkg/logx"
)

const (
	defaultDiscordTimeout = 15 * time.Second
	maxErrorBody          = 512
)

type DiscordConfig struct {
	WebhookURL string
	Timeout    time.Duration
	Username   string
}

// Discord posts messages to a Discord webhook.
type Discord struct {
	cfg  DiscordConfig
	http *http.Client
	log  logx.Logger
}

type discordPayload struct {
	Content  string  `json:"content,omitempty"`
	Username string  `json:"username,omitempty"`
	Embeds   []Embed `json:"embeds,omitempty"`
}

func NewDiscord(cfg DiscordConfig, log logx.Logger) (*Discord, error) {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil, errors.New("discord webhook url is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultDiscordTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Discord{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log}, nil
}

func (d *Discord) Name() string { return "discord" }

// Send posts the message. An empty message is logged and skipped.
// Discord answers 204 No Content on success (200 when ?wait=true).
func (d *Discord) Send(ctx context.Context, msg Message) error {
	if msg.Empty() {
		d.log.Warn("discord payload empty; nothing to send", logx.String("kind", string(msg.Kind)))
		return nil
	}

	body, err := json.Marshal(discordPayload{Content: msg.Text, Username: d.cfg.Username, Embeds: msg.Embeds})
	if err != nil {
		return fmt.Errorf("discord: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		// The URL embeds the webhook token; never surface it.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("%w: discord: %w", ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		d.log.Error("discord webhook failed",
			logx.Int("status", resp.StatusCode),
			logx.String("body", strings.TrimSpace(string(b))),
		)
		return fmt.Errorf("%w: discord: status %d: %s", ErrDelivery, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
