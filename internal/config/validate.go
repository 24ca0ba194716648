package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"provermon/internal/prover"
	"provermon/internal/schedule"
	"provermon/internal/storage"
	logx "provermon/pkg/logx"
)

// Validate reports every problem at once, joined, each wrapping ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.ProverAddress == "" {
		add("PROVER_ADDRESS must be set")
	} else if _, err := prover.ParseAddress(c.ProverAddress); err != nil {
		add("PROVER_ADDRESS: %v", err)
	}

	tgPartial := (c.TelegramBotToken == "") != (c.TelegramChatID == 0)
	switch {
	case tgPartial:
		add("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	case c.DiscordWebhookURL == "" && !c.TelegramEnabled():
		add("DISCORD_WEBHOOK_URL must be set")
	}
	if c.DiscordWebhookURL != "" && !isHTTPURL(c.DiscordWebhookURL) {
		add("DISCORD_WEBHOOK_URL must be an http(s) URL")
	}
	if !isHTTPURL(c.ExplorerBase) {
		add("EXPLORER_BASE must be an http(s) URL")
	}

	if c.PollInterval < time.Second {
		add("POLL_INTERVAL must be >= 1s")
	}
	if c.HeartbeatSchedule != "" {
		if _, err := schedule.Parse(c.HeartbeatSchedule, time.UTC); err != nil {
			add("HEARTBEAT_SCHEDULE: %v", err)
		}
	} else if c.HeartbeatInterval < time.Second {
		add("HEARTBEAT_INTERVAL must be >= 1s")
	}
	if c.FetchTimeout <= 0 {
		add("FETCH_TIMEOUT must be > 0")
	}

	if !logx.ValidLevel(c.LogLevel) {
		add("LOG_LEVEL %q is not one of TRACE, DEBUG, INFO, WARN, ERROR, CRITICAL", c.LogLevel)
	}
	if c.NotifyRatePerSec < 0 {
		add("NOTIFY_RATE_PER_SEC must be >= 0")
	}
	if !storage.ValidDriver(c.StorageDriver) {
		add("STORAGE_DRIVER %q is not one of none, file, sqlite, postgres", c.StorageDriver)
	} else if strings.HasPrefix(strings.ToLower(strings.TrimSpace(c.StorageDriver)), "postgres") && c.StorageDSN == "" {
		add("STORAGE_DSN must be set for the postgres driver")
	}
	if c.HistoryMaxRows < 0 {
		add("HISTORY_MAX_ROWS must be >= 0")
	}
	return errors.Join(errs...)
}

// Address returns the parsed prover address. Call after Validate.
func (c *Config) Address() prover.Address {
	a, _ := prover.ParseAddress(c.ProverAddress)
	return a
}

// Heartbeat returns the heartbeat cadence: the cron schedule when set,
// otherwise the interval.
func (c *Config) Heartbeat() (schedule.Cadence, error) {
	if c.HeartbeatSchedule != "" {
		return schedule.Parse(c.HeartbeatSchedule, time.UTC)
	}
	if c.HeartbeatInterval < time.Second {
		return schedule.Cadence{}, fmt.Errorf("%w: HEARTBEAT_INTERVAL must be >= 1s", ErrInvalid)
	}
	return schedule.Every(c.HeartbeatInterval), nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	// Webhook paths carry the token; keep only scheme and host.
	return u.Scheme + "://" + u.Host + "/" + strings.Repeat("*", 3)
}
