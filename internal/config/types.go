package config

import (
	"errors"
	"time"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	DefaultGRPCEndpoint      = "https://rpc.mainnet.succinct.xyz"
	DefaultPollInterval      = 60 * time.Second
	DefaultHeartbeatInterval = 3600 * time.Second
	DefaultFetchTimeout      = 20 * time.Second
	DefaultLogLevel          = "INFO"
	DefaultExplorerBase      = "https://explorer.succinct.xyz"
	DefaultAlertTitle        = "Succinct Prover"
	DefaultNotifyRate        = 1.0
	DefaultStorageDriver     = "none"
	DefaultStoragePath       = "./data/provermon.db"
	DefaultHistoryMaxRows    = 5000
)

// Keys.
const (
	KeyProverAddress     = "prover_address"
	KeyDiscordWebhookURL = "discord_webhook_url"
	KeyGRPCEndpoint      = "grpc_endpoint"
	KeyPollInterval      = "poll_interval"
	KeyHeartbeatInterval = "heartbeat_interval"
	KeyHeartbeatSchedule = "heartbeat_schedule"
	KeyHeartbeatOnEmpty  = "heartbeat_on_empty"
	KeyStartupMessage    = "startup_message"
	KeyFetchTimeout      = "fetch_timeout"
	KeyLogLevel          = "log_level"
	KeyLogFile           = "log_file"
	KeyExplorerBase      = "explorer_base"
	KeyAlertTitle        = "alert_title"
	KeyTelegramBotToken  = "telegram_bot_token"
	KeyTelegramChatID    = "telegram_chat_id"
	KeyNotifyRatePerSec  = "notify_rate_per_sec"
	KeyStorageDriver     = "storage_driver"
	KeyStoragePath       = "storage_path"
	KeyStorageDSN        = "storage_dsn"
	KeyHistoryMaxRows    = "history_max_rows"
	KeyStatusAddr        = "status_addr"
	KeyStatusPprof       = "status_pprof"
	KeySystemdNotify     = "systemd_notify"
)

type Config struct {
	ProverAddress     string `yaml:"prover_address" json:"prover_address"`
	DiscordWebhookURL string `yaml:"discord_webhook_url" json:"discord_webhook_url"`
	GRPCEndpoint      string `yaml:"grpc_endpoint" json:"grpc_endpoint"`

	PollInterval      time.Duration `yaml:"poll_interval" json:"poll_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" json:"heartbeat_interval"`
	HeartbeatSchedule string        `yaml:"heartbeat_schedule,omitempty" json:"heartbeat_schedule,omitempty"`
	HeartbeatOnEmpty  bool          `yaml:"heartbeat_on_empty" json:"heartbeat_on_empty"`
	StartupMessage    bool          `yaml:"startup_message" json:"startup_message"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`

	LogLevel string `yaml:"log_level" json:"log_level"`
	LogFile  string `yaml:"log_file,omitempty" json:"log_file,omitempty"`

	ExplorerBase string `yaml:"explorer_base" json:"explorer_base"`
	AlertTitle   string `yaml:"alert_title" json:"alert_title"`

	TelegramBotToken string  `yaml:"telegram_bot_token,omitempty" json:"telegram_bot_token,omitempty"`
	TelegramChatID   int64   `yaml:"telegram_chat_id,omitempty" json:"telegram_chat_id,omitempty"`
	NotifyRatePerSec float64 `yaml:"notify_rate_per_sec" json:"notify_rate_per_sec"`

	StorageDriver  string `yaml:"storage_driver" json:"storage_driver"`
	StoragePath    string `yaml:"storage_path" json:"storage_path"`
	StorageDSN     string `yaml:"storage_dsn,omitempty" json:"storage_dsn,omitempty"`
	HistoryMaxRows int    `yaml:"history_max_rows" json:"history_max_rows"`

	StatusAddr    string `yaml:"status_addr,omitempty" json:"status_addr,omitempty"`
	StatusPprof   bool   `yaml:"status_pprof" json:"status_pprof"`
	SystemdNotify bool   `yaml:"systemd_notify" json:"systemd_notify"`
}

// TelegramEnabled reports whether the Telegram sink is configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

// Redacted returns a copy with secrets masked, safe to print or log.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.DiscordWebhookURL = redactURL(cp.DiscordWebhookURL)
	if cp.TelegramBotToken != "" {
		cp.TelegramBotToken = "***"
	}
	if cp.StorageDSN != "" {
		cp.StorageDSN = redactURL(cp.StorageDSN)
	}
	return &cp
}
