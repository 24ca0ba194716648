package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Options selects the optional file sources.
type Options struct {
	// File is an explicit config file (yaml, json, toml or .env). Optional.
	File string
	// EnvFile is a dotenv file applied below File and the environment.
	// Empty means ".env" if present; "-" disables it.
	EnvFile string
}

var keys = []string{
	KeyProverAddress, KeyDiscordWebhookURL, KeyGRPCEndpoint,
	KeyPollInterval, KeyHeartbeatInterval, KeyHeartbeatSchedule, KeyHeartbeatOnEmpty,
	KeyStartupMessage, KeyFetchTimeout, KeyLogLevel, KeyLogFile,
	KeyExplorerBase, KeyAlertTitle, KeyTelegramBotToken, KeyTelegramChatID,
	KeyNotifyRatePerSec, KeyStorageDriver, KeyStoragePath, KeyStorageDSN, KeyHistoryMaxRows,
	KeyStatusAddr, KeyStatusPprof, KeySystemdNotify,
}

// Load reads and validates the configuration.
func Load(opts Options) (*Config, error) {
	cfg, err := Read(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads the configuration without validating it.
func Read(opts Options) (*Config, error) {
	v, err := newViper(opts)
	if err != nil {
		return nil, err
	}
	return fromViper(v)
}

func newViper(opts Options) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(KeyProverAddress, "")
	v.SetDefault(KeyDiscordWebhookURL, "")
	v.SetDefault(KeyGRPCEndpoint, DefaultGRPCEndpoint)
	v.SetDefault(KeyPollInterval, "60")
	v.SetDefault(KeyHeartbeatInterval, "3600")
	v.SetDefault(KeyHeartbeatSchedule, "")
	v.SetDefault(KeyHeartbeatOnEmpty, true)
	v.SetDefault(KeyStartupMessage, false)
	v.SetDefault(KeyFetchTimeout, DefaultFetchTimeout.String())
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyExplorerBase, DefaultExplorerBase)
	v.SetDefault(KeyAlertTitle, DefaultAlertTitle)
	v.SetDefault(KeyTelegramBotToken, "")
	v.SetDefault(KeyTelegramChatID, "")
	v.SetDefault(KeyNotifyRatePerSec, strconv.FormatFloat(DefaultNotifyRate, 'f', -1, 64))
	v.SetDefault(KeyStorageDriver, DefaultStorageDriver)
	v.SetDefault(KeyStoragePath, DefaultStoragePath)
	v.SetDefault(KeyStorageDSN, "")
	v.SetDefault(KeyHistoryMaxRows, DefaultHistoryMaxRows)
	v.SetDefault(KeyStatusAddr, "")
	v.SetDefault(KeyStatusPprof, false)
	v.SetDefault(KeySystemdNotify, true)

	// A dotenv file only overrides built-in defaults, so it is layered in as
	// defaults and survives a re-read of the main config file.
	if err := applyEnvFile(v, opts.EnvFile); err != nil {
		return nil, err
	}

	if f := strings.TrimSpace(opts.File); f != "" {
		v.SetConfigFile(f)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", f, err)
		}
	}

	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func applyEnvFile(v *viper.Viper, path string) error {
	path = strings.TrimSpace(path)
	if path == "-" {
		return nil
	}
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}

	ev := viper.New()
	ev.SetConfigFile(path)
	ev.SetConfigType("env")
	if err := ev.ReadInConfig(); err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	for k, val := range ev.AllSettings() {
		v.SetDefault(k, val)
	}
	return nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	str := func(k string) string { return strings.TrimSpace(v.GetString(k)) }

	cfg := &Config{
		ProverAddress:     str(KeyProverAddress),
		DiscordWebhookURL: str(KeyDiscordWebhookURL),
		GRPCEndpoint:      str(KeyGRPCEndpoint),
		HeartbeatSchedule: str(KeyHeartbeatSchedule),
		HeartbeatOnEmpty:  v.GetBool(KeyHeartbeatOnEmpty),
		StartupMessage:    v.GetBool(KeyStartupMessage),
		LogLevel:          strings.ToUpper(str(KeyLogLevel)),
		LogFile:           str(KeyLogFile),
		ExplorerBase:      str(KeyExplorerBase),
		AlertTitle:        str(KeyAlertTitle),
		TelegramBotToken:  str(KeyTelegramBotToken),
		StorageDriver:     strings.ToLower(str(KeyStorageDriver)),
		StoragePath:       str(KeyStoragePath),
		StorageDSN:        str(KeyStorageDSN),
		StatusAddr:        str(KeyStatusAddr),
		StatusPprof:       v.GetBool(KeyStatusPprof),
		SystemdNotify:     v.GetBool(KeySystemdNotify),
	}
	if cfg.GRPCEndpoint == "" {
		cfg.GRPCEndpoint = DefaultGRPCEndpoint
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	var err error
	if cfg.PollInterval, err = ParseSecondsOrDuration("POLL_INTERVAL", str(KeyPollInterval), DefaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.HeartbeatInterval, err = ParseSecondsOrDuration("HEARTBEAT_INTERVAL", str(KeyHeartbeatInterval), DefaultHeartbeatInterval); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = ParseSecondsOrDuration("FETCH_TIMEOUT", str(KeyFetchTimeout), DefaultFetchTimeout); err != nil {
		return nil, err
	}

	if s := str(KeyTelegramChatID); s != "" {
		if cfg.TelegramChatID, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, fmt.Errorf("%w: TELEGRAM_CHAT_ID: %q is not an integer", ErrInvalid, s)
		}
	}
	cfg.NotifyRatePerSec = DefaultNotifyRate
	if s := str(KeyNotifyRatePerSec); s != "" {
		if cfg.NotifyRatePerSec, err = strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("%w: NOTIFY_RATE_PER_SEC: %q is not a number", ErrInvalid, s)
		}
	}
	cfg.HistoryMaxRows = DefaultHistoryMaxRows
	if s := str(KeyHistoryMaxRows); s != "" {
		if cfg.HistoryMaxRows, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("%w: HISTORY_MAX_ROWS: %q is not an integer", ErrInvalid, s)
		}
	}
	return cfg, nil
}
