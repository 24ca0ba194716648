package config

import (
	logx "provermon/pkg/logx"
)

// SummarizeChange lists the keys that differ between two configs and safe
// log attributes for them. Secrets are reported only as set/unset.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var (
		changed []string
		attrs   []logx.Field
	)
	str := func(key, a, b string) {
		if a != b {
			changed = append(changed, key)
			attrs = append(attrs, logx.String(key, b))
		}
	}
	flag := func(key string, a, b bool) {
		if a != b {
			changed = append(changed, key)
			attrs = append(attrs, logx.Bool(key, b))
		}
	}
	secret := func(key, a, b string) {
		if a != b {
			changed = append(changed, key)
			attrs = append(attrs, logx.Bool(key+"_set", b != ""))
		}
	}

	str(KeyProverAddress, oldCfg.ProverAddress, newCfg.ProverAddress)
	secret(KeyDiscordWebhookURL, oldCfg.DiscordWebhookURL, newCfg.DiscordWebhookURL)
	str(KeyGRPCEndpoint, oldCfg.GRPCEndpoint, newCfg.GRPCEndpoint)
	str(KeyPollInterval, oldCfg.PollInterval.String(), newCfg.PollInterval.String())
	str(KeyHeartbeatInterval, oldCfg.HeartbeatInterval.String(), newCfg.HeartbeatInterval.String())
	str(KeyHeartbeatSchedule, oldCfg.HeartbeatSchedule, newCfg.HeartbeatSchedule)
	flag(KeyHeartbeatOnEmpty, oldCfg.HeartbeatOnEmpty, newCfg.HeartbeatOnEmpty)
	flag(KeyStartupMessage, oldCfg.StartupMessage, newCfg.StartupMessage)
	str(KeyFetchTimeout, oldCfg.FetchTimeout.String(), newCfg.FetchTimeout.String())
	str(KeyLogLevel, oldCfg.LogLevel, newCfg.LogLevel)
	str(KeyLogFile, oldCfg.LogFile, newCfg.LogFile)
	str(KeyExplorerBase, oldCfg.ExplorerBase, newCfg.ExplorerBase)
	str(KeyAlertTitle, oldCfg.AlertTitle, newCfg.AlertTitle)
	secret(KeyTelegramBotToken, oldCfg.TelegramBotToken, newCfg.TelegramBotToken)
	if oldCfg.TelegramChatID != newCfg.TelegramChatID {
		changed = append(changed, KeyTelegramChatID)
		attrs = append(attrs, logx.Int64(KeyTelegramChatID, newCfg.TelegramChatID))
	}
	if oldCfg.NotifyRatePerSec != newCfg.NotifyRatePerSec {
		changed = append(changed, KeyNotifyRatePerSec)
		attrs = append(attrs, logx.Float64(KeyNotifyRatePerSec, newCfg.NotifyRatePerSec))
	}
	str(KeyStorageDriver, oldCfg.StorageDriver, newCfg.StorageDriver)
	str(KeyStoragePath, oldCfg.StoragePath, newCfg.StoragePath)
	secret(KeyStorageDSN, oldCfg.StorageDSN, newCfg.StorageDSN)
	if oldCfg.HistoryMaxRows != newCfg.HistoryMaxRows {
		changed = append(changed, KeyHistoryMaxRows)
		attrs = append(attrs, logx.Int(KeyHistoryMaxRows, newCfg.HistoryMaxRows))
	}
	str(KeyStatusAddr, oldCfg.StatusAddr, newCfg.StatusAddr)
	flag(KeyStatusPprof, oldCfg.StatusPprof, newCfg.StatusPprof)
	flag(KeySystemdNotify, oldCfg.SystemdNotify, newCfg.SystemdNotify)
	return changed, attrs
}

// LiveKeys are applied without a restart.
var LiveKeys = map[string]bool{KeyLogLevel: true}

// NeedsRestart filters changed keys down to those that only take effect
// after a restart.
func NeedsRestart(changed []string) []string {
	var out []string
	for _, k := range changed {
		if !LiveKeys[k] {
			out = append(out, k)
		}
	}
	return out
}
