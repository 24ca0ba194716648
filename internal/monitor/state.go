package monitor

import (
	"time"

	"provermon/internal/prover"
)

// State is the loop's mutable state.
type State struct {
	// LastSeenKey is nil until the first record is observed.
	LastSeenKey *prover.DedupeKey `json:"last_seen_key,omitempty"`
	// LastHeartbeat is in epoch seconds.
	LastHeartbeat int64 `json:"last_heartbeat"`
	Running       bool  `json:"running"`
}

// Snapshot is a read-only copy of the loop state plus counters.
type Snapshot struct {
	State

	StartedAt  time.Time      `json:"started_at,omitempty"`
	LastTick   time.Time      `json:"last_tick,omitempty"`
	LastRecord *prover.Record `json:"last_record,omitempty"`
	LastError  string         `json:"last_error,omitempty"`

	Ticks        uint64 `json:"ticks"`
	Changes      uint64 `json:"changes"`
	Heartbeats   uint64 `json:"heartbeats"`
	FetchErrors  uint64 `json:"fetch_errors"`
	NotifyErrors uint64 `json:"notify_errors"`
}

// LastSeen returns the string form of LastSeenKey, or "" when unset.
func (s Snapshot) LastSeen() string {
	if s.LastSeenKey == nil {
		return ""
	}
	return s.LastSeenKey.String()
}
