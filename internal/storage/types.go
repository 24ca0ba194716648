package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver string
	Path   string
	// DSN is the postgres connection string.
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
	MaxRows     int           // retention; 0 means default
}

const defaultMaxRows = 5000

// Entry is one notification delivery attempt.
type Entry struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	Key     string    `json:"key,omitempty"`
	Channel string    `json:"channel"`
	OK      bool      `json:"ok"`
	Error   string    `json:"error,omitempty"`
}

// Store is the persistence API used by the notifier and the status API.
type Store interface {
	AppendNotification(ctx context.Context, e Entry) error
	// RecentNotifications returns up to limit entries, newest first.
	RecentNotifications(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}
