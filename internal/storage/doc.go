// Package storage persists the notification history.
//
// History is observational only: the monitor never reads it back to make
// decisions, so losing it (or running with storage disabled) changes
// nothing about what gets sent.
//
// Drivers:
//   - "file":   append-only JSON Lines file
//   - "sqlite": SQLite database (modernc.org/sqlite, pure Go)
//   - "postgres": shared PostgreSQL table (pgx connection pool)
package storage
