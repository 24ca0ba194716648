package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	logx "provermon/pkg/logx"
)

//go:embed postgres.sql
var postgresSchema string

const postgresConnectTimeout = 10 * time.Second

type postgresStore struct {
	pool *pgxpool.Pool
	log  logx.Logger

	maxRows    int
	opCount    atomic.Uint64
	pruneEvery uint64
}

// openPostgres connects, fails fast when the database is unreachable and
// applies the schema. Applying it again is a no-op.
func openPostgres(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), postgresConnectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &postgresStore{pool: pool, log: log, maxRows: cfg.MaxRows, pruneEvery: 100}, nil
}

func (s *postgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *postgresStore) AppendNotification(ctx context.Context, e Entry) error {
	if s == nil || s.pool == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO provermon_notifications(id, at, kind, key, channel, ok, err)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.At, e.Kind, nullStr(e.Key), e.Channel, e.OK, nullStr(e.Error))
	if err != nil {
		return err
	}
	if s.opCount.Add(1)%s.pruneEvery == 0 {
		if _, err := s.pool.Exec(ctx, `
			DELETE FROM provermon_notifications
			WHERE seq <= (SELECT MAX(seq) FROM provermon_notifications) - $1
		`, s.maxRows); err != nil {
			s.log.Debug("history prune failed", logx.Err(err))
		}
	}
	return nil
}

func (s *postgresStore) RecentNotifications(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.pool == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 || limit > s.maxRows {
		limit = s.maxRows
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, at, kind, COALESCE(key, ''), channel, ok, COALESCE(err, '')
		FROM provermon_notifications
		ORDER BY seq DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.At, &e.Kind, &e.Key, &e.Channel, &e.OK, &e.Error); err != nil {
			return nil, err
		}
		e.At = e.At.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
