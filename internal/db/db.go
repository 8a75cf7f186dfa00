package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors surfaced by the commit operations so callers can tell an
// expected race outcome from a real failure.
var (
	// ErrQuotaExhausted means the transactional sent_today increment found
	// the daily limit already reached.
	ErrQuotaExhausted = errors.New("daily send quota exhausted")

	// ErrLeadConflict means the lead's (status, last_sent_at) changed under
	// us between selection and commit.
	ErrLeadConflict = errors.New("lead state changed concurrently")
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, conn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, conn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

// InitSchema creates tables on first boot and seeds the singleton campaign
// row. Safe to run on every startup. Statements run one at a time; pgx's
// extended protocol does not accept multi-statement strings.
func (s *Store) InitSchema(ctx context.Context, dailyLimit int) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS leads (
			id             BIGSERIAL PRIMARY KEY,
			email          TEXT NOT NULL UNIQUE,
			attributes     JSONB NOT NULL DEFAULT '{}',
			status         TEXT NOT NULL DEFAULT 'PENDING',
			followup_count INT NOT NULL DEFAULT 0,
			last_sent_at   TIMESTAMPTZ,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS campaign_state (
			id              INT PRIMARY KEY CHECK (id = 1),
			run_status      TEXT NOT NULL DEFAULT 'STOPPED',
			sent_today      INT NOT NULL DEFAULT 0,
			daily_limit     INT NOT NULL DEFAULT 500,
			last_reset_date TEXT NOT NULL DEFAULT '',
			reply_watermark TIMESTAMPTZ,
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS activity_log (
			id         BIGSERIAL PRIMARY KEY,
			lead_email TEXT,
			event      TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS templates (
			stage      TEXT PRIMARY KEY,
			subject    TEXT NOT NULL,
			body       TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema init failed: %w", err)
		}
	}

	if _, err := s.Pool.Exec(ctx,
		`INSERT INTO campaign_state (id, daily_limit)
		 VALUES (1, $1)
		 ON CONFLICT (id) DO NOTHING`,
		dailyLimit,
	); err != nil {
		return fmt.Errorf("campaign seed failed: %w", err)
	}

	return nil
}
