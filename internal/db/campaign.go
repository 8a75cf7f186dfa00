package db

import (
	"context"
	"time"

	"coldreach/internal/models"
)

func (s *Store) CampaignState(ctx context.Context) (*models.CampaignState, error) {
	var state models.CampaignState
	err := s.Pool.QueryRow(ctx,
		`SELECT run_status, sent_today, daily_limit, last_reset_date, reply_watermark, updated_at
		 FROM campaign_state WHERE id = 1`,
	).Scan(
		&state.RunStatus,
		&state.SentToday,
		&state.DailyLimit,
		&state.LastResetDate,
		&state.ReplyWatermark,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) SetRunStatus(ctx context.Context, status models.RunStatus) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE campaign_state SET run_status = $1, updated_at = NOW() WHERE id = 1`,
		status,
	)
	return err
}

// MarkCompleted flips RUNNING to COMPLETED; a no-op from any other status so
// a racing pause/stop wins.
func (s *Store) MarkCompleted(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE campaign_state
		 SET run_status = 'COMPLETED', updated_at = NOW()
		 WHERE id = 1 AND run_status = 'RUNNING'`,
	)
	return err
}

// ResetDaily zeroes the counter once per calendar day. The conditional WHERE
// makes a same-day double fire a no-op; returns whether a reset happened.
func (s *Store) ResetDaily(ctx context.Context, today string) (bool, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE campaign_state
		 SET sent_today = 0, last_reset_date = $1, updated_at = NOW()
		 WHERE id = 1 AND last_reset_date IS DISTINCT FROM $1`,
		today,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) SetDailyLimit(ctx context.Context, limit int) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE campaign_state SET daily_limit = $1, updated_at = NOW() WHERE id = 1`,
		limit,
	)
	return err
}

// SetReplyWatermark advances the inbound scan cursor. It only moves forward;
// an old scan finishing late cannot rewind it.
func (s *Store) SetReplyWatermark(ctx context.Context, mark time.Time) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE campaign_state
		 SET reply_watermark = $1, updated_at = NOW()
		 WHERE id = 1 AND (reply_watermark IS NULL OR reply_watermark < $1)`,
		mark,
	)
	return err
}
