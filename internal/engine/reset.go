package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"coldreach/internal/metrics"
)

// DailyReset zeroes the daily send counter once per calendar day. The
// conditional update in the store makes a same-day double fire a no-op, so
// the task can run on a short interval instead of an exact-midnight cron.
type DailyReset struct {
	Campaign CampaignStore
	Log      *zap.Logger

	Now func() time.Time
}

func (d *DailyReset) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *DailyReset) Tick(ctx context.Context) error {
	today := d.now().Format("2006-01-02")

	reset, err := d.Campaign.ResetDaily(ctx, today)
	if err != nil {
		return err
	}
	if reset {
		metrics.SentToday.Set(0)
		d.Log.Info("daily send counter reset", zap.String("date", today))
	}
	return nil
}
