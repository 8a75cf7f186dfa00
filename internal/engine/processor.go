package engine

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"coldreach/internal/db"
	"coldreach/internal/metrics"
	"coldreach/internal/models"
)

// Processor advances one lead per tick through its send lifecycle. Pacing is
// an explicit next-allowed-send-time gate rather than a sleep: ticks that
// fire before the gate are no-ops, so the tick interval can be much shorter
// than the pacing window without bypassing it.
type Processor struct {
	Leads     LeadStore
	Campaign  CampaignStore
	Renderer  Renderer
	Transport Transport
	Limiter   *rate.Limiter // hard sends/sec ceiling on top of pacing
	Log       *zap.Logger

	Followup1Interval time.Duration
	Followup2Interval time.Duration
	MinDelay          time.Duration
	MaxDelay          time.Duration
	PauseEveryN       int
	PauseMin          time.Duration
	PauseMax          time.Duration
	CalendarLink      string

	Now func() time.Time // tests inject a fixed clock

	nextSendAt    time.Time
	sentInSession int
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Processor) Tick(ctx context.Context) error {
	state, err := p.Campaign.CampaignState(ctx)
	if err != nil {
		return err
	}

	if state.RunStatus != models.RunRunning {
		return nil
	}

	if state.SentToday >= state.DailyLimit {
		p.Log.Debug("daily limit reached, waiting for reset",
			zap.Int("sent_today", state.SentToday),
			zap.Int("daily_limit", state.DailyLimit),
		)
		return nil
	}

	now := p.now()
	if now.Before(p.nextSendAt) {
		return nil
	}

	if p.Limiter != nil && !p.Limiter.Allow() {
		return nil
	}

	lead, err := p.Leads.NextEligible(ctx, now, p.Followup1Interval, p.Followup2Interval)
	if err != nil {
		return err
	}
	if lead == nil {
		return p.maybeComplete(ctx)
	}

	stage, err := lead.NextStage()
	if err != nil {
		return err
	}

	subject, body, err := p.Renderer.Render(ctx, stage, templateData(lead, p.CalendarLink))
	if err != nil {
		return err
	}

	if err := p.Transport.SendWithRetry(ctx, lead.Email, subject, body); err != nil {
		// Business outcome, not a scheduling fault: the lead goes terminal
		// and the tick itself succeeds.
		p.Log.Warn("send failed, marking lead FAILED",
			zap.String("email", lead.Email),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		metrics.SendFailures.Inc()
		return p.Leads.CommitFailure(ctx, lead, err.Error())
	}

	// The message is out; commit before anything else so a crash from here
	// on loses no state and cannot cause a double send.
	if err := p.Leads.CommitSend(ctx, lead, stage, now); err != nil {
		if errors.Is(err, db.ErrQuotaExhausted) || errors.Is(err, db.ErrLeadConflict) {
			p.Log.Warn("send commit lost a race",
				zap.String("email", lead.Email),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	metrics.EmailsSent.Inc()
	metrics.SentToday.Set(float64(state.SentToday + 1))

	p.Log.Info("email sent",
		zap.String("email", lead.Email),
		zap.String("stage", string(stage)),
		zap.Int("sent_today", state.SentToday+1),
		zap.Int("daily_limit", state.DailyLimit),
	)

	p.scheduleNext(now)
	return nil
}

// maybeComplete flips the campaign to COMPLETED once no lead can ever become
// eligible again.
func (p *Processor) maybeComplete(ctx context.Context) error {
	remaining, err := p.Leads.HasRemainingWork(ctx)
	if err != nil {
		return err
	}
	if remaining {
		return nil
	}
	if err := p.Campaign.MarkCompleted(ctx); err != nil {
		return err
	}
	p.Log.Info("campaign completed, no leads left to process")
	return nil
}

// scheduleNext applies human-like pacing after a successful send: a uniform
// random delay in [MinDelay, MaxDelay], and every PauseEveryN-th send a
// longer uniform random pause in [PauseMin, PauseMax] on top.
func (p *Processor) scheduleNext(now time.Time) {
	p.sentInSession++

	delay := randomBetween(p.MinDelay, p.MaxDelay)
	if p.PauseEveryN > 0 && p.sentInSession%p.PauseEveryN == 0 {
		pause := randomBetween(p.PauseMin, p.PauseMax)
		p.Log.Info("pausing after burst",
			zap.Int("sent_in_session", p.sentInSession),
			zap.Duration("pause", pause),
		)
		delay += pause
	}

	p.nextSendAt = now.Add(delay)
}

func randomBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}
