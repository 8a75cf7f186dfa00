package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"coldreach/internal/mail"
	"coldreach/internal/metrics"
	"coldreach/internal/models"
)

// Reconciler scans the inbox for replies from leads and fires the
// scheduling-link auto-response. It runs on a coarser interval than the
// processor and never shares its failures with it.
//
// Already-seen boundary: the \Seen flag is the primary filter and is set on
// a matched message only after its lead commit succeeds, so a crash between
// the two re-reads the message and the REPLIED status check absorbs the
// duplicate. The persisted watermark merely bounds the SINCE search window.
type Reconciler struct {
	Leads     LeadStore
	Campaign  CampaignStore
	Activity  ActivityLog
	Dialer    mail.MailboxDialer
	Renderer  Renderer
	Transport Transport
	Log       *zap.Logger

	CalendarLink string
	// Backfill is how far back the very first scan reaches before a
	// watermark exists.
	Backfill time.Duration

	Now func() time.Time
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Reconciler) Tick(ctx context.Context) error {
	state, err := r.Campaign.CampaignState(ctx)
	if err != nil {
		return err
	}

	scanStart := r.now()
	since := scanStart.Add(-r.backfill())
	if state.ReplyWatermark != nil && state.ReplyWatermark.After(since) {
		since = *state.ReplyWatermark
	}

	mbox, err := r.Dialer.Dial(ctx)
	if err != nil {
		return err
	}
	defer mbox.Close()

	msgs, err := mbox.FetchUnseen(ctx, since)
	if err != nil {
		return err
	}

	// Each matched lead commits independently; an error below abandons the
	// rest of the tick but never rolls back earlier commits.
	for _, msg := range msgs {
		if err := r.handleMessage(ctx, mbox, msg); err != nil {
			return err
		}
	}

	return r.Campaign.SetReplyWatermark(ctx, scanStart)
}

func (r *Reconciler) handleMessage(ctx context.Context, mbox mail.Mailbox, msg mail.InboundMessage) error {
	lead, committed, err := r.Leads.CommitReply(ctx, msg.Sender)
	if err != nil {
		return err
	}
	if !committed {
		// Not an outreach recipient, or already terminal. Leave the message
		// untouched; the advancing watermark ages it out of the scan window.
		return nil
	}

	metrics.RepliesDetected.Inc()
	r.Log.Info("reply detected",
		zap.String("email", lead.Email),
		zap.String("message_id", msg.MessageID),
	)

	if err := mbox.MarkSeen(ctx, msg.UID); err != nil {
		// The REPLIED state already makes a rescan idempotent.
		r.Log.Warn("failed to flag reply as seen",
			zap.String("email", lead.Email),
			zap.Error(err),
		)
	}

	subject, body, err := r.Renderer.Render(ctx, models.StageAutoResponse, templateData(lead, r.CalendarLink))
	if err != nil {
		return err
	}

	if err := r.Transport.SendWithRetry(ctx, lead.Email, subject, body); err != nil {
		return err
	}

	metrics.AutoResponses.Inc()
	r.Log.Info("sent scheduling link", zap.String("email", lead.Email))

	if err := r.Activity.AppendActivity(ctx, lead.Email, "Sent scheduling link to "+lead.Email); err != nil {
		r.Log.Warn("activity append failed", zap.Error(err))
	}
	return nil
}

func (r *Reconciler) backfill() time.Duration {
	if r.Backfill > 0 {
		return r.Backfill
	}
	return 7 * 24 * time.Hour
}
