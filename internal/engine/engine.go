// Package engine holds the three periodic tasks that drive the outreach
// campaign: the queue processor, the reply reconciler, and the daily counter
// reset. All durable state lives behind the store interfaces; the tasks keep
// no state a crash could lose except the processor's pacing gate.
package engine

import (
	"context"
	"time"

	"coldreach/internal/models"
)

type LeadStore interface {
	NextEligible(ctx context.Context, now time.Time, followup1, followup2 time.Duration) (*models.Lead, error)
	HasRemainingWork(ctx context.Context) (bool, error)
	CommitSend(ctx context.Context, lead *models.Lead, stage models.Stage, now time.Time) error
	CommitFailure(ctx context.Context, lead *models.Lead, reason string) error
	CommitReply(ctx context.Context, senderEmail string) (*models.Lead, bool, error)
}

type CampaignStore interface {
	CampaignState(ctx context.Context) (*models.CampaignState, error)
	MarkCompleted(ctx context.Context) error
	ResetDaily(ctx context.Context, today string) (bool, error)
	SetReplyWatermark(ctx context.Context, mark time.Time) error
}

type ActivityLog interface {
	AppendActivity(ctx context.Context, leadEmail, event string) error
}

type Transport interface {
	SendWithRetry(ctx context.Context, to, subject, body string) error
}

type Renderer interface {
	Render(ctx context.Context, stage models.Stage, data map[string]string) (string, string, error)
}

// templateData merges lead attributes with the fixed values every stage may
// reference. Lead attributes never override the fixed keys.
func templateData(lead *models.Lead, calendarLink string) map[string]string {
	data := make(map[string]string, len(lead.Attributes)+2)
	for k, v := range lead.Attributes {
		data[k] = v
	}
	data["email"] = lead.Email
	data["calendar_link"] = calendarLink
	return data
}
