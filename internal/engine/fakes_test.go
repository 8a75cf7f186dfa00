package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"coldreach/internal/db"
	"coldreach/internal/mail"
	"coldreach/internal/models"
)

// memStore mirrors the transactional semantics of db.Store in memory:
// quota-guarded increments, compare-and-set lead commits, terminal states.
type memStore struct {
	mu       sync.Mutex
	leads    []*models.Lead
	state    models.CampaignState
	activity []string
}

func newMemStore(dailyLimit int) *memStore {
	return &memStore{
		state: models.CampaignState{
			RunStatus:  models.RunRunning,
			DailyLimit: dailyLimit,
		},
	}
}

func (m *memStore) addLead(email string, status models.LeadStatus, followups int, lastSent *time.Time, created time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads = append(m.leads, &models.Lead{
		ID:            int64(len(m.leads) + 1),
		Email:         email,
		Attributes:    map[string]string{"first_name": "Ada", "company": "Initech"},
		Status:        status,
		FollowupCount: followups,
		LastSentAt:    lastSent,
		CreatedAt:     created,
	})
}

func (m *memStore) lead(email string) *models.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(email)
}

func (m *memStore) findLocked(email string) *models.Lead {
	for _, l := range m.leads {
		if strings.EqualFold(l.Email, email) {
			return l
		}
	}
	return nil
}

func copyLead(l *models.Lead) *models.Lead {
	c := *l
	if l.LastSentAt != nil {
		t := *l.LastSentAt
		c.LastSentAt = &t
	}
	return &c
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (m *memStore) NextEligible(_ context.Context, now time.Time, followup1, followup2 time.Duration) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *models.Lead
	for _, l := range m.leads {
		eligible := false
		switch {
		case l.Status == models.StatusPending:
			eligible = true
		case l.Status == models.StatusSent && l.FollowupCount == 0:
			eligible = l.LastSentAt != nil && !l.LastSentAt.After(now.Add(-followup1))
		case l.Status == models.StatusFollowup1Sent && l.FollowupCount == 1:
			eligible = l.LastSentAt != nil && !l.LastSentAt.After(now.Add(-followup2))
		}
		if eligible && (best == nil || l.CreatedAt.Before(best.CreatedAt)) {
			best = l
		}
	}
	if best == nil {
		return nil, nil
	}
	return copyLead(best), nil
}

func (m *memStore) HasRemainingWork(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		switch {
		case l.Status == models.StatusPending,
			l.Status == models.StatusSent && l.FollowupCount == 0,
			l.Status == models.StatusFollowup1Sent && l.FollowupCount == 1:
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CommitSend(_ context.Context, lead *models.Lead, stage models.Stage, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.SentToday >= m.state.DailyLimit {
		return db.ErrQuotaExhausted
	}

	stored := m.findLocked(lead.Email)
	if stored == nil || stored.Status != lead.Status || !sameTime(stored.LastSentAt, lead.LastSentAt) {
		return db.ErrLeadConflict
	}

	stored.Status = models.StatusAfter(stage)
	if stage != models.StageInitial {
		stored.FollowupCount++
	}
	t := now
	stored.LastSentAt = &t

	m.state.SentToday++
	m.activity = append(m.activity, "Sent "+string(stage)+" email to "+lead.Email)

	lead.Status = stored.Status
	lead.FollowupCount = stored.FollowupCount
	lead.LastSentAt = stored.LastSentAt
	return nil
}

func (m *memStore) CommitFailure(_ context.Context, lead *models.Lead, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.findLocked(lead.Email)
	if stored != nil && !stored.Status.Terminal() {
		stored.Status = models.StatusFailed
	}
	m.activity = append(m.activity, "Failed to send to "+lead.Email+": "+reason)
	return nil
}

func (m *memStore) CommitReply(_ context.Context, senderEmail string) (*models.Lead, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.findLocked(senderEmail)
	if stored == nil || stored.Status.Terminal() {
		return nil, false, nil
	}
	stored.Status = models.StatusReplied
	m.activity = append(m.activity, "Reply received from "+stored.Email)
	return copyLead(stored), true, nil
}

func (m *memStore) CampaignState(context.Context) (*models.CampaignState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.state
	if m.state.ReplyWatermark != nil {
		t := *m.state.ReplyWatermark
		state.ReplyWatermark = &t
	}
	return &state, nil
}

func (m *memStore) MarkCompleted(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.RunStatus == models.RunRunning {
		m.state.RunStatus = models.RunCompleted
	}
	return nil
}

func (m *memStore) ResetDaily(_ context.Context, today string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.LastResetDate == today {
		return false, nil
	}
	m.state.SentToday = 0
	m.state.LastResetDate = today
	return true, nil
}

func (m *memStore) SetReplyWatermark(_ context.Context, mark time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.ReplyWatermark == nil || m.state.ReplyWatermark.Before(mark) {
		t := mark
		m.state.ReplyWatermark = &t
	}
	return nil
}

func (m *memStore) AppendActivity(_ context.Context, leadEmail, event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, event)
	return nil
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeTransport struct {
	mu      sync.Mutex
	sent    []sentMail
	failFor map[string]error // recipient -> forced error
}

func (t *fakeTransport) SendWithRetry(_ context.Context, to, subject, body string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err, ok := t.failFor[to]; ok {
		return err
	}
	t.sent = append(t.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (t *fakeTransport) sentTo() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, m := range t.sent {
		out = append(out, m.To)
	}
	return out
}

type fakeMailbox struct {
	msgs        []mail.InboundMessage
	seen        map[uint32]bool
	markSeenErr error
	closed      bool
}

func (m *fakeMailbox) FetchUnseen(_ context.Context, since time.Time) ([]mail.InboundMessage, error) {
	var out []mail.InboundMessage
	for _, msg := range m.msgs {
		if m.seen[msg.UID] || msg.ReceivedAt.Before(since) {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (m *fakeMailbox) MarkSeen(_ context.Context, uid uint32) error {
	if m.markSeenErr != nil {
		return m.markSeenErr
	}
	if m.seen == nil {
		m.seen = map[uint32]bool{}
	}
	m.seen[uid] = true
	return nil
}

func (m *fakeMailbox) Close() error {
	m.closed = true
	return nil
}

type fakeDialer struct {
	mbox *fakeMailbox
	err  error
}

func (d *fakeDialer) Dial(context.Context) (mail.Mailbox, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.mbox, nil
}
