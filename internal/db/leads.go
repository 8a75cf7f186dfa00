package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"coldreach/internal/models"
)

const leadColumns = `id, email, attributes, status, followup_count, last_sent_at, created_at`

func scanLead(row pgx.Row) (*models.Lead, error) {
	var (
		lead  models.Lead
		attrs []byte
	)
	err := row.Scan(
		&lead.ID,
		&lead.Email,
		&attrs,
		&lead.Status,
		&lead.FollowupCount,
		&lead.LastSentAt,
		&lead.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(attrs, &lead.Attributes); err != nil {
		return nil, fmt.Errorf("lead %s attributes: %w", lead.Email, err)
	}
	return &lead, nil
}

// NextEligible returns the oldest lead whose status and timing allow a send
// right now, or nil when nothing is due. Followup cutoffs are measured from
// last_sent_at.
func (s *Store) NextEligible(ctx context.Context, now time.Time, followup1, followup2 time.Duration) (*models.Lead, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+leadColumns+`
		 FROM leads
		 WHERE status = 'PENDING'
		    OR (status = 'SENT' AND followup_count = 0 AND last_sent_at <= $1)
		    OR (status = 'FOLLOWUP1_SENT' AND followup_count = 1 AND last_sent_at <= $2)
		 ORDER BY created_at
		 LIMIT 1`,
		now.Add(-followup1),
		now.Add(-followup2),
	)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return lead, err
}

// HasRemainingWork reports whether any lead could still become eligible:
// pending, or sent/followup1 with followups left. Used to detect campaign
// completion.
func (s *Store) HasRemainingWork(ctx context.Context) (bool, error) {
	var remaining bool
	err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM leads
			WHERE status = 'PENDING'
			   OR (status = 'SENT' AND followup_count = 0)
			   OR (status = 'FOLLOWUP1_SENT' AND followup_count = 1)
		 )`,
	).Scan(&remaining)
	return remaining, err
}

// CommitSend records a successful transport send in one transaction: the
// quota-guarded sent_today increment, a compare-and-set on the lead's
// (status, last_sent_at), and the activity entry. Returns ErrQuotaExhausted
// or ErrLeadConflict when the respective guard finds stale state; the
// transaction rolls back in both cases.
func (s *Store) CommitSend(ctx context.Context, lead *models.Lead, stage models.Stage, now time.Time) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE campaign_state
		 SET sent_today = sent_today + 1, updated_at = NOW()
		 WHERE id = 1 AND sent_today < daily_limit`,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuotaExhausted
	}

	newStatus := models.StatusAfter(stage)
	newFollowups := lead.FollowupCount
	if stage != models.StageInitial {
		newFollowups++
	}

	tag, err = tx.Exec(ctx,
		`UPDATE leads
		 SET status = $1, followup_count = $2, last_sent_at = $3
		 WHERE email = $4
		   AND status = $5
		   AND last_sent_at IS NOT DISTINCT FROM $6`,
		newStatus,
		newFollowups,
		now,
		lead.Email,
		lead.Status,
		lead.LastSentAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadConflict
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO activity_log (lead_email, event) VALUES ($1, $2)`,
		lead.Email,
		fmt.Sprintf("Sent %s email to %s", stage, lead.Email),
	)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	lead.Status = newStatus
	lead.FollowupCount = newFollowups
	lead.LastSentAt = &now
	return nil
}

// CommitFailure marks the lead terminally FAILED and records why. Terminal
// states are never overwritten.
func (s *Store) CommitFailure(ctx context.Context, lead *models.Lead, reason string) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE leads SET status = 'FAILED'
		 WHERE email = $1 AND status NOT IN ('REPLIED', 'FAILED')`,
		lead.Email,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO activity_log (lead_email, event) VALUES ($1, $2)`,
		lead.Email,
		fmt.Sprintf("Failed to send to %s: %s", lead.Email, reason),
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CommitReply transitions the lead matching senderEmail to REPLIED. It
// reports false without error when no lead matches or the lead is already
// terminal, which makes redelivered inbound messages harmless.
func (s *Store) CommitReply(ctx context.Context, senderEmail string) (*models.Lead, bool, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`UPDATE leads SET status = 'REPLIED'
		 WHERE lower(email) = lower($1)
		   AND status NOT IN ('REPLIED', 'FAILED')
		 RETURNING `+leadColumns,
		senderEmail,
	)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO activity_log (lead_email, event) VALUES ($1, $2)`,
		lead.Email,
		fmt.Sprintf("Reply received from %s", lead.Email),
	)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return lead, true, nil
}

// LeadFilter narrows and orders ListLeads output for the dashboard.
type LeadFilter struct {
	Status models.LeadStatus // empty = all
	SortBy string            // created_at (default) or last_sent_at
	Limit  int
}

func (s *Store) ListLeads(ctx context.Context, filter LeadFilter) ([]*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	args := []any{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}

	switch strings.ToLower(filter.SortBy) {
	case "last_sent_at":
		query += " ORDER BY last_sent_at DESC NULLS LAST"
	default:
		query += " ORDER BY created_at"
	}

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// InsertLeads ingests parsed CSV rows. Duplicate emails are skipped rather
// than rejected wholesale; returns (inserted, skipped).
func (s *Store) InsertLeads(ctx context.Context, leads []*models.Lead) (int, int, error) {
	inserted := 0
	for _, lead := range leads {
		attrs, err := json.Marshal(lead.Attributes)
		if err != nil {
			return inserted, len(leads) - inserted, err
		}

		tag, err := s.Pool.Exec(ctx,
			`INSERT INTO leads (email, attributes)
			 VALUES ($1, $2)
			 ON CONFLICT (email) DO NOTHING`,
			strings.ToLower(strings.TrimSpace(lead.Email)),
			attrs,
		)
		if err != nil {
			return inserted, len(leads) - inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, len(leads) - inserted, nil
}

// RequeueLead puts a FAILED lead back at the start of its sequence. This is
// the explicit external re-enqueue path; the engine never retries FAILED
// leads on its own.
func (s *Store) RequeueLead(ctx context.Context, id int64) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE leads
		 SET status = 'PENDING', followup_count = 0, last_sent_at = NULL
		 WHERE id = $1 AND status = 'FAILED'`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lead %d not found or not FAILED", id)
	}
	return nil
}

func (s *Store) DeleteLead(ctx context.Context, id int64) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lead %d not found", id)
	}
	return nil
}
