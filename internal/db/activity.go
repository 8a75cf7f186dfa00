package db

import (
	"context"

	"coldreach/internal/models"
)

// AppendActivity writes a standalone audit entry. Entries tied to a lead
// state change are written inside that change's transaction instead.
func (s *Store) AppendActivity(ctx context.Context, leadEmail, event string) error {
	var email any
	if leadEmail != "" {
		email = leadEmail
	}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO activity_log (lead_email, event) VALUES ($1, $2)`,
		email, event,
	)
	return err
}

func (s *Store) ListActivity(ctx context.Context, limit int) ([]*models.ActivityLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.Pool.Query(ctx,
		`SELECT id, COALESCE(lead_email, ''), event, created_at
		 FROM activity_log
		 ORDER BY id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ActivityLogEntry
	for rows.Next() {
		var e models.ActivityLogEntry
		if err := rows.Scan(&e.ID, &e.LeadEmail, &e.Event, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
