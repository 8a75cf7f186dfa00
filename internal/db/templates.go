package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"coldreach/internal/models"
)

// Template returns the operator's saved override for a stage, or nil when
// the built-in default should apply.
func (s *Store) Template(ctx context.Context, stage models.Stage) (*models.Template, error) {
	var t models.Template
	err := s.Pool.QueryRow(ctx,
		`SELECT stage, subject, body, updated_at FROM templates WHERE stage = $1`,
		stage,
	).Scan(&t.Stage, &t.Subject, &t.Body, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) SaveTemplate(ctx context.Context, t *models.Template) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO templates (stage, subject, body, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (stage) DO UPDATE
		 SET subject = EXCLUDED.subject, body = EXCLUDED.body, updated_at = NOW()`,
		t.Stage, t.Subject, t.Body,
	)
	return err
}

func (s *Store) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT stage, subject, body, updated_at FROM templates ORDER BY stage`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*models.Template
	for rows.Next() {
		var t models.Template
		if err := rows.Scan(&t.Stage, &t.Subject, &t.Body, &t.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, &t)
	}
	return templates, rows.Err()
}
