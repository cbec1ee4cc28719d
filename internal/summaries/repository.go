package summaries

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crisisbrief/crisisbrief/internal/shared"
)

const summaryColumns = `id, recipient, category, title, content, template_id, created_at`

// Repository provides PostgreSQL access to generated summaries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a generated summary and returns its ID.
func (r *Repository) Create(ctx context.Context, s Summary) (string, error) {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	var templateID *string
	if s.TemplateID != "" {
		templateID = &s.TemplateID
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO generated_summaries (id, recipient, category, title, content, template_id)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, s.Recipient, s.Category, s.Title, s.Content, templateID)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListByRecipient returns one account's summaries, newest first.
func (r *Repository) ListByRecipient(ctx context.Context, recipient string) ([]Summary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+summaryColumns+` FROM generated_summaries WHERE recipient = $1 ORDER BY created_at DESC`,
		recipient)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSummaries(rows)
}

// GetByID fetches a single summary.
func (r *Repository) GetByID(ctx context.Context, id string) (*Summary, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+summaryColumns+` FROM generated_summaries WHERE id = $1`, id)
	s, err := scanSummary(row)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Delete removes a summary. Missing rows come back as ErrNotFound.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM generated_summaries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanSummary(row pgx.Row) (*Summary, error) {
	var (
		s          Summary
		templateID *string
	)
	err := row.Scan(&s.ID, &s.Recipient, &s.Category, &s.Title, &s.Content, &templateID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if templateID != nil {
		s.TemplateID = *templateID
	}
	return &s, nil
}

func collectSummaries(rows pgx.Rows) ([]Summary, error) {
	list := make([]Summary, 0)
	for rows.Next() {
		var (
			s          Summary
			templateID *string
		)
		if err := rows.Scan(&s.ID, &s.Recipient, &s.Category, &s.Title, &s.Content, &templateID, &s.CreatedAt); err != nil {
			return nil, err
		}
		if templateID != nil {
			s.TemplateID = *templateID
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
