package templates

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crisisbrief/crisisbrief/internal/shared"
)

const templateColumns = `id, recipient, category, content, attributes, created_at`

// Repository provides PostgreSQL access to generated templates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.Recipient, &t.Category, &t.Content, &t.Attributes, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Create inserts a generated template and returns its ID.
func (r *Repository) Create(ctx context.Context, t Template) (string, error) {
	id := t.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO generated_templates (id, recipient, category, content, attributes)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, t.Recipient, t.Category, t.Content, t.Attributes)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListByRecipient returns the templates requested by one account, newest first.
func (r *Repository) ListByRecipient(ctx context.Context, recipient string) ([]Template, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM generated_templates WHERE recipient = $1 ORDER BY created_at DESC`,
		recipient)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTemplates(rows)
}

// ListAll returns every generated template, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]Template, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ` + templateColumns + ` FROM generated_templates ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTemplates(rows)
}

// GetByID fetches a single template.
func (r *Repository) GetByID(ctx context.Context, id string) (*Template, error) {
	return scanTemplate(r.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM generated_templates WHERE id = $1`, id))
}

// Delete removes a template. Missing rows come back as ErrNotFound.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM generated_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func collectTemplates(rows pgx.Rows) ([]Template, error) {
	list := make([]Template, 0)
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Recipient, &t.Category, &t.Content, &t.Attributes, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
