package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crisisbrief/crisisbrief/internal/shared"
)

// Repository provides PostgreSQL backed persistence for user administration.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, first_name, last_name, image, role, email_notifications, created_at, updated_at`

// scanUser is the single decode path from a row to a User. The role column
// may be null for records whose role assignment was interrupted; those read
// back as plain users.
func scanUser(row pgx.Row) (*User, error) {
	var (
		u    User
		role *string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Image, &role, &u.EmailNotifications, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if role != nil {
		u.Role = shared.ParseRole(*role)
	} else {
		u.Role = shared.RoleUser
	}
	return &u, nil
}

// List returns all users ordered by creation time.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// GetByID fetches a single user.
func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// GetByEmail fetches a single user by email, the lookup key for role resolution.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// UpdateRole sets the role for a user. Setting the role a user already has
// succeeds as a no-op; only a missing user is an error.
func (r *Repository) UpdateRole(ctx context.Context, id string, role shared.Role) error {
	if !role.Valid() {
		return fmt.Errorf("users: invalid role %q", role)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, id, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetEmailNotifications flips the notification preference.
func (r *Repository) SetEmailNotifications(ctx context.Context, id string, enabled bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET email_notifications = $2, updated_at = now() WHERE id = $1`, id, enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a user. Sessions and any admin claim cascade away with it.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountAdmins returns the number of users holding the admin role.
func (r *Repository) CountAdmins(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users WHERE role = 'admin'`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
