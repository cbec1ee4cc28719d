package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crisisbrief/crisisbrief/internal/platform/db"
	"github.com/crisisbrief/crisisbrief/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, reg Registration, passwordHash string) (string, error)
	AssignInitialRole(ctx context.Context, userID string) (shared.Role, error)
	CreateSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a user with its password hash.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var (
		u    User
		role *string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, first_name, last_name, password_hash, role, created_at, updated_at
		 FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if role != nil {
		u.Role = shared.ParseRole(*role)
	} else {
		u.Role = shared.RoleUser
	}
	return &u, nil
}

// CreateUser inserts the account record without a role. Role assignment is a
// separate step so a failure there cannot roll the account back.
func (r *PGRepository) CreateUser(ctx context.Context, reg Registration, passwordHash string) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, first_name, last_name, password_hash)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, reg.Email, reg.FirstName, reg.LastName, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return "", shared.ErrConflict
		}
		return "", err
	}
	return id, nil
}

// AssignInitialRole grants admin to the first registered user and user to
// everyone after. The admin_claim primary key guarantees a single winner even
// when registrations race; the claim and the role update commit together.
func (r *PGRepository) AssignInitialRole(ctx context.Context, userID string) (shared.Role, error) {
	role := shared.RoleUser
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO admin_claim (singleton, user_id) VALUES (TRUE, $1)
			 ON CONFLICT (singleton) DO NOTHING`, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			role = shared.RoleAdmin
		}
		_, err = tx.Exec(ctx,
			`UPDATE users SET role = $2, email_notifications = TRUE, updated_at = now() WHERE id = $1`,
			userID, string(role))
		return err
	})
	if err != nil {
		return "", err
	}
	return role, nil
}

// CreateSession persists a new login session in the database for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, ip, ua) VALUES ($1, $2, $3, $4, $5)`,
		id, userID, expiresAt.UTC(), nullable(ip), nullable(ua))
	return err
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Repository = (*PGRepository)(nil)
