package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/crisisbrief/crisisbrief/internal/shared"
)

// Service wraps authentication and registration business rules.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Authenticate validates email/password credentials. A missing account and a
// wrong password both come back as ErrInvalidCredentials; the two cases are
// only distinguished in the server log.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.log().Info("login for unknown email", slog.String("email", email))
		} else {
			s.log().Error("lookup user", slog.Any("error", err))
		}
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log().Info("password mismatch", slog.String("email", email))
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Register creates an account and assigns its initial role. The first account
// ever created becomes the admin; everyone after is a plain user. A failure in
// role assignment is logged and swallowed: the account stays, without a role,
// and readers treat it as a plain user.
func (s *Service) Register(ctx context.Context, reg Registration) (*User, error) {
	reg.Email = normalizeEmail(reg.Email)
	reg.FirstName = strings.TrimSpace(reg.FirstName)
	reg.LastName = strings.TrimSpace(reg.LastName)

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	id, err := s.repo.CreateUser(ctx, reg, string(hash))
	if err != nil {
		return nil, err
	}

	role, err := s.repo.AssignInitialRole(ctx, id)
	if err != nil {
		s.log().Error("assign initial role", slog.String("user_id", id), slog.Any("error", err))
		role = shared.RoleUser
	}

	return &User{
		ID:        id,
		Email:     reg.Email,
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// RegisterSession persists the session metadata for auditing.
func (s *Service) RegisterSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
