package users

import (
	"context"
	"fmt"

	"github.com/crisisbrief/crisisbrief/internal/authz"
	"github.com/crisisbrief/crisisbrief/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context) ([]User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateRole(ctx context.Context, id string, role shared.Role) error
	SetEmailNotifications(ctx context.Context, id string, enabled bool) error
	Delete(ctx context.Context, id string) error
	CountAdmins(ctx context.Context) (int, error)
}

// Service handles user administration business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Get returns one user by ID.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail returns one user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

// ChangeRole sets a user's role. Repeating the current role is a no-op, not
// an error. Demoting the last remaining admin is refused: someone must be
// able to reach the admin panels.
func (s *Service) ChangeRole(ctx context.Context, id string, role shared.Role) error {
	if role != shared.RoleAdmin {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current.Role == shared.RoleAdmin {
			n, err := s.repo.CountAdmins(ctx)
			if err != nil {
				return err
			}
			if n <= 1 {
				return fmt.Errorf("%w: cannot demote the last admin", shared.ErrConflict)
			}
		}
	}
	return s.repo.UpdateRole(ctx, id, role)
}

// SetEmailNotifications updates the notification preference.
func (s *Service) SetEmailNotifications(ctx context.Context, id string, enabled bool) error {
	return s.repo.SetEmailNotifications(ctx, id, enabled)
}

// Delete removes a user account.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// IdentityByID adapts the user record into the gate's identity view.
func (s *Service) IdentityByID(ctx context.Context, id string) (*authz.Identity, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &authz.Identity{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name(),
		Role:               u.Role,
		EmailNotifications: u.EmailNotifications,
	}, nil
}
