package users_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisisbrief/crisisbrief/internal/shared"
	"github.com/crisisbrief/crisisbrief/internal/users"
	_ "github.com/crisisbrief/crisisbrief/testing"
)

type fakeRepo struct {
	store map[string]*users.User
}

func newFakeRepo(seed ...*users.User) *fakeRepo {
	r := &fakeRepo{store: make(map[string]*users.User)}
	for _, u := range seed {
		r.store[u.ID] = u
	}
	return r
}

func (r *fakeRepo) List(ctx context.Context) ([]users.User, error) {
	out := make([]users.User, 0, len(r.store))
	for _, u := range r.store {
		out = append(out, *u)
	}
	return out, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	u, ok := r.store[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	for _, u := range r.store {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeRepo) UpdateRole(ctx context.Context, id string, role shared.Role) error {
	u, ok := r.store[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Role = role
	return nil
}

func (r *fakeRepo) SetEmailNotifications(ctx context.Context, id string, enabled bool) error {
	u, ok := r.store[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.EmailNotifications = enabled
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.store[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.store, id)
	return nil
}

func (r *fakeRepo) CountAdmins(ctx context.Context) (int, error) {
	n := 0
	for _, u := range r.store {
		if u.Role == shared.RoleAdmin {
			n++
		}
	}
	return n, nil
}

func TestChangeRole(t *testing.T) {
	repo := newFakeRepo(&users.User{ID: "u1", Email: "u1@test.local", Role: shared.RoleUser})
	svc := users.NewService(repo)

	require.NoError(t, svc.ChangeRole(context.Background(), "u1", shared.RoleAdmin))
	u, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, shared.RoleAdmin, u.Role)
}

func TestChangeRoleToSameRoleSucceeds(t *testing.T) {
	repo := newFakeRepo(&users.User{ID: "u1", Email: "u1@test.local", Role: shared.RoleUser})
	svc := users.NewService(repo)

	// Re-applying the current role is a successful no-op.
	assert.NoError(t, svc.ChangeRole(context.Background(), "u1", shared.RoleUser))
}

func TestChangeRoleKeepsLastAdmin(t *testing.T) {
	repo := newFakeRepo(
		&users.User{ID: "a1", Email: "a1@test.local", Role: shared.RoleAdmin},
		&users.User{ID: "u1", Email: "u1@test.local", Role: shared.RoleUser},
	)
	svc := users.NewService(repo)

	err := svc.ChangeRole(context.Background(), "a1", shared.RoleUser)
	assert.ErrorIs(t, err, shared.ErrConflict, "the only admin cannot be demoted")

	// With a second admin the demotion goes through.
	require.NoError(t, svc.ChangeRole(context.Background(), "u1", shared.RoleAdmin))
	require.NoError(t, svc.ChangeRole(context.Background(), "a1", shared.RoleUser))
	a, err := svc.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, shared.RoleUser, a.Role)
}

func TestChangeRoleMissingUser(t *testing.T) {
	svc := users.NewService(newFakeRepo())
	assert.ErrorIs(t, svc.ChangeRole(context.Background(), "ghost", shared.RoleAdmin), shared.ErrNotFound)
}

func TestDeleteMissingUser(t *testing.T) {
	svc := users.NewService(newFakeRepo())
	assert.ErrorIs(t, svc.Delete(context.Background(), "ghost"), shared.ErrNotFound)
}

func TestIdentityByID(t *testing.T) {
	repo := newFakeRepo(&users.User{
		ID: "u1", Email: "u1@test.local", FirstName: "Ada", LastName: "Lovelace",
		Role: shared.RoleAdmin, EmailNotifications: true,
	})
	svc := users.NewService(repo)

	ident, err := svc.IdentityByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", ident.Name)
	assert.True(t, ident.IsAdmin())
	assert.True(t, ident.EmailNotifications)

	_, err = svc.IdentityByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
