// Package authz implements the page-level authorization gate. A session only
// proves that someone signed in; what that person may do is always resolved
// from the authoritative user record. The resolver performs that lookup once
// per request and caches the result in the request context, so a role change
// takes effect on the next page load rather than at the next token refresh.
package authz

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/crisisbrief/crisisbrief/internal/shared"
)

// Identity is the resolved, authoritative view of the signed-in user.
type Identity struct {
	ID                 string
	Email              string
	Name               string
	Role               shared.Role
	EmailNotifications bool
}

// IsAdmin reports whether the identity carries the admin role.
func (id *Identity) IsAdmin() bool {
	return id != nil && id.Role == shared.RoleAdmin
}

// Source looks up the authoritative identity for a user ID.
type Source interface {
	IdentityByID(ctx context.Context, id string) (*Identity, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, id string) (*Identity, error)

// IdentityByID implements Source.
func (f SourceFunc) IdentityByID(ctx context.Context, id string) (*Identity, error) {
	return f(ctx, id)
}

// Resolver resolves the current identity from session plus store.
type Resolver struct {
	source Source
	group  singleflight.Group
}

// NewResolver constructs a Resolver backed by the given source.
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the identity for the session in ctx. It returns
// shared.ErrUnauthenticated when no session user is present, and
// shared.ErrNotFound when the session references a deleted user.
// Concurrent lookups for the same user collapse into one query.
func (r *Resolver) Resolve(ctx context.Context) (*Identity, error) {
	if ident := IdentityFromContext(ctx); ident != nil {
		return ident, nil
	}

	sess := shared.SessionFromContext(ctx)
	if !sess.IsAuthenticated() {
		return nil, shared.ErrUnauthenticated
	}

	userID := sess.User()
	v, err, _ := r.group.Do(userID, func() (any, error) {
		return r.source.IdentityByID(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Identity), nil
}

type identityContextKey struct{}

// ContextWithIdentity caches a resolved identity in the request context.
func ContextWithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, ident)
}

// IdentityFromContext returns the cached identity, if any.
func IdentityFromContext(ctx context.Context) *Identity {
	ident, _ := ctx.Value(identityContextKey{}).(*Identity)
	return ident
}
