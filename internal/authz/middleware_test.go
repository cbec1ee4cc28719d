package authz_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisisbrief/crisisbrief/internal/authz"
	"github.com/crisisbrief/crisisbrief/internal/shared"
	_ "github.com/crisisbrief/crisisbrief/testing"
)

func sessionRequest(t *testing.T, sm *shared.SessionManager, userID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	if userID != "" {
		sess.SetUser(userID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func newSessionManager(t *testing.T) *shared.SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
}

func identitySource(identities map[string]*authz.Identity) authz.SourceFunc {
	return func(ctx context.Context, id string) (*authz.Identity, error) {
		ident, ok := identities[id]
		if !ok {
			return nil, shared.ErrNotFound
		}
		return ident, nil
	}
}

func TestRequireUserRedirectsAnonymous(t *testing.T) {
	sm := newSessionManager(t)
	mw := authz.Middleware{
		Resolver: authz.NewResolver(identitySource(nil)),
		Sessions: sm,
	}

	handler := mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for anonymous visitors")
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, sessionRequest(t, sm, ""))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, authz.SignInPath, res.Header().Get("Location"))
}

func TestRequireAdminRedirectsPlainUser(t *testing.T) {
	sm := newSessionManager(t)
	mw := authz.Middleware{
		Resolver: authz.NewResolver(identitySource(map[string]*authz.Identity{
			"u1": {ID: "u1", Email: "u1@test.local", Role: shared.RoleUser},
		})),
		Sessions: sm,
	}

	handler := mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for non-admins")
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, sessionRequest(t, sm, "u1"))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, authz.UnauthorizedPath, res.Header().Get("Location"))
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	sm := newSessionManager(t)
	mw := authz.Middleware{
		Resolver: authz.NewResolver(identitySource(map[string]*authz.Identity{
			"a1": {ID: "a1", Email: "a1@test.local", Role: shared.RoleAdmin},
		})),
		Sessions: sm,
	}

	var ran bool
	handler := mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
		ident := authz.IdentityFromContext(r.Context())
		require.NotNil(t, ident)
		assert.True(t, ident.IsAdmin())
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, sessionRequest(t, sm, "a1"))

	assert.True(t, ran)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequireUserDeletedAccountRedirects(t *testing.T) {
	sm := newSessionManager(t)
	mw := authz.Middleware{
		Resolver: authz.NewResolver(identitySource(nil)),
		Sessions: sm,
	}

	handler := mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run when the account is gone")
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, sessionRequest(t, sm, "ghost"))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, authz.SignInPath, res.Header().Get("Location"))
}

func TestResolveUsesRequestCache(t *testing.T) {
	var lookups atomic.Int32
	source := authz.SourceFunc(func(ctx context.Context, id string) (*authz.Identity, error) {
		lookups.Add(1)
		return &authz.Identity{ID: id, Role: shared.RoleUser}, nil
	})
	resolver := authz.NewResolver(source)

	sm := newSessionManager(t)
	req := sessionRequest(t, sm, "u1")

	first, err := resolver.Resolve(req.Context())
	require.NoError(t, err)

	// A second resolve on the same request context, with the identity cached,
	// must not hit the source again.
	cached := authz.ContextWithIdentity(req.Context(), first)
	second, err := resolver.Resolve(cached)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), lookups.Load())
}
