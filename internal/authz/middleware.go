package authz

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/crisisbrief/crisisbrief/internal/shared"
)

const (
	// SignInPath is where unauthenticated visitors are sent.
	SignInPath = "/auth/login"
	// UnauthorizedPath is where signed-in non-admins are sent from admin pages.
	UnauthorizedPath = "/unauthorized"
)

// Middleware gates protected routes behind the resolver.
type Middleware struct {
	Resolver *Resolver
	Sessions *shared.SessionManager
	Logger   *slog.Logger
}

// RequireUser ensures a signed-in user with a live store record. The wrapped
// handler never runs before resolution completes.
func (m Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := m.resolve(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), ident)))
	})
}

// RequireAdmin ensures the resolved role is admin, redirecting everyone else
// to the unauthorized notice page rather than failing silently.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := m.resolve(w, r)
		if !ok {
			return
		}
		if !ident.IsAdmin() {
			http.Redirect(w, r, UnauthorizedPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), ident)))
	})
}

func (m Middleware) resolve(w http.ResponseWriter, r *http.Request) (*Identity, bool) {
	ident, err := m.Resolver.Resolve(r.Context())
	switch {
	case err == nil:
		return ident, true
	case errors.Is(err, shared.ErrUnauthenticated):
		http.Redirect(w, r, SignInPath, http.StatusSeeOther)
		return nil, false
	case errors.Is(err, shared.ErrNotFound):
		// Session points at a deleted user. Drop it and start over.
		if sess := shared.SessionFromContext(r.Context()); sess != nil && m.Sessions != nil {
			m.Sessions.Destroy(sess)
		}
		http.Redirect(w, r, SignInPath, http.StatusSeeOther)
		return nil, false
	default:
		if m.Logger != nil {
			m.Logger.Error("resolve identity", slog.Any("error", err))
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}
}
