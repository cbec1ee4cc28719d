package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crisisbrief/crisisbrief/internal/authz"
	"github.com/crisisbrief/crisisbrief/internal/shared"
	"github.com/crisisbrief/crisisbrief/internal/view"
)

// Handler manages the admin user panel and the account screen.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	sessions  *shared.SessionManager
	gate      authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, sessions *shared.SessionManager, gate authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, sessions: sessions, gate: gate}
}

// MountAdminRoutes registers the admin-only user management routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAdmin)
		r.Get("/", h.listUsers)
		r.Post("/{id}/role", h.changeRole)
		r.Post("/{id}/delete", h.deleteUser)
	})
}

// MountAccountRoutes registers the signed-in user's account routes.
func (h *Handler) MountAccountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireUser)
		r.Get("/", h.showAccount)
		r.Post("/notifications", h.toggleNotifications)
	})
}

type formErrors map[string]string

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		h.render(w, r, "pages/admin_users.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/admin_users.html", map[string]any{"Users": list}, http.StatusOK)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	role := shared.ParseRole(r.PostFormValue("role"))
	if err := h.service.ChangeRole(r.Context(), id, role); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			h.redirectWithFlash(w, r, "/admin/users", "error", "Cannot demote the last admin.")
			return
		}
		h.logger.Error("change role failed", slog.String("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, "/admin/users", "error", "Failed to update user role.")
		return
	}
	h.redirectWithFlash(w, r, "/admin/users", "success", "User role updated.")
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if ident := authz.IdentityFromContext(r.Context()); ident != nil && ident.ID == id {
		h.redirectWithFlash(w, r, "/admin/users", "error", "You cannot delete your own account.")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.logger.Warn("delete missing user", slog.String("id", id))
		} else {
			h.logger.Error("delete user failed", slog.String("id", id), slog.Any("error", err))
		}
		h.redirectWithFlash(w, r, "/admin/users", "error", "Failed to delete user.")
		return
	}
	h.redirectWithFlash(w, r, "/admin/users", "success", "User deleted.")
}

func (h *Handler) showAccount(w http.ResponseWriter, r *http.Request) {
	ident := authz.IdentityFromContext(r.Context())
	u, err := h.service.Get(r.Context(), ident.ID)
	if err != nil {
		h.logger.Error("load account failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/account.html", map[string]any{"Account": u}, http.StatusOK)
}

func (h *Handler) toggleNotifications(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ident := authz.IdentityFromContext(r.Context())
	enabled := r.PostFormValue("enabled") == "true"
	if err := h.service.SetEmailNotifications(r.Context(), ident.ID, enabled); err != nil {
		h.logger.Error("toggle notifications failed", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/account", "error", "Failed to update notification preference.")
		return
	}
	h.redirectWithFlash(w, r, "/account", "success", "Notification preference saved.")
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Users",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		User:        authz.IdentityFromContext(r.Context()),
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
