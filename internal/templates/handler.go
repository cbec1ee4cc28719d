package templates

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/crisisbrief/crisisbrief/internal/authz"
	"github.com/crisisbrief/crisisbrief/internal/shared"
	"github.com/crisisbrief/crisisbrief/internal/view"
)

// Handler serves the template screens.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	gate      authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, gate authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, gate: gate}
}

// MountRoutes registers the signed-in template routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireUser)
		r.Get("/", h.list)
		r.Get("/new", h.showNew)
		r.Post("/", h.requestGeneration)
		r.Get("/{id}", h.detail)
		r.Post("/{id}/delete", h.delete)
	})
}

// MountAdminRoutes registers the all-templates admin view.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAdmin)
		r.Get("/", h.listAll)
		r.Get("/new", h.showAdminNew)
		r.Post("/", h.adminCreate)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ident := authz.IdentityFromContext(r.Context())
	list, err := h.service.ListFor(r.Context(), ident)
	if err != nil {
		h.logger.Error("list templates failed", slog.Any("error", err))
		h.render(w, r, "pages/templates.html", "Templates", map[string]any{"Error": shared.UserSafeMessage(err)}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/templates.html", "Templates", map[string]any{"Templates": list}, http.StatusOK)
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListAll(r.Context())
	if err != nil {
		h.logger.Error("list all templates failed", slog.Any("error", err))
		h.render(w, r, "pages/admin_templates.html", "All Templates", map[string]any{"Error": shared.UserSafeMessage(err)}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/admin_templates.html", "All Templates", map[string]any{"Templates": list}, http.StatusOK)
}

func (h *Handler) showNew(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/template_new.html", "New Template", map[string]any{"Categories": SuggestedCategories}, http.StatusOK)
}

func (h *Handler) showAdminNew(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/admin_template_new.html", "New Template", map[string]any{"Categories": SuggestedCategories}, http.StatusOK)
}

func (h *Handler) adminCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ident := authz.IdentityFromContext(r.Context())
	t := Template{
		Recipient:  r.PostFormValue("recipient"),
		Category:   r.PostFormValue("category"),
		Content:    r.PostFormValue("content"),
		Attributes: splitAttributes(r.PostFormValue("attributes")),
	}
	if _, err := h.service.CreateManual(r.Context(), ident, t); err != nil {
		if errors.Is(err, shared.ErrValidation) {
			h.redirectWithFlash(w, r, "/admin/templates/new", "error", "Category and content are required.")
			return
		}
		h.logger.Error("create template failed", slog.Any("error", err))
		h.redirectWithFlash(w, r, "/admin/templates/new", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/admin/templates", "success", "Template created.")
}

func (h *Handler) requestGeneration(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ident := authz.IdentityFromContext(r.Context())
	category := r.PostFormValue("category")
	notes := r.PostFormValue("notes")
	attributes := splitAttributes(r.PostFormValue("attributes"))

	if err := h.service.RequestGeneration(r.Context(), ident, category, notes, attributes); err != nil {
		if errors.Is(err, shared.ErrValidation) {
			h.redirectWithFlash(w, r, "/templates/new", "error", "Please pick a category.")
			return
		}
		h.redirectWithFlash(w, r, "/templates/new", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/templates", "success", "Template generation started. It will appear here shortly.")
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	ident := authz.IdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")
	t, err := h.service.Get(r.Context(), ident, id)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			http.NotFound(w, r)
		case errors.Is(err, shared.ErrUnauthorized):
			http.Redirect(w, r, "/unauthorized", http.StatusSeeOther)
		default:
			h.logger.Error("load template failed", slog.String("id", id), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}
	h.render(w, r, "pages/template_detail.html", "Template", map[string]any{"Template": t}, http.StatusOK)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ident := authz.IdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), ident, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.logger.Warn("delete missing template", slog.String("id", id))
		} else {
			h.logger.Error("delete template failed", slog.String("id", id), slog.Any("error", err))
		}
		h.redirectWithFlash(w, r, "/templates", "error", "Failed to delete template.")
		return
	}
	h.redirectWithFlash(w, r, "/templates", "success", "Template deleted.")
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
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

func splitAttributes(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
