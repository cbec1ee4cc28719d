package summaries

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/crisisbrief/crisisbrief/internal/authz"
	"github.com/crisisbrief/crisisbrief/internal/shared"
	"github.com/crisisbrief/crisisbrief/internal/templates"
	"github.com/crisisbrief/crisisbrief/internal/view"
)

// Handler serves the summary screens.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	templateSvc *templates.Service
	views       *view.Engine
	csrf        *shared.CSRFManager
	gate        authz.Middleware
}

// NewHandler builds Handler instance. The template service feeds the
// template picker on the new-summary form.
func NewHandler(logger *slog.Logger, service *Service, templateSvc *templates.Service, views *view.Engine, csrf *shared.CSRFManager, gate authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, templateSvc: templateSvc, views: views, csrf: csrf, gate: gate}
}

// MountRoutes registers the signed-in summary routes.
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

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ident := authz.IdentityFromContext(r.Context())
	list, err := h.service.ListFor(r.Context(), ident)
	if err != nil {
		h.logger.Error("list summaries failed", slog.Any("error", err))
		h.render(w, r, "pages/summaries.html", "Summaries", map[string]any{"Error": shared.UserSafeMessage(err)}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/summaries.html", "Summaries", map[string]any{"Summaries": list}, http.StatusOK)
}

func (h *Handler) showNew(w http.ResponseWriter, r *http.Request) {
	ident := authz.IdentityFromContext(r.Context())
	own, err := h.templateSvc.ListFor(r.Context(), ident)
	if err != nil {
		h.logger.Warn("load templates for picker", slog.Any("error", err))
	}
	h.render(w, r, "pages/summary_new.html", "New Summary", map[string]any{"Templates": own}, http.StatusOK)
}

func (h *Handler) requestGeneration(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ident := authz.IdentityFromContext(r.Context())
	category := r.PostFormValue("category")
	templateID := r.PostFormValue("template_id")
	urls := splitURLs(r.PostFormValue("urls"))

	if err := h.service.RequestGeneration(r.Context(), ident, category, templateID, urls); err != nil {
		if errors.Is(err, shared.ErrValidation) {
			h.redirectWithFlash(w, r, "/summaries/new", "error", "A category and at least one source URL are required.")
			return
		}
		h.redirectWithFlash(w, r, "/summaries/new", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/summaries", "success", "Summary generation started. It will appear here shortly.")
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	ident := authz.IdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")
	sum, err := h.service.Get(r.Context(), ident, id)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			http.NotFound(w, r)
		case errors.Is(err, shared.ErrUnauthorized):
			http.Redirect(w, r, "/unauthorized", http.StatusSeeOther)
		default:
			h.logger.Error("load summary failed", slog.String("id", id), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}
	h.render(w, r, "pages/summary_detail.html", sum.Title, map[string]any{"Summary": sum}, http.StatusOK)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ident := authz.IdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), ident, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.logger.Warn("delete missing summary", slog.String("id", id))
		} else {
			h.logger.Error("delete summary failed", slog.String("id", id), slog.Any("error", err))
		}
		h.redirectWithFlash(w, r, "/summaries", "error", "Failed to delete summary.")
		return
	}
	h.redirectWithFlash(w, r, "/summaries", "success", "Summary deleted.")
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
	if err := h.views.RenderStatus(w, status, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func splitURLs(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
