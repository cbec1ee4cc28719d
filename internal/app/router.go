package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/crisisbrief/crisisbrief/internal/auth"
	"github.com/crisisbrief/crisisbrief/internal/authz"
	"github.com/crisisbrief/crisisbrief/internal/observability"
	"github.com/crisisbrief/crisisbrief/internal/shared"
	"github.com/crisisbrief/crisisbrief/internal/summaries"
	"github.com/crisisbrief/crisisbrief/internal/templates"
	"github.com/crisisbrief/crisisbrief/internal/users"
	"github.com/crisisbrief/crisisbrief/internal/view"
	"github.com/crisisbrief/crisisbrief/jobs"
	"github.com/crisisbrief/crisisbrief/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Templates        *view.Engine
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	TemplatesHandler *templates.Handler
	SummariesHandler *summaries.Handler
	JobHandler       *jobs.Handler
	Gate             authz.Middleware
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Landing page for unauthenticated visitors
	r.Get("/welcome", func(w http.ResponseWriter, r *http.Request) {
		renderPublic(params, w, r, "pages/landing.html", "CrisisBrief", http.StatusOK)
	})

	r.Get("/unauthorized", func(w http.ResponseWriter, r *http.Request) {
		renderPublic(params, w, r, "pages/unauthorized.html", "Unauthorized", http.StatusForbidden)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if !sess.IsAuthenticated() {
			http.Redirect(w, r, "/welcome", http.StatusSeeOther)
			return
		}
		ident, err := params.Gate.Resolver.Resolve(r.Context())
		if err != nil {
			http.Redirect(w, r, "/welcome", http.StatusSeeOther)
			return
		}
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		data := view.TemplateData{
			Title:       "CrisisBrief",
			CSRFToken:   csrfToken,
			Flash:       sess.PopFlash(),
			CurrentPath: r.URL.Path,
			User:        ident,
			Data: map[string]any{
				"AppEnv": params.Config.AppEnv,
			},
		}
		if err := params.Templates.Render(w, "pages/home.html", data); err != nil {
			params.Logger.Error("render home", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.HandleFunc("/api/register", params.AuthHandler.RegisterAPI)

	r.Route("/templates", params.TemplatesHandler.MountRoutes)
	r.Route("/summaries", params.SummariesHandler.MountRoutes)
	r.Route("/account", params.UsersHandler.MountAccountRoutes)
	r.Route("/admin", func(r chi.Router) {
		r.Route("/users", params.UsersHandler.MountAdminRoutes)
		r.Route("/templates", params.TemplatesHandler.MountAdminRoutes)
	})
	r.Route("/jobs", params.JobHandler.MountRoutes)

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		// Static assets are immutable between deploys; let browsers cache them.
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

func renderPublic(params RouterParams, w http.ResponseWriter, r *http.Request, page, title string, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	data := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
	}
	if err := params.Templates.RenderStatus(w, status, page, data); err != nil {
		params.Logger.Error("render page", slog.String("page", page), slog.Any("error", err))
	}
}

func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
