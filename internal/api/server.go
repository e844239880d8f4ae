// Package api defines the HTTP server of the add-on manager: the
// server-rendered admin page, its JSON endpoints and the admin websocket.
package api

import (
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vrsandeep/vmfa-addons/internal/assets"
	"github.com/vrsandeep/vmfa-addons/internal/core"
	"github.com/vrsandeep/vmfa-addons/internal/store"
)

// Server holds the dependencies for our API.
type Server struct {
	app       *core.App
	store     *store.Store
	templates *template.Template
	logger    *zap.Logger
}

// NewServer creates a new Server instance. It panics when the embedded
// templates do not parse, which only happens on a broken build.
func NewServer(app *core.App) *Server {
	return &Server{
		app:       app,
		store:     app.Store(),
		templates: template.Must(template.New("").Funcs(templateFuncs).ParseFS(assets.WebFS, "web/templates/*.html")),
		logger:    app.Logger().Named("api"),
	}
}

// Store returns the store instance.
func (s *Server) Store() *store.Store {
	return s.store
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Post("/api/users/login", s.handleLogin)
		r.Get("/api/version", s.handleGetVersion)
		r.Get("/api/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware)

			r.Post("/api/users/logout", s.handleLogout)
			r.Get("/api/users/me", s.handleGetMe)

			r.Group(func(r chi.Router) {
				r.Use(s.AdminOnlyMiddleware)

				r.Get("/api/admin/jobs/status", s.handleGetAdminJobsStatus)
				r.Post("/api/admin/jobs/run", s.handleRunAdminJob)

				r.Get("/api/admin/addons", s.handleListAddons)
				r.Get("/api/admin/addons/update-count", s.handleGetUpdateCount)
				r.Get("/api/admin/addons/token", s.handleGetActionToken)
				r.Get("/api/admin/addons/{slug}/details", s.handleGetAddonDetails)
			})
		})
	})

	// Installs can outlast the API timeout; they are bounded by the
	// installer's own deadline. The websocket is long-lived.
	r.Group(func(r chi.Router) {
		r.Use(s.AuthMiddleware)
		r.Use(s.AdminOnlyMiddleware)

		r.Post("/api/admin/addons/actions", s.handleAddonActionJSON)
		r.Get("/ws/admin/addons", func(w http.ResponseWriter, r *http.Request) {
			s.app.WsHub().ServeWs(w, r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.SessionMiddleware)

		r.Post("/admin/addons", s.handleAddonAction)
		r.Get("/login", s.handleLoginPage)
		r.Post("/logout", s.handleLogoutForm)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, addonsPagePath, http.StatusFound)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.AdminPageMiddleware)

			r.Get("/admin/addons", s.handleAddonsPage)
			r.Get("/admin/addons/{slug}/details", s.handleAddonDetailsPage)
		})
	})

	staticFS, err := fs.Sub(assets.WebFS, "web/static")
	if err != nil {
		s.logger.Fatal("failed to create static sub-filesystem", zap.Error(err))
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	return r
}
