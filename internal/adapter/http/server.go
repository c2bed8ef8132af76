package adapthttp

import (
	"net/http"

	"weightlog/internal/app"
	"weightlog/internal/domain"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// maxBodyBytes bounds every API request body.
const maxBodyBytes = 1 << 20

// localUser is attached to requests when authentication is disabled.
var localUser = &domain.User{ID: 1, Username: "local"}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	weight      *app.WeightService
	history     *app.HistoryService
	authSvc     *app.AuthService
	oidcConfig  *OIDCConfig
	logger      *zap.Logger
	webDir      string
	disableAuth bool
	forwardAuth bool
}

// New creates a Server wired to the given application services. SSO is
// disabled until WithOIDC is called.
func New(ws *app.WeightService, hs *app.HistoryService, as *app.AuthService, webDir string) *Server {
	return &Server{
		weight:     ws,
		history:    hs,
		authSvc:    as,
		oidcConfig: &OIDCConfig{},
		logger:     zap.NewNop(),
		webDir:     webDir,
	}
}

// WithLogger sets the access logger.
func (s *Server) WithLogger(l *zap.Logger) *Server {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithOIDC enables single sign-on with the given provider configuration.
func (s *Server) WithOIDC(c *OIDCConfig) *Server {
	if c != nil {
		s.oidcConfig = c
	}
	return s
}

// WithForwardAuth makes the server trust the Remote-User header set by an
// authenticating reverse proxy.
func (s *Server) WithForwardAuth(enabled bool) *Server {
	s.forwardAuth = enabled
	return s
}

// WithoutAuth disables authentication; every request acts as a single local
// user. Intended for tests.
func (s *Server) WithoutAuth() *Server {
	s.disableAuth = true
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(withNoCache)

	r.Route("/api", func(api chi.Router) {
		api.Use(limitBody(maxBodyBytes))

		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})
		api.Get("/config", s.handleConfig)

		api.Post("/auth/login", s.handleLogin)
		api.Post("/auth/logout", s.handleLogout)
		api.Post("/auth/setup", s.handleSetupUser)
		api.Get("/auth/sso/login", s.handleSSOLogin)
		api.Get("/auth/sso/callback", s.handleSSOCallback)

		api.Group(func(p chi.Router) {
			p.Use(s.authMiddleware)

			p.Get("/weight/today", s.handleWeightTodayGet)
			p.Put("/weight/today", s.handleWeightTodayPut)
			p.Get("/weight/recent", s.handleWeightRecent)
			p.Post("/weight/undo-last", s.handleWeightUndoLast)
			p.Post("/weight/import", s.handleWeightImport)
			p.Get("/weight/series", s.handleWeightSeries)

			p.Get("/history/daily", s.handleHistoryDaily)
		})
	})

	r.Handle("/*", spaFromDisk(s.webDir))
	return r
}
