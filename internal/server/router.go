package server

import (
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/benpsk/itemboard/internal/config"
	webstatic "github.com/benpsk/itemboard/static"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewRouter(cfg config.Config, db *pgxpool.Pool) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   appOrigins(cfg.AppURL),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	staticFS := webstatic.FileSystem()
	if _, err := os.Stat("static"); err == nil {
		staticFS = http.Dir("static")
	}

	h := newHandler(db, cfg)

	r.Use(csrfProtection)
	r.Use(h.loadSession)
	r.Use(h.loadAPIClaims)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(staticFS)))
	r.Get("/healthz", h.healthz)
	r.Get("/api/health", h.healthz)

	r.Get("/", h.boardPage)

	authLimiter := newAuthRateLimiter(defaultAuthRateLimitRequests, defaultAuthRateLimitWindow)
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.requireGuest)
			r.Get("/login", h.loginPage)
			r.Get("/register", h.registerPage)
			r.With(authLimiter.limitByIP("web_login")).Post("/login", h.login)
			r.With(authLimiter.limitByIP("web_register")).Post("/register", h.register)
		})
		r.Post("/logout", h.logout)
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.With(authLimiter.limitByIP("api_login")).Post("/login", h.apiLogin)
		r.With(authLimiter.limitByIP("api_refresh")).Post("/refresh", h.apiRefresh)
		r.Post("/logout", h.apiLogout)
		r.With(h.requireAPIAuth).Get("/me", h.apiMe)
	})

	// The items API answers at both roots; the board client uses /api/items.
	r.Route("/items", h.itemRoutes)
	r.Route("/api/items", h.itemRoutes)

	return r
}

func (h handler) itemRoutes(r chi.Router) {
	r.Get("/", h.listItems)
	r.Post("/", h.createItem)
	r.Delete("/{id}", h.deleteItem)
}

func appOrigins(appURL string) []string {
	appURL = strings.TrimSpace(appURL)
	if appURL == "" {
		return nil
	}
	parsed, err := url.Parse(appURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil
	}
	return []string{parsed.Scheme + "://" + parsed.Host}
}
