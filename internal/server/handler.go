package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/benpsk/itemboard/internal/config"
	"github.com/benpsk/itemboard/internal/item"
	"github.com/benpsk/itemboard/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
)

type handler struct {
	db    *pgxpool.Pool
	items *item.Service
	users *postgres.UserStore

	appName string
	appEnv  string
	appURL  string

	sessionCookieName        string
	sessionTTL               time.Duration
	sessionCookieForceSecure bool

	apiAccessTokenSecret string
	apiAccessTokenTTL    time.Duration
	apiRefreshTokenTTL   time.Duration
	apiRefreshCookieName string
}

func newHandler(db *pgxpool.Pool, cfg config.Config) handler {
	return handler{
		db:                       db,
		items:                    item.NewService(postgres.NewItemStore(db)),
		users:                    postgres.NewUserStore(db),
		appName:                  strings.TrimSpace(cfg.AppName),
		appEnv:                   strings.TrimSpace(cfg.AppEnv),
		appURL:                   strings.TrimSpace(cfg.AppURL),
		sessionCookieName:        cfg.Auth.SessionCookieName,
		sessionTTL:               cfg.Auth.SessionTTL,
		sessionCookieForceSecure: cfg.Auth.CookieSecure,
		apiAccessTokenSecret:     cfg.Auth.API.AccessTokenSecret,
		apiAccessTokenTTL:        cfg.Auth.API.AccessTokenTTL,
		apiRefreshTokenTTL:       cfg.Auth.API.RefreshTokenTTL,
		apiRefreshCookieName:     cfg.Auth.API.RefreshCookieName,
	}
}

func (h handler) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	payload := map[string]any{"status": "ok", "database": "up"}
	status := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			payload["status"] = "degraded"
			payload["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, payload)
}

func (h handler) renderPage(w http.ResponseWriter, r *http.Request, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

// writeStoreFailure hides persistence errors behind a generic message; the
// cause goes to the log only.
func writeStoreFailure(w http.ResponseWriter, op string, err error) {
	log.Printf("%s: %v", op, err)
	writeErrorJSON(w, http.StatusInternalServerError, "something went wrong")
}
