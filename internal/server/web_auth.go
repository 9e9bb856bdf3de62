package server

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/benpsk/itemboard/internal/user"
	"github.com/benpsk/itemboard/internal/web/pages"
	"golang.org/x/crypto/bcrypt"
)

func (h handler) loginPage(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, pages.LoginPage(h.authPageModel(w, r)))
}

func (h handler) registerPage(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, pages.RegisterPage(h.authPageModel(w, r)))
}

func (h handler) login(w http.ResponseWriter, r *http.Request) {
	if err := parseFormWithLimit(w, r, defaultRequestBodyLimitBytes); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	currentUser, hash, err := h.users.FindCredentialsByEmail(r.Context(), email)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	}
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			log.Printf("login: %v", err)
		}
		model := h.authPageModel(w, r)
		model.Email = email
		model.Error = user.ErrInvalidCredentials.Error()
		w.WriteHeader(http.StatusUnauthorized)
		h.renderPage(w, r, pages.LoginPage(model))
		return
	}

	h.startSessionAndRedirect(w, r, currentUser)
}

func (h handler) register(w http.ResponseWriter, r *http.Request) {
	if err := parseFormWithLimit(w, r, defaultRequestBodyLimitBytes); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	reg := user.Registration{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Password: r.PostFormValue("password"),
	}
	if err := reg.Validate(); err != nil {
		model := h.authPageModel(w, r)
		model.Email = reg.Email
		model.Name = reg.Name
		model.Error = err.Error()
		w.WriteHeader(http.StatusBadRequest)
		h.renderPage(w, r, pages.RegisterPage(model))
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("register: hash password: %v", err)
		http.Error(w, "failed to register", http.StatusInternalServerError)
		return
	}

	currentUser, err := h.users.CreateUser(r.Context(), reg.Email, reg.Name, string(passwordHash))
	if err != nil {
		model := h.authPageModel(w, r)
		model.Email = reg.Email
		model.Name = reg.Name
		if errors.Is(err, user.ErrEmailConflict) {
			model.Error = "An account with this email already exists"
			w.WriteHeader(http.StatusConflict)
		} else {
			log.Printf("register: %v", err)
			model.Error = "Failed to register"
			w.WriteHeader(http.StatusInternalServerError)
		}
		h.renderPage(w, r, pages.RegisterPage(model))
		return
	}

	h.startSessionAndRedirect(w, r, currentUser)
}

func (h handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := h.sessionTokenFromRequest(r); token != "" {
		_ = h.users.DeleteSessionByTokenHash(r.Context(), hashToken(token))
	}
	h.clearSessionCookie(w, r)
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h handler) startSessionAndRedirect(w http.ResponseWriter, r *http.Request, currentUser user.User) {
	token, expiresAt, err := h.createSession(r.Context(), currentUser, requestMetaFromRequest(r))
	if err != nil {
		log.Printf("create session: %v", err)
		http.Error(w, "failed to sign in", http.StatusInternalServerError)
		return
	}
	h.setSessionCookie(w, r, token, expiresAt)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h handler) authPageModel(w http.ResponseWriter, r *http.Request) pages.AuthPageModel {
	return pages.AuthPageModel{
		AppName:   h.appName,
		AppURL:    h.appURL,
		CSRFToken: ensureCSRFCookie(w, r),
	}
}
