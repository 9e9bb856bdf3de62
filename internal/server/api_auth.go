package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/benpsk/itemboard/internal/user"
	"golang.org/x/crypto/bcrypt"
)

type apiAuthContextKey string

const apiAuthClaimsKey apiAuthContextKey = "api_auth_claims"

type apiLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type apiRefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type apiTokenResponse struct {
	TokenType             string    `json:"token_type"`
	AccessToken           string    `json:"access_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshToken          string    `json:"refresh_token,omitempty"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at,omitempty"`
}

type apiAuthUserResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (h handler) apiLogin(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(h.apiAccessTokenSecret) == "" {
		writeErrorJSON(w, http.StatusServiceUnavailable, "api auth is not configured")
		return
	}

	var req apiLoginRequest
	if err := decodeJSONWithLimit(w, r, &req, defaultRequestBodyLimitBytes); err != nil {
		if isRequestBodyTooLarge(err) {
			writeErrorJSON(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeErrorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeErrorJSON(w, http.StatusBadRequest, "email and password are required")
		return
	}

	currentUser, hash, err := h.users.FindCredentialsByEmail(r.Context(), req.Email)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password))
	}
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			log.Printf("api login: %v", err)
		}
		writeErrorJSON(w, http.StatusUnauthorized, user.ErrInvalidCredentials.Error())
		return
	}

	resp, err := h.issueAPITokenPair(r.Context(), currentUser.ID, time.Now())
	if err != nil {
		log.Printf("api login: issue tokens: %v", err)
		writeErrorJSON(w, http.StatusInternalServerError, "failed to issue tokens")
		return
	}
	h.setAPIRefreshCookie(w, r, resp.RefreshToken, resp.RefreshTokenExpiresAt)
	writeJSON(w, http.StatusOK, map[string]any{
		"token_type":               resp.TokenType,
		"access_token":             resp.AccessToken,
		"access_token_expires_at":  resp.AccessTokenExpiresAt,
		"refresh_token":            resp.RefreshToken,
		"refresh_token_expires_at": resp.RefreshTokenExpiresAt,
		"user": apiAuthUserResponse{
			ID:    currentUser.ID,
			Email: currentUser.Email,
			Name:  currentUser.Name,
		},
	})
}

func (h handler) apiRefresh(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(h.apiAccessTokenSecret) == "" {
		writeErrorJSON(w, http.StatusServiceUnavailable, "api auth is not configured")
		return
	}
	refreshToken := h.apiRefreshTokenFromRequest(r)
	if refreshToken == "" {
		var req apiRefreshRequest
		if err := decodeJSONWithLimit(w, r, &req, defaultRequestBodyLimitBytes); err == nil {
			refreshToken = strings.TrimSpace(req.RefreshToken)
		} else if isRequestBodyTooLarge(err) {
			writeErrorJSON(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		} else if !errors.Is(err, io.EOF) {
			writeErrorJSON(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	if refreshToken == "" {
		writeErrorJSON(w, http.StatusBadRequest, "refresh_token is required")
		return
	}
	resp, err := h.rotateAPIRefreshToken(r.Context(), refreshToken, time.Now())
	if err != nil {
		writeErrorJSON(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	h.setAPIRefreshCookie(w, r, resp.RefreshToken, resp.RefreshTokenExpiresAt)
	writeJSON(w, http.StatusOK, resp)
}

func (h handler) apiLogout(w http.ResponseWriter, r *http.Request) {
	refreshToken := h.apiRefreshTokenFromRequest(r)
	if refreshToken == "" {
		var req apiRefreshRequest
		if err := decodeJSONWithLimit(w, r, &req, defaultRequestBodyLimitBytes); err == nil {
			refreshToken = strings.TrimSpace(req.RefreshToken)
		} else if isRequestBodyTooLarge(err) {
			writeErrorJSON(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		} else if !errors.Is(err, io.EOF) {
			writeErrorJSON(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	if refreshToken != "" {
		_ = h.users.RevokeAPIRefreshTokenByHash(r.Context(), hashToken(refreshToken), time.Now())
	}
	h.clearAPIRefreshCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (h handler) apiMe(w http.ResponseWriter, r *http.Request) {
	claims := apiAuthFromContext(r)
	if claims == nil {
		writeErrorJSON(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	currentUser, err := h.users.FindByID(r.Context(), claims.UserID)
	if err != nil {
		writeErrorJSON(w, http.StatusUnauthorized, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, apiAuthUserResponse{
		ID:    currentUser.ID,
		Email: currentUser.Email,
		Name:  currentUser.Name,
	})
}

func (h handler) requireAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerTokenFromRequest(r)
		claims, err := h.parseAPIAccessToken(token)
		if err != nil {
			writeErrorJSON(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), apiAuthClaimsKey, &claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loadAPIClaims is the optional flavor of requireAPIAuth: a valid bearer
// token attaches claims, anything else falls through so the session cookie
// (or anonymity) can decide.
func (h handler) loadAPIClaims(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerTokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := h.parseAPIAccessToken(token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), apiAuthClaimsKey, &claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func apiAuthFromContext(r *http.Request) *parsedAPIAccessToken {
	if r == nil {
		return nil
	}
	if claims, ok := r.Context().Value(apiAuthClaimsKey).(*parsedAPIAccessToken); ok {
		return claims
	}
	return nil
}
