package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func apiLoginResponse(t *testing.T, rec *httptest.ResponseRecorder) (accessToken, refreshToken string) {
	t.Helper()
	var body struct {
		TokenType    string `json:"token_type"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		User         struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode token response: %v body=%s", err, rec.Body.String())
	}
	if body.TokenType != "bearer" {
		t.Fatalf("unexpected token type: %q", body.TokenType)
	}
	if body.AccessToken == "" || body.RefreshToken == "" {
		t.Fatalf("expected both tokens in response: %s", rec.Body.String())
	}
	return body.AccessToken, body.RefreshToken
}

func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAPILoginIssuesTokenPair(t *testing.T) {
	ctx, cleanup := withTx(t)
	defer cleanup()

	h := testHandler(t)
	u := insertUser(t, ctx, h)

	rec := httptest.NewRecorder()
	h.apiLogin(rec, jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    u.Email,
		"password": testPassword,
	}).WithContext(ctx))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	accessToken, refreshToken := apiLoginResponse(t, rec)

	claims, err := h.parseAPIAccessToken(accessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != u.ID {
		t.Fatalf("access token user = %d, want %d", claims.UserID, u.ID)
	}

	stored, err := h.users.GetAPIRefreshTokenByHash(ctx, hashToken(refreshToken))
	if err != nil {
		t.Fatalf("expected refresh token in store: %v", err)
	}
	if stored.UserID != u.ID {
		t.Fatalf("stored refresh token user = %d, want %d", stored.UserID, u.ID)
	}

	var sawCookie bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == h.apiRefreshCookieName && c.Value == refreshToken {
			sawCookie = true
			if c.Path != "/api/auth" {
				t.Fatalf("refresh cookie path = %q, want /api/auth", c.Path)
			}
		}
	}
	if !sawCookie {
		t.Fatalf("expected refresh cookie to be set")
	}
}

func TestAPILoginRejectsBadCredentials(t *testing.T) {
	ctx, cleanup := withTx(t)
	defer cleanup()

	h := testHandler(t)
	u := insertUser(t, ctx, h)

	cases := []struct {
		name    string
		payload map[string]string
		status  int
	}{
		{"wrong password", map[string]string{"email": u.Email, "password": "nope nope nope"}, http.StatusUnauthorized},
		{"unknown email", map[string]string{"email": "nobody@example.com", "password": testPassword}, http.StatusUnauthorized},
		{"missing fields", map[string]string{}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.apiLogin(rec, jsonRequest(t, http.MethodPost, "/api/auth/login", tc.payload).WithContext(ctx))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}

func TestAPIRefreshRotatesToken(t *testing.T) {
	ctx, cleanup := withTx(t)
	defer cleanup()

	h := testHandler(t)
	u := insertUser(t, ctx, h)

	pair, err := h.issueAPITokenPair(ctx, u.ID, time.Now())
	if err != nil {
		t.Fatalf("issue token pair: %v", err)
	}

	rec := httptest.NewRecorder()
	h.apiRefresh(rec, jsonRequest(t, http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}).WithContext(ctx))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	var rotated apiTokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &rotated); err != nil {
		t.Fatalf("decode rotated pair: %v", err)
	}
	if rotated.RefreshToken == "" || rotated.RefreshToken == pair.RefreshToken {
		t.Fatalf("expected a new refresh token")
	}

	old, err := h.users.GetAPIRefreshTokenByHash(ctx, hashToken(pair.RefreshToken))
	if err != nil {
		t.Fatalf("lookup old refresh token: %v", err)
	}
	if old.ReplacedByTokenID == nil {
		t.Fatalf("expected old refresh token to point at its replacement")
	}
}

func TestAPIRefreshReuseRevokesFamily(t *testing.T) {
	ctx, cleanup := withTx(t)
	defer cleanup()

	h := testHandler(t)
	u := insertUser(t, ctx, h)

	pair, err := h.issueAPITokenPair(ctx, u.ID, time.Now())
	if err != nil {
		t.Fatalf("issue token pair: %v", err)
	}
	rotated, err := h.rotateAPIRefreshToken(ctx, pair.RefreshToken, time.Now())
	if err != nil {
		t.Fatalf("first rotation failed: %v", err)
	}

	// Replaying the already-used token must fail and take the whole
	// family down with it.
	rec := httptest.NewRecorder()
	h.apiRefresh(rec, jsonRequest(t, http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}).WithContext(ctx))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("reuse status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec = httptest.NewRecorder()
	h.apiRefresh(rec, jsonRequest(t, http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh_token": rotated.RefreshToken,
	}).WithContext(ctx))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("post-revocation status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAPILogoutRevokesRefreshToken(t *testing.T) {
	ctx, cleanup := withTx(t)
	defer cleanup()

	h := testHandler(t)
	u := insertUser(t, ctx, h)

	pair, err := h.issueAPITokenPair(ctx, u.ID, time.Now())
	if err != nil {
		t.Fatalf("issue token pair: %v", err)
	}

	rec := httptest.NewRecorder()
	h.apiLogout(rec, jsonRequest(t, http.MethodPost, "/api/auth/logout", map[string]string{
		"refresh_token": pair.RefreshToken,
	}).WithContext(ctx))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	stored, err := h.users.GetAPIRefreshTokenByHash(ctx, hashToken(pair.RefreshToken))
	if err != nil {
		t.Fatalf("lookup refresh token: %v", err)
	}
	if stored.RevokedAt == nil {
		t.Fatalf("expected refresh token to be revoked")
	}

	rec2 := httptest.NewRecorder()
	h.apiRefresh(rec2, jsonRequest(t, http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}).WithContext(ctx))
	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout = %d, want %d", rec2.Code, http.StatusUnauthorized)
	}
}

func TestRequireAPIAuthAndMe(t *testing.T) {
	ctx, cleanup := withTx(t)
	defer cleanup()

	h := testHandler(t)
	u := insertUser(t, ctx, h)

	me := h.requireAPIAuth(http.HandlerFunc(h.apiMe))

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		me.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil).WithContext(ctx))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		me.ServeHTTP(rec, req.WithContext(ctx))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		accessToken, _, err := h.issueAPIAccessToken(u.ID, "family-test", time.Now())
		if err != nil {
			t.Fatalf("issue access token: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		rec := httptest.NewRecorder()
		me.ServeHTTP(rec, req.WithContext(ctx))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
		}
		var body apiAuthUserResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode me response: %v", err)
		}
		if body.ID != u.ID || body.Email != u.Email {
			t.Fatalf("unexpected identity: %+v", body)
		}
	})
}
