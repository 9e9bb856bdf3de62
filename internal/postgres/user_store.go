package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benpsk/itemboard/internal/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserStore struct {
	db DBTX
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{db: pool}
}

func (s *UserStore) CreateUser(ctx context.Context, email, name, passwordHash string) (user.User, error) {
	db := DBFromContext(ctx, s.db)
	var out user.User
	err := db.QueryRow(ctx, `
		insert into users (email, name, password_hash)
		values ($1, $2, $3)
		returning id, email, name, created_at, updated_at
	`, strings.TrimSpace(strings.ToLower(email)), strings.TrimSpace(name), passwordHash).Scan(
		&out.ID, &out.Email, &out.Name, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailConflict
		}
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}
	return out, nil
}

func (s *UserStore) FindByID(ctx context.Context, id int64) (user.User, error) {
	db := DBFromContext(ctx, s.db)
	var out user.User
	err := db.QueryRow(ctx, `
		select id, email, name, created_at, updated_at
		from users
		where id = $1
	`, id).Scan(&out.ID, &out.Email, &out.Name, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return out, nil
}

// FindCredentialsByEmail returns the account and its password hash for a
// login attempt. The hash never travels further than the caller's compare.
func (s *UserStore) FindCredentialsByEmail(ctx context.Context, email string) (user.User, string, error) {
	db := DBFromContext(ctx, s.db)
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return user.User{}, "", user.ErrNotFound
	}
	var out user.User
	var hash string
	err := db.QueryRow(ctx, `
		select id, email, name, password_hash, created_at, updated_at
		from users
		where email = $1
	`, email).Scan(&out.ID, &out.Email, &out.Name, &hash, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, "", user.ErrNotFound
		}
		return user.User{}, "", fmt.Errorf("find user by email: %w", err)
	}
	return out, hash, nil
}

func (s *UserStore) CreateSession(ctx context.Context, sess user.Session) error {
	db := DBFromContext(ctx, s.db)
	_, err := db.Exec(ctx, `
		insert into user_sessions (user_id, token_hash, expires_at, last_seen_at, ip, user_agent)
		values ($1, $2, $3, coalesce($4, now()), nullif($5, ''), nullif($6, ''))
	`, sess.UserID, sess.TokenHash, sess.ExpiresAt, sess.LastSeenAt, strings.TrimSpace(sess.IP), strings.TrimSpace(sess.UserAgent))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *UserStore) FindSessionAndUserByTokenHash(ctx context.Context, tokenHash string) (user.Session, user.User, error) {
	db := DBFromContext(ctx, s.db)
	var sess user.Session
	var u user.User
	err := db.QueryRow(ctx, `
		select
			s.id, s.user_id, s.token_hash, s.expires_at, s.created_at, s.last_seen_at,
			coalesce(s.ip, ''), coalesce(s.user_agent, ''), s.revoked_at,
			u.id, u.email, u.name, u.created_at, u.updated_at
		from user_sessions s
		join users u on u.id = s.user_id
		where s.token_hash = $1
	`, strings.TrimSpace(tokenHash)).Scan(
		&sess.ID, &sess.UserID, &sess.TokenHash, &sess.ExpiresAt, &sess.CreatedAt, &sess.LastSeenAt, &sess.IP, &sess.UserAgent, &sess.RevokedAt,
		&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.Session{}, user.User{}, user.ErrNotFound
		}
		return user.Session{}, user.User{}, fmt.Errorf("find session by token hash: %w", err)
	}
	return sess, u, nil
}

func (s *UserStore) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	db := DBFromContext(ctx, s.db)
	_, err := db.Exec(ctx, `delete from user_sessions where token_hash = $1`, strings.TrimSpace(tokenHash))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *UserStore) TouchSession(ctx context.Context, sessionID int64, at time.Time) error {
	db := DBFromContext(ctx, s.db)
	_, err := db.Exec(ctx, `update user_sessions set last_seen_at = $2 where id = $1`, sessionID, at)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *UserStore) CreateAPIRefreshToken(ctx context.Context, token user.APIRefreshToken) error {
	db := DBFromContext(ctx, s.db)
	_, err := db.Exec(ctx, `
		insert into api_refresh_tokens (user_id, family_id, token_hash, expires_at)
		values ($1, $2, $3, $4)
	`, token.UserID, strings.TrimSpace(token.FamilyID), strings.TrimSpace(token.TokenHash), token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create api refresh token: %w", err)
	}
	return nil
}

func (s *UserStore) GetAPIRefreshTokenByHash(ctx context.Context, tokenHash string) (user.APIRefreshToken, error) {
	db := DBFromContext(ctx, s.db)
	var out user.APIRefreshToken
	err := db.QueryRow(ctx, `
		select id, user_id, family_id, token_hash, expires_at, created_at, last_used_at, revoked_at, replaced_by_token_id
		from api_refresh_tokens
		where token_hash = $1
	`, strings.TrimSpace(tokenHash)).Scan(
		&out.ID, &out.UserID, &out.FamilyID, &out.TokenHash, &out.ExpiresAt, &out.CreatedAt, &out.LastUsedAt, &out.RevokedAt, &out.ReplacedByTokenID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.APIRefreshToken{}, user.ErrNotFound
		}
		return user.APIRefreshToken{}, fmt.Errorf("get api refresh token: %w", err)
	}
	return out, nil
}

type APIRotateRefreshTokenResult struct {
	UserID        int64
	FamilyID      string
	ReuseDetected bool
	Authorized    bool
}

// RotateAPIRefreshToken atomically replaces a refresh token with a new one
// from the same family. Presenting an already-rotated or revoked token is
// treated as reuse and revokes the whole family.
func (s *UserStore) RotateAPIRefreshToken(ctx context.Context, oldTokenHash string, newToken user.APIRefreshToken, now time.Time) (APIRotateRefreshTokenResult, error) {
	db := DBFromContext(ctx, s.db)
	tx, err := db.Begin(ctx)
	if err != nil {
		return APIRotateRefreshTokenResult{}, fmt.Errorf("begin rotate api refresh token: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var current user.APIRefreshToken
	err = tx.QueryRow(ctx, `
		select id, user_id, family_id, token_hash, expires_at, created_at, last_used_at, revoked_at, replaced_by_token_id
		from api_refresh_tokens
		where token_hash = $1
		for update
	`, strings.TrimSpace(oldTokenHash)).Scan(
		&current.ID, &current.UserID, &current.FamilyID, &current.TokenHash, &current.ExpiresAt, &current.CreatedAt, &current.LastUsedAt, &current.RevokedAt, &current.ReplacedByTokenID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return APIRotateRefreshTokenResult{Authorized: false}, nil
		}
		return APIRotateRefreshTokenResult{}, fmt.Errorf("select current api refresh token: %w", err)
	}

	if current.RevokedAt != nil || current.ReplacedByTokenID != nil || now.After(current.ExpiresAt) {
		_, _ = tx.Exec(ctx, `update api_refresh_tokens set revoked_at = coalesce(revoked_at, $2) where family_id = $1`, current.FamilyID, now)
		if err := tx.Commit(ctx); err != nil {
			return APIRotateRefreshTokenResult{}, fmt.Errorf("commit revoke family on reuse: %w", err)
		}
		return APIRotateRefreshTokenResult{
			UserID:        current.UserID,
			FamilyID:      current.FamilyID,
			ReuseDetected: true,
			Authorized:    false,
		}, nil
	}

	var newID int64
	err = tx.QueryRow(ctx, `
		insert into api_refresh_tokens (user_id, family_id, token_hash, expires_at)
		values ($1, $2, $3, $4)
		returning id
	`, current.UserID, current.FamilyID, strings.TrimSpace(newToken.TokenHash), newToken.ExpiresAt).Scan(&newID)
	if err != nil {
		return APIRotateRefreshTokenResult{}, fmt.Errorf("insert rotated api refresh token: %w", err)
	}

	_, err = tx.Exec(ctx, `
		update api_refresh_tokens
		set last_used_at = $2, revoked_at = $2, replaced_by_token_id = $3
		where id = $1
	`, current.ID, now, newID)
	if err != nil {
		return APIRotateRefreshTokenResult{}, fmt.Errorf("mark current api refresh token rotated: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return APIRotateRefreshTokenResult{}, fmt.Errorf("commit rotate api refresh token: %w", err)
	}

	return APIRotateRefreshTokenResult{
		UserID:     current.UserID,
		FamilyID:   current.FamilyID,
		Authorized: true,
	}, nil
}

func (s *UserStore) RevokeAPIRefreshTokenByHash(ctx context.Context, tokenHash string, now time.Time) error {
	db := DBFromContext(ctx, s.db)
	_, err := db.Exec(ctx, `update api_refresh_tokens set revoked_at = coalesce(revoked_at, $2) where token_hash = $1`, strings.TrimSpace(tokenHash), now)
	if err != nil {
		return fmt.Errorf("revoke api refresh token: %w", err)
	}
	return nil
}

func (s *UserStore) RevokeAPIRefreshTokenFamily(ctx context.Context, familyID string, now time.Time) error {
	db := DBFromContext(ctx, s.db)
	_, err := db.Exec(ctx, `update api_refresh_tokens set revoked_at = coalesce(revoked_at, $2) where family_id = $1`, strings.TrimSpace(familyID), now)
	if err != nil {
		return fmt.Errorf("revoke api refresh token family: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
