package user

import (
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailConflict      = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

const minPasswordLength = 8

type User struct {
	ID        int64
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Registration carries the inputs for a new password account. The password
// itself never leaves the server layer; stores receive only the hash.
type Registration struct {
	Email    string
	Name     string
	Password string
}

func (r Registration) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	email := strings.TrimSpace(r.Email)
	if email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("email is not valid")
	}
	if utf8.RuneCountInString(r.Password) < minPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

type Session struct {
	ID         int64
	UserID     int64
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastSeenAt time.Time
	IP         string
	UserAgent  string
	RevokedAt  *time.Time
}

type APIRefreshToken struct {
	ID                int64
	UserID            int64
	FamilyID          string
	TokenHash         string
	ExpiresAt         time.Time
	CreatedAt         time.Time
	LastUsedAt        *time.Time
	RevokedAt         *time.Time
	ReplacedByTokenID *int64
}
