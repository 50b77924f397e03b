package domain

import (
	"strings"
	"time"

	"github.com/chatgrid/chat-service/internal/errs"
)

type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// NewUser ожидает уже посчитанный хеш пароля.
func NewUser(username, email, passwordHash string, now time.Time) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errs.ErrInvalidUsername
	}
	email = normalizeEmail(email)
	if email == "" {
		return nil, errs.ErrInvalidEmail
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, errs.ErrEmptyPasswordHash
	}

	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
