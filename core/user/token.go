package user

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

var (
	nowFunc = time.Now // mockable

	// token errors. Expired and already-used tokens are distinguished here
	// for logging and tests; the HTTP layer reports both with one message.
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenUsed    = errors.New("token already used")
)

// ResetToken is a single-use password-reset credential bound to one email
// address. It is never updated after consumption.
type ResetToken struct {
	Token     string
	Email     string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

func (t ResetToken) expired() bool {
	return nowFunc().After(t.ExpiresAt)
}

// Validate classifies a stored token: nil, ErrTokenUsed or ErrTokenExpired.
// Repositories call it before consuming.
func (t ResetToken) Validate() error {
	return checkToken(t)
}

// TokenRepository stores reset tokens. ConsumeToken must mark the token
// used atomically with the lookup: a second consume of the same token fails
// with ErrTokenUsed even when it is still time-valid.
type TokenRepository interface {
	CreateToken(tok ResetToken) error
	GetToken(token string) (ResetToken, error)
	ConsumeToken(token string) (ResetToken, error)
	DeleteExpiredTokens(before time.Time) error
}

// makeToken issues an opaque random token for the given email, valid for
// the configured timeout.
func makeToken(email string, timeout time.Duration) (ResetToken, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return ResetToken{}, err
	}
	now := nowFunc().UTC()
	return ResetToken{
		Token:     base64.RawURLEncoding.EncodeToString(raw),
		Email:     email,
		ExpiresAt: now.Add(timeout),
		CreatedAt: now,
	}, nil
}

// checkToken classifies a stored token without consuming it.
func checkToken(tok ResetToken) error {
	if tok.Used {
		return ErrTokenUsed
	}
	if tok.expired() {
		return ErrTokenExpired
	}
	return nil
}
