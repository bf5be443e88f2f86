package inmemdb

import (
	"time"

	"github.com/kotoba-school/kotoba/core/user"
)

type tokenRepository struct {
	db *tokenTable
}

var _ user.TokenRepository = (*tokenRepository)(nil)

func NewTokenRepository(db *DB) user.TokenRepository {
	return &tokenRepository{db: db.token}
}

func (repo *tokenRepository) CreateToken(tok user.ResetToken) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[tok.Token] = &tok
	return nil
}

func (repo *tokenRepository) GetToken(token string) (user.ResetToken, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if tok, ok := repo.db.table[token]; ok {
		return *tok, nil
	}
	return user.ResetToken{}, user.ErrTokenInvalid
}

// ConsumeToken marks the token used under the write lock, so two concurrent
// consumes cannot both succeed.
func (repo *tokenRepository) ConsumeToken(token string) (user.ResetToken, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	tok, ok := repo.db.table[token]
	if !ok {
		return user.ResetToken{}, user.ErrTokenInvalid
	}
	if err := tok.Validate(); err != nil {
		return user.ResetToken{}, err
	}
	tok.Used = true
	return *tok, nil
}

func (repo *tokenRepository) DeleteExpiredTokens(before time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for key, tok := range repo.db.table {
		if tok.ExpiresAt.Before(before) {
			delete(repo.db.table, key)
		}
	}
	return nil
}
