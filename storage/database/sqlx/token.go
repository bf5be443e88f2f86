package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/kotoba-school/kotoba/core/user"
)

type tokenRepository struct {
	db *sqlx.DB
}

var _ user.TokenRepository = (*tokenRepository)(nil)

func NewTokenRepository(db *sql.DB) user.TokenRepository {
	return &tokenRepository{db: sqlx.NewDb(db, "postgres")}
}

type tokenRow struct {
	Token     string    `db:"token"`
	Email     string    `db:"email"`
	ExpiresAt time.Time `db:"expires_at"`
	Used      bool      `db:"used"`
	CreatedAt null.Time `db:"created_at"`
}

func (r tokenRow) resetToken() user.ResetToken {
	return user.ResetToken{
		Token:     r.Token,
		Email:     r.Email,
		ExpiresAt: r.ExpiresAt,
		Used:      r.Used,
		CreatedAt: r.CreatedAt.Time,
	}
}

func (repo *tokenRepository) CreateToken(tok user.ResetToken) error {
	query := `
		INSERT INTO password_reset_token (token, email, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := repo.db.Exec(query, tok.Token, tok.Email, tok.ExpiresAt, tok.Used, tok.CreatedAt); err != nil {
		return errors.Wrap(err, "inserting reset token")
	}
	return nil
}

func (repo *tokenRepository) GetToken(token string) (user.ResetToken, error) {
	var row tokenRow
	if err := repo.db.Get(&row, `SELECT * FROM password_reset_token WHERE token = $1`, token); err != nil {
		if err == sql.ErrNoRows {
			return user.ResetToken{}, user.ErrTokenInvalid
		}
		return user.ResetToken{}, errors.Wrap(err, "finding reset token")
	}
	return row.resetToken(), nil
}

// ConsumeToken flips used in a single guarded UPDATE; of two concurrent
// consumers only one sees a row change.
func (repo *tokenRepository) ConsumeToken(token string) (user.ResetToken, error) {
	var row tokenRow
	query := `
		UPDATE password_reset_token SET used = TRUE
		WHERE token = $1 AND NOT used
		RETURNING *`
	if err := repo.db.Get(&row, query, token); err != nil {
		if err == sql.ErrNoRows {
			// either unknown or already used; re-read to tell the two apart
			tok, gerr := repo.GetToken(token)
			if gerr != nil {
				return user.ResetToken{}, gerr
			}
			return user.ResetToken{}, tok.Validate()
		}
		return user.ResetToken{}, errors.Wrap(err, "consuming reset token")
	}

	tok := row.resetToken()
	tok.Used = false // validate pre-consumption state
	if err := tok.Validate(); err != nil {
		return user.ResetToken{}, err
	}
	tok.Used = true
	return tok, nil
}

func (repo *tokenRepository) DeleteExpiredTokens(before time.Time) error {
	if _, err := repo.db.Exec(`DELETE FROM password_reset_token WHERE expires_at < $1`, before); err != nil {
		return errors.Wrap(err, "deleting expired tokens")
	}
	return nil
}
