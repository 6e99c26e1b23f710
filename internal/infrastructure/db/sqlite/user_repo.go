package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/sessiongate/sessiongate/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// ---------- helpers ----------

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const userColumns = `username, creation_time, ip, email, pwhash, pwsalt,
pwchange_time, token, verified, token_time, last_forgot_validated`

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.Username,
		&u.CreationTime,
		&u.IP,
		&u.Email,
		&u.PwHash,
		&u.PwSalt,
		&u.PwChangeTime,
		&u.Token,
		&u.Verified,
		&u.TokenTime,
		&u.LastForgotValidated,
	)
	return u, err
}

func mapLookupErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrUserNotFound()
	}
	return domain.ErrDBUnavailable(err)
}

// ---------- auth.UserRepo ----------

func (r *UserRepo) Get(ctx context.Context, username string) (domain.User, error) {
	if username == "" {
		return domain.User{}, domain.ErrMissingField("username")
	}

	const q = `SELECT ` + userColumns + ` FROM users WHERE username = ? LIMIT 1;`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, username))
	if err != nil {
		return domain.User{}, mapLookupErr(err)
	}
	return u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return domain.User{}, domain.ErrMissingField("email")
	}

	const q = `SELECT ` + userColumns + ` FROM users WHERE email = ? LIMIT 1;`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, email))
	if err != nil {
		return domain.User{}, mapLookupErr(err)
	}
	return u, nil
}

// GetByToken resolves a user from an active verify/reset token. With
// requireVerified set it only matches confirmed accounts holding a live
// token, which is the forgot-password contract.
func (r *UserRepo) GetByToken(ctx context.Context, token string, requireVerified bool) (domain.User, error) {
	if token == "" {
		return domain.User{}, domain.ErrMissingField("token")
	}

	q := `SELECT ` + userColumns + ` FROM users WHERE token = ? LIMIT 1;`
	if requireVerified {
		q = `SELECT ` + userColumns + ` FROM users
WHERE token = ? AND verified = 100 AND token_time != 0 LIMIT 1;`
	}
	u, err := scanUser(r.db.QueryRowContext(ctx, q, token))
	if err != nil {
		return domain.User{}, mapLookupErr(err)
	}
	return u, nil
}

func (r *UserRepo) Insert(ctx context.Context, u domain.User) error {
	u.Email = normalizeEmail(u.Email)
	if u.Username == "" {
		return domain.ErrMissingField("username")
	}
	if u.Email == "" {
		return domain.ErrMissingField("email")
	}

	const q = `
INSERT INTO users (` + userColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	_, err := r.db.ExecContext(ctx, q,
		u.Username, u.CreationTime, u.IP, u.Email, u.PwHash, u.PwSalt,
		u.PwChangeTime, u.Token, u.Verified, u.TokenTime, u.LastForgotValidated,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return domain.ErrUsernameAlreadyExists()
		}
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, username, hash, salt string, now int64) error {
	const q = `
UPDATE users SET pwhash = ?, pwsalt = ?, pwchange_time = ?, last_forgot_validated = 0
WHERE username = ?;`
	return r.exec(ctx, q, hash, salt, now, username)
}

func (r *UserRepo) UpdateVerified(ctx context.Context, username string, v int) error {
	const q = `UPDATE users SET verified = ? WHERE username = ?;`
	return r.exec(ctx, q, v, username)
}

// MarkMailed flips a freshly registered user to "verification email
// dispatched" without disturbing accounts already past that state.
func (r *UserRepo) MarkMailed(ctx context.Context, username string) error {
	const q = `UPDATE users SET verified = 1 WHERE username = ? AND verified = 0;`
	return r.exec(ctx, q, username)
}

func (r *UserRepo) UpdateToken(ctx context.Context, username, token string, tokenTime int64) error {
	const q = `UPDATE users SET token = ?, token_time = ? WHERE username = ?;`
	return r.exec(ctx, q, token, tokenTime, username)
}

func (r *UserRepo) UpdateForgotValidated(ctx context.Context, username string, t int64) error {
	const q = `UPDATE users SET token_time = 0, last_forgot_validated = ? WHERE username = ?;`
	return r.exec(ctx, q, t, username)
}

// DeleteStaleUnverified removes accounts that never completed verification
// before the cutoff.
func (r *UserRepo) DeleteStaleUnverified(ctx context.Context, cutoff int64) error {
	const q = `DELETE FROM users WHERE verified != 100 AND creation_time <= ?;`
	return r.exec(ctx, q, cutoff)
}

// ExpireTokens zeroes token_time for tokens issued at or before the cutoff,
// killing stale verify/reset links.
func (r *UserRepo) ExpireTokens(ctx context.Context, cutoff int64) error {
	const q = `UPDATE users SET token_time = 0 WHERE token_time != 0 AND token_time <= ?;`
	return r.exec(ctx, q, cutoff)
}

func (r *UserRepo) exec(ctx context.Context, q string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}
