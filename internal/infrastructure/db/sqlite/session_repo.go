package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sessiongate/sessiongate/internal/domain"
)

type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Insert(ctx context.Context, s domain.Session) error {
	const q = `INSERT INTO sessions (name, username, expire, last_seen) VALUES (?, ?, ?, ?);`
	if _, err := r.db.ExecContext(ctx, q, s.Name, s.Username, s.Expire, s.LastSeen); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, name string) (domain.Session, error) {
	const q = `SELECT name, username, expire, last_seen FROM sessions WHERE name = ? LIMIT 1;`
	var s domain.Session
	err := r.db.QueryRowContext(ctx, q, name).Scan(&s.Name, &s.Username, &s.Expire, &s.LastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, domain.ErrSessionNotFound()
		}
		return domain.Session{}, domain.ErrDBUnavailable(err)
	}
	return s, nil
}

func (r *SessionRepo) Update(ctx context.Context, name, username string, expire int64) error {
	const q = `UPDATE sessions SET username = ?, expire = ? WHERE name = ?;`
	if _, err := r.db.ExecContext(ctx, q, username, expire, name); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

func (r *SessionRepo) Touch(ctx context.Context, name string, lastSeen int64) error {
	const q = `UPDATE sessions SET last_seen = ? WHERE name = ?;`
	if _, err := r.db.ExecContext(ctx, q, lastSeen, name); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, name string) error {
	const q = `DELETE FROM sessions WHERE name = ?;`
	if _, err := r.db.ExecContext(ctx, q, name); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

// DeleteExpired removes sessions past their absolute deadline or idle for
// longer than idleSecs. Idempotent; safe to run from any caller. Returns the
// number of rows removed for the sweep metric.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now int64, idleSecs int64) (int64, error) {
	const q = `DELETE FROM sessions WHERE expire <= ? OR (last_seen != 0 AND ? - last_seen > ?);`
	res, err := r.db.ExecContext(ctx, q, now, now, idleSecs)
	if err != nil {
		return 0, domain.ErrDBUnavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
