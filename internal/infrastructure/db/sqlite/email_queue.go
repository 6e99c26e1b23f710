package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sessiongate/sessiongate/internal/domain"
)

// MaxContentSize bounds a queued message. Large bodies indicate a template
// bug, not a legitimate send.
const MaxContentSize = 16 * 1024

type EmailQueue struct {
	db *sql.DB
}

func NewEmailQueue(db *sql.DB) *EmailQueue {
	return &EmailQueue{db: db}
}

// Enqueue stores one pending message per user; a second enqueue for the same
// user supersedes the first.
func (r *EmailQueue) Enqueue(ctx context.Context, username string, content []byte) error {
	if username == "" {
		return domain.ErrMissingField("username")
	}
	if len(content) > MaxContentSize {
		return domain.ErrInvalidField("content", "too large")
	}

	const q = `INSERT INTO email_queue (username, content) VALUES (?, ?)
ON CONFLICT(username) DO UPDATE SET content = excluded.content;`
	if _, err := r.db.ExecContext(ctx, q, username, content); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}

// PeekOne returns the next queued username, in no particular order.
func (r *EmailQueue) PeekOne(ctx context.Context) (string, error) {
	const q = `SELECT username FROM email_queue LIMIT 1;`
	var username string
	err := r.db.QueryRowContext(ctx, q).Scan(&username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNothingQueued()
		}
		return "", domain.ErrDBUnavailable(err)
	}
	return username, nil
}

// Body returns the queued message for a user.
func (r *EmailQueue) Body(ctx context.Context, username string) ([]byte, error) {
	const q = `SELECT content FROM email_queue WHERE username = ? LIMIT 1;`
	var content []byte
	err := r.db.QueryRowContext(ctx, q, username).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNothingQueued()
		}
		return nil, domain.ErrDBUnavailable(err)
	}
	return content, nil
}

func (r *EmailQueue) Delete(ctx context.Context, username string) error {
	const q = `DELETE FROM email_queue WHERE username = ?;`
	if _, err := r.db.ExecContext(ctx, q, username); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}
