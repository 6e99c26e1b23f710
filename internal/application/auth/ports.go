package auth

import (
	"context"

	"github.com/sessiongate/sessiongate/internal/domain"
)

/*
UserRepo
--------
Persistence port for users.
Only describes WHAT the credential flows need, not HOW it's stored.
*/
type UserRepo interface {
	Get(ctx context.Context, username string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByToken(ctx context.Context, token string, requireVerified bool) (domain.User, error)
	Insert(ctx context.Context, u domain.User) error

	// Updates needed by business flows
	UpdatePassword(ctx context.Context, username, hash, salt string, now int64) error
	UpdateVerified(ctx context.Context, username string, v int) error
	UpdateToken(ctx context.Context, username, token string, tokenTime int64) error
	UpdateForgotValidated(ctx context.Context, username string, t int64) error
}

/*
EmailQueue
----------
Durable outbox. One pending message per user; enqueue supersedes.
The email worker drains it asynchronously.
*/
type EmailQueue interface {
	Enqueue(ctx context.Context, username string, content []byte) error
}
