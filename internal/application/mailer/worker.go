package mailer

import (
	"context"
	"time"

	"github.com/sessiongate/sessiongate/internal/domain"
	"github.com/sessiongate/sessiongate/internal/logger"
	"github.com/sessiongate/sessiongate/internal/metrics"
)

/*
Ports
-----
The worker only needs the drain side of the outbox, enough of the user
store to garbage-collect and address mail, and a transport.
*/

type Queue interface {
	PeekOne(ctx context.Context) (string, error)
	Body(ctx context.Context, username string) ([]byte, error)
	Delete(ctx context.Context, username string) error
}

type Users interface {
	Get(ctx context.Context, username string) (domain.User, error)
	MarkMailed(ctx context.Context, username string) error
	DeleteStaleUnverified(ctx context.Context, cutoff int64) error
	ExpireTokens(ctx context.Context, cutoff int64) error
}

// Sender transmits one composed message.
type Sender interface {
	Send(ctx context.Context, to string, body []byte) error
}

// retryEvery bounds how long a transient SMTP failure can stall the queue.
const retryEvery = time.Minute

// Worker drains the email outbox in the background. Enqueue sites call
// Check to wake it; a periodic tick retries after transport failures.
type Worker struct {
	queue  Queue
	users  Users
	sender Sender

	// EmailExpire is how long an issued verify/reset token stays live;
	// unverified accounts older than this are garbage collected.
	emailExpire time.Duration

	wake chan struct{}
	now  func() time.Time
}

func NewWorker(queue Queue, users Users, sender Sender, emailExpire time.Duration) *Worker {
	return &Worker{
		queue:       queue,
		users:       users,
		sender:      sender,
		emailExpire: emailExpire,
		wake:        make(chan struct{}, 1),
		now:         time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}

// Check wakes the worker. Safe from any goroutine, never blocks, and
// coalesces concurrent calls into a single drain.
func (w *Worker) Check() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run drains until ctx is cancelled. Start it once from bootstrap.
func (w *Worker) Run(ctx context.Context) {
	t := time.NewTicker(retryEvery)
	defer t.Stop()

	// Pick up anything left over from a previous run.
	w.Drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
			w.Drain(ctx)
		case <-t.C:
			w.Drain(ctx)
		}
	}
}

// Drain sends queued messages until the queue is empty or a send fails.
// A failed message stays queued for the next pass.
func (w *Worker) Drain(ctx context.Context) {
	cutoff := w.now().Add(-w.emailExpire).Unix()
	if err := w.users.DeleteStaleUnverified(ctx, cutoff); err != nil {
		logger.WithCtx(ctx).Error().Err(err).Msg("stale account gc failed")
	}
	if err := w.users.ExpireTokens(ctx, cutoff); err != nil {
		logger.WithCtx(ctx).Error().Err(err).Msg("token expiry failed")
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if !w.sendOne(ctx) {
			return
		}
	}
}

// sendOne handles the next queued message. Returns false when the queue is
// empty or the transport failed, true to keep draining.
func (w *Worker) sendOne(ctx context.Context) bool {
	username, err := w.queue.PeekOne(ctx)
	if err != nil {
		if !domain.Is(err, "nothing_queued") {
			logger.WithCtx(ctx).Error().Err(err).Msg("email queue peek failed")
		}
		return false
	}

	u, err := w.users.Get(ctx, username)
	if err != nil {
		// Owner vanished (gc raced the queue). Drop the orphaned message.
		logger.WithCtx(ctx).Warn().Str("username", username).Msg("dropping orphaned queued email")
		if err := w.queue.Delete(ctx, username); err != nil {
			logger.WithCtx(ctx).Error().Err(err).Msg("email queue delete failed")
			return false
		}
		return true
	}

	body, err := w.queue.Body(ctx, username)
	if err != nil {
		logger.WithCtx(ctx).Error().Err(err).Str("username", username).Msg("email body fetch failed")
		return false
	}

	if err := w.sender.Send(ctx, u.Email, body); err != nil {
		metrics.EmailSendFailures.Inc()
		logger.WithCtx(ctx).Error().Err(err).
			Str("username", username).
			Msg("email send failed, will retry")
		return false
	}
	metrics.EmailsSent.Inc()

	// Freshly registered users advance to "verification email dispatched".
	if err := w.users.MarkMailed(ctx, username); err != nil {
		logger.WithCtx(ctx).Error().Err(err).Str("username", username).Msg("mark mailed failed")
	}
	if err := w.queue.Delete(ctx, username); err != nil {
		logger.WithCtx(ctx).Error().Err(err).Str("username", username).Msg("email queue delete failed")
		return false
	}

	logger.WithCtx(ctx).Info().Str("username", username).Msg("email sent")
	return true
}
