package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/sessiongate/sessiongate/internal/application/session"
	"github.com/sessiongate/sessiongate/internal/domain"
	"github.com/sessiongate/sessiongate/internal/infrastructure/security"
	"github.com/sessiongate/sessiongate/internal/logger"
	"github.com/sessiongate/sessiongate/internal/transport/http/response"
)

type sessionCtxKey struct{}

// State is what the session middleware learned about the request. Fresh is
// set when the browser's cookie was missing or dead and a new anonymous
// session was minted on this response.
type State struct {
	Session domain.Session
	Fresh   bool
	// StaleSID is the cookie value that failed lookup, if any.
	StaleSID string
}

func SessionFromContext(ctx context.Context) (State, bool) {
	st, ok := ctx.Value(sessionCtxKey{}).(State)
	return st, ok
}

func withSession(ctx context.Context, st State) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, st)
}

// Gate computes per-request capabilities.
type Gate interface {
	Authorized(ctx context.Context, username string, required domain.AuthLevel) bool
}

type SessionMW struct {
	Sessions *session.Manager
	Auth     Gate
	Now      func() time.Time
}

// Ensure resolves the session cookie, minting an anonymous session when the
// browser has none or presents a dead one. The replacement cookie goes out on
// this response; a stale cookie is deleted first.
func (m *SessionMW) Ensure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := State{}

		sid, ok := security.ReadSessionID(r)
		if ok {
			s, err := m.Sessions.Lookup(r.Context(), sid)
			if err == nil {
				st.Session = s
				next.ServeHTTP(w, r.WithContext(withSession(r.Context(), st)))
				return
			}
			st.StaleSID = sid
		}

		s, err := m.Sessions.NewAnonymous(r.Context())
		if err != nil {
			response.WriteError(w, r, err)
			return
		}
		st.Session = s
		st.Fresh = true

		if st.StaleSID != "" {
			security.ClearSessionCookie(w, st.StaleSID)
		}
		security.SetSessionCookie(w, s.Name, time.Unix(s.Expire, 0), m.now())

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), st)))
	})
}

// Require gates a subtree behind a capability mask. A request whose session
// cookie just expired is bounced back to the same URL so the browser retries
// with the fresh cookie; everyone else short of the mask gets a plain 403.
func (m *SessionMW) Require(required domain.AuthLevel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st, ok := SessionFromContext(r.Context())
			if !ok {
				response.WriteError(w, r, domain.ErrNoSession())
				return
			}

			if st.Fresh && st.StaleSID != "" {
				logger.WithCtx(r.Context()).Info().
					Str("path", r.URL.Path).
					Msg("session expired, redirecting to self with cookie refresh")
				// Ensure already wrote the cookie pair.
				w.Header().Set("Location", r.URL.RequestURI())
				w.Header().Set("Content-Type", "text/html")
				w.Header().Set("Content-Length", "0")
				w.WriteHeader(http.StatusSeeOther)
				return
			}

			if !m.Auth.Authorized(r.Context(), st.Session.Username, required) {
				logger.WithCtx(r.Context()).Warn().
					Str("path", r.URL.Path).
					Str("required", required.String()).
					Msg("access rights fail")
				response.WriteError(w, r, domain.ErrAccessDenied())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *SessionMW) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}
