package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sessiongate/sessiongate/internal/domain"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
}

type AuthHandler interface {
	// Form posts
	Login(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Change(w http.ResponseWriter, r *http.Request)

	// Email link clicks
	Confirm(w http.ResponseWriter, r *http.Request)
	Forgot(w http.ResponseWriter, r *http.Request)

	// Registration page probe
	Check(w http.ResponseWriter, r *http.Request)
}

type PagesHandler interface {
	Serve(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Health HealthHandler
	Auth   AuthHandler
	Pages  PagesHandler

	RequestID func(http.Handler) http.Handler
	Session   func(http.Handler) http.Handler
	Require   func(domain.AuthLevel) func(http.Handler) http.Handler
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("nil Auth handler")
	}
	if deps.RequestID == nil {
		return nil, fmt.Errorf("nil RequestID middleware")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("nil Session middleware")
	}
	if deps.Require == nil {
		return nil, fmt.Errorf("nil Require middleware")
	}

	r := chi.NewRouter()
	r.Use(deps.RequestID)

	r.Get("/healthz", deps.Health.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(deps.Session)

		r.Post("/login", deps.Auth.Login)
		r.Post("/logout", deps.Auth.Logout)
		r.Post("/change", deps.Auth.Change)

		r.Get("/confirm", deps.Auth.Confirm)
		r.Get("/forgot", deps.Auth.Forgot)
		r.Get("/check", deps.Auth.Check)

		if deps.Pages != nil {
			// Members-only pages sit under /members, admin under /admin;
			// everything else only needs a session for interpolation.
			r.Route("/members", func(r chi.Router) {
				r.Use(deps.Require(domain.AuthLoggedIn | domain.AuthVerified))
				r.Get("/*", deps.Pages.Serve)
			})
			r.Route("/admin", func(r chi.Router) {
				r.Use(deps.Require(domain.AuthLoggedIn | domain.AuthAdmin))
				r.Get("/*", deps.Pages.Serve)
			})
			r.Get("/*", deps.Pages.Serve)
		}
	})

	return r, nil
}
