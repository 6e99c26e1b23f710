package handlers

import (
	"net"
	"net/http"
	"time"

	"github.com/sessiongate/sessiongate/internal/application/auth"
	"github.com/sessiongate/sessiongate/internal/application/session"
	"github.com/sessiongate/sessiongate/internal/domain"
	"github.com/sessiongate/sessiongate/internal/logger"
	"github.com/sessiongate/sessiongate/internal/transport/http/middleware"
	"github.com/sessiongate/sessiongate/internal/transport/http/response"
)

// Form field names the subsystem understands. Unknown fields are ignored.
const (
	fieldUsername       = "username"
	fieldPassword       = "password"
	fieldPassword2      = "password2"
	fieldEmail          = "email"
	fieldRegister       = "register"
	fieldGood           = "good"
	fieldBad            = "bad"
	fieldRegGood        = "reg-good"
	fieldRegBad         = "reg-bad"
	fieldAdmin          = "admin"
	fieldForgot         = "forgot"
	fieldForgotGood     = "forgot-good"
	fieldForgotBad      = "forgot-bad"
	fieldForgotPostGood = "forgot-post-good"
	fieldForgotPostBad  = "forgot-post-bad"
	fieldChange         = "change"
	fieldCurPW          = "curpw"
)

// AuthHandler owns the form endpoints. Forms carry their own success and
// failure page targets; the server answers 303 and the browser does the rest.
type AuthHandler struct {
	Auth     *auth.Service
	Sessions *session.Manager
	Now      func() time.Time
}

func (h *AuthHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Login dispatches POST /login. One endpoint serves three forms: plain
// login, registration (register field set) and forgot-password initiation
// (forgot field set), matching what the page templates submit.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		response.WriteError(w, r, domain.ErrInvalidField("body", "bad form encoding"))
		return
	}

	if r.PostFormValue(fieldForgot) != "" {
		h.forgotInit(w, r)
		return
	}

	if r.PostFormValue(fieldUsername) == "" || r.PostFormValue(fieldPassword) == "" {
		response.WriteError(w, r, domain.ErrMissingField("username/password"))
		return
	}

	if r.PostFormValue(fieldRegister) != "" {
		h.register(w, r)
		return
	}

	h.login(w, r)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	res, err := h.Auth.Login(r.Context(), r.PostFormValue(fieldUsername), r.PostFormValue(fieldPassword))
	if err != nil {
		bad := r.PostFormValue(fieldBad)
		if bad == "" {
			response.WriteError(w, r, domain.ErrMissingTarget(fieldBad))
			return
		}
		response.SeeOther(w, response.Redirect{Location: bad})
		return
	}

	// Admin logins prefer the form's dedicated admin landing page.
	target := r.PostFormValue(fieldGood)
	if res.Admin && r.PostFormValue(fieldAdmin) != "" {
		target = r.PostFormValue(fieldAdmin)
	}
	if target == "" {
		response.WriteError(w, r, domain.ErrMissingTarget(fieldGood))
		return
	}

	h.redirectAuthorized(w, r, res.Username, target)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	good, bad := r.PostFormValue(fieldRegGood), r.PostFormValue(fieldRegBad)
	if good == "" || bad == "" {
		response.WriteError(w, r, domain.ErrMissingTarget(fieldRegGood+"/"+fieldRegBad))
		return
	}

	err := h.Auth.Register(r.Context(), auth.RegisterInput{
		Username: r.PostFormValue(fieldUsername),
		Password: r.PostFormValue(fieldPassword),
		Email:    r.PostFormValue(fieldEmail),
		IP:       clientIP(r),
	})

	target := good
	if err != nil {
		target = bad
	}
	// Registration always leaves the browser anonymous; verification, not
	// registration, is what logs the new user in.
	h.redirectAnonymous(w, r, target)
}

func (h *AuthHandler) forgotInit(w http.ResponseWriter, r *http.Request) {
	if r.PostFormValue(fieldUsername) == "" && r.PostFormValue(fieldEmail) == "" {
		response.WriteError(w, r, domain.ErrMissingField("username/email"))
		return
	}
	good, bad := r.PostFormValue(fieldForgotGood), r.PostFormValue(fieldForgotBad)
	if good == "" || bad == "" ||
		r.PostFormValue(fieldForgotPostGood) == "" || r.PostFormValue(fieldForgotPostBad) == "" {
		response.WriteError(w, r, domain.ErrMissingTarget("forgot targets"))
		return
	}

	err := h.Auth.ForgotInit(r.Context(), auth.ForgotInput{
		Username: r.PostFormValue(fieldUsername),
		Email:    r.PostFormValue(fieldEmail),
		PostGood: r.PostFormValue(fieldForgotPostGood),
		PostBad:  r.PostFormValue(fieldForgotPostBad),
		IP:       clientIP(r),
	})

	target := good
	if err != nil {
		target = bad
	}
	h.redirectAnonymous(w, r, target)
}

// Logout strips the identity from the current session. The cookie stays,
// demoted to an anonymous lifetime.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		response.WriteError(w, r, domain.ErrInvalidField("body", "bad form encoding"))
		return
	}
	target := r.PostFormValue(fieldGood)
	if target == "" {
		response.WriteError(w, r, domain.ErrMissingTarget(fieldGood))
		return
	}

	st, ok := middleware.SessionFromContext(r.Context())
	if !ok || st.Session.Username == "" {
		response.WriteError(w, r, domain.ErrNoSession())
		return
	}

	s, err := h.Sessions.Demote(r.Context(), st.Session.Name)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	logger.WithCtx(r.Context()).Info().Str("username", st.Session.Username).Msg("logged out")
	response.SeeOther(w, response.Redirect{Location: target, Session: &s, Now: h.now()})
}

// Change handles POST /change, both the normal credentialed path and the
// post-reset grace path.
func (h *AuthHandler) Change(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		response.WriteError(w, r, domain.ErrInvalidField("body", "bad form encoding"))
		return
	}
	good, bad := r.PostFormValue(fieldGood), r.PostFormValue(fieldBad)

	st, _ := middleware.SessionFromContext(r.Context())

	err := h.Auth.ChangePassword(r.Context(), auth.ChangeInput{
		Username:    r.PostFormValue(fieldUsername),
		CurPassword: r.PostFormValue(fieldCurPW),
		NewPassword: r.PostFormValue(fieldPassword),
		SessionUser: st.Session.Username,
	})
	if err != nil {
		if bad == "" {
			response.WriteError(w, r, domain.ErrMissingTarget(fieldBad))
			return
		}
		response.SeeOther(w, response.Redirect{Location: bad})
		return
	}

	if good == "" {
		response.WriteError(w, r, domain.ErrMissingTarget(fieldGood))
		return
	}

	// A successful change authorizes the session for the (possibly grace
	// flow resolved) account owner.
	username := r.PostFormValue(fieldUsername)
	if username == "" {
		username = st.Session.Username
	}
	h.redirectAuthorized(w, r, username, good)
}

// Confirm handles the GET link from the verification email.
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	username, err := h.Auth.Confirm(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.redirectAnonymous(w, r, h.Auth.ConfirmURL()+"/post-verify-fail.html")
		return
	}

	// Verification doubles as first login.
	h.redirectFreshAuthorized(w, r, username, h.Auth.ConfirmURL()+"/post-verify-ok.html")
}

// Forgot handles the GET link from the reset email. good/bad ride in the
// query, planted there at initiation time.
func (h *AuthHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	username, err := h.Auth.ForgotConsume(r.Context(), q.Get("token"))
	if err != nil {
		bad := q.Get("bad")
		if bad == "" {
			bad = "broken-forget-post-bad-url"
		}
		h.redirectAnonymous(w, r, h.Auth.ConfirmURL()+"/"+bad)
		return
	}

	good := q.Get("good")
	if good == "" {
		good = "broken-forget-post-good-url"
	}
	h.redirectFreshAuthorized(w, r, username, h.Auth.ConfirmURL()+"/"+good)
}

// Check answers the registration page's live uniqueness probe with a single
// byte: "1" taken, "0" free.
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	taken := false
	if email := q.Get("email"); email != "" {
		taken, _ = h.Auth.CheckEmail(r.Context(), email)
	} else if username := q.Get("username"); username != "" {
		taken, _ = h.Auth.CheckUsername(r.Context(), username)
	}

	body := "0"
	if taken {
		body = "1"
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Length", "1")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// redirectAuthorized binds the current session to username, creating one if
// the browser arrived bare, then 303s to target.
func (h *AuthHandler) redirectAuthorized(w http.ResponseWriter, r *http.Request, username, target string) {
	st, ok := middleware.SessionFromContext(r.Context())

	var (
		s   domain.Session
		err error
	)
	if ok {
		s, err = h.Sessions.Authorize(r.Context(), st.Session.Name, username)
	} else {
		s, err = h.Sessions.NewAuthorized(r.Context(), username)
	}
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.SeeOther(w, response.Redirect{Location: target, Session: &s, Now: h.now()})
}

// redirectFreshAuthorized retires whatever session the browser held and
// issues a brand new authorized one. Email links land here; the clicked-in
// browser may carry someone else's cookie.
func (h *AuthHandler) redirectFreshAuthorized(w http.ResponseWriter, r *http.Request, username, target string) {
	rd := response.Redirect{Location: target, Now: h.now()}

	if st, ok := middleware.SessionFromContext(r.Context()); ok && !st.Fresh {
		rd.DeleteSID = st.Session.Name
		_ = h.Sessions.Delete(r.Context(), st.Session.Name)
	}

	s, err := h.Sessions.NewAuthorized(r.Context(), username)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	rd.Session = &s
	response.SeeOther(w, rd)
}

// redirectAnonymous drops any identity the browser held and leaves it with a
// fresh anonymous session.
func (h *AuthHandler) redirectAnonymous(w http.ResponseWriter, r *http.Request, target string) {
	rd := response.Redirect{Location: target, Now: h.now()}

	if st, ok := middleware.SessionFromContext(r.Context()); ok && !st.Fresh {
		rd.DeleteSID = st.Session.Name
		_ = h.Sessions.Delete(r.Context(), st.Session.Name)
	}

	s, err := h.Sessions.NewAnonymous(r.Context())
	if err != nil {
		response.WriteError(w, r, err)
		return
	}
	rd.Session = &s
	response.SeeOther(w, rd)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
