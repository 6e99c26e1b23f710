package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sessiongate/sessiongate/internal/domain"
	"github.com/sessiongate/sessiongate/internal/interp"
	"github.com/sessiongate/sessiongate/internal/logger"
	"github.com/sessiongate/sessiongate/internal/transport/http/middleware"
)

// pageChunk is how much of a document is read and rewritten at a time.
const pageChunk = 4096

// pageBudget bounds one rewritten chunk. Substitution can grow the text, a
// username or email for a 12 byte placeholder, so the budget is double the
// read size.
const pageBudget = 2 * pageChunk

// SessionInfo supplies the per-session values pages interpolate.
type SessionInfo interface {
	AuthLevel(ctx context.Context, username string) domain.AuthLevel
	Email(ctx context.Context, username string) string
}

// PagesHandler serves the HTML under Root, rewriting session placeholders on
// the way out. HTML goes over the wire chunked since the rewritten length is
// unknown up front; everything else is handed to the stdlib file server.
type PagesHandler struct {
	Root string
	Info SessionInfo
}

func (h *PagesHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	if name == "/" {
		name = "/index.html"
	}
	full := filepath.Join(h.Root, filepath.FromSlash(name))

	if !strings.HasSuffix(name, ".html") {
		http.ServeFile(w, r, full)
		return
	}

	f, err := os.Open(full)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	var user, email string
	var level domain.AuthLevel
	if st, ok := middleware.SessionFromContext(r.Context()); ok {
		user = st.Session.Username
		level = h.Info.AuthLevel(r.Context(), user)
		email = h.Info.Email(r.Context(), user)
	}
	ip := interp.New(user, level, email)

	hj, ok := w.(http.Hijacker)
	if !ok {
		// No raw access to the connection (HTTP/2, test recorders); let
		// net/http do its own framing around the substituted stream.
		h.servePlain(w, f, ip)
		return
	}

	conn, bufrw, err := hj.Hijack()
	if err != nil {
		logger.WithCtx(r.Context()).Error().Err(err).Msg("hijack failed")
		return
	}
	defer conn.Close()

	fmt.Fprintf(bufrw, "HTTP/1.1 200 OK\r\n")
	hdr := w.Header()
	hdr.Set("Content-Type", "text/html")
	hdr.Set("Transfer-Encoding", "chunked")
	hdr.Set("Connection", "close")
	_ = hdr.Write(bufrw)
	fmt.Fprintf(bufrw, "\r\n")

	buf := make([]byte, pageChunk)
	for {
		n, rerr := f.Read(buf)
		final := rerr == io.EOF
		if n > 0 || final {
			framed, err := ip.Expand(buf[:n], final, pageBudget)
			if err != nil {
				logger.WithCtx(r.Context()).Error().Err(err).Str("page", name).Msg("interpolation overflow")
				return
			}
			if _, err := bufrw.Write(framed); err != nil {
				return
			}
		}
		if rerr != nil {
			break
		}
	}
	_ = bufrw.Flush()
}

// servePlain substitutes without manual chunk framing.
func (h *PagesHandler) servePlain(w http.ResponseWriter, f *os.File, ip *interp.Interpolator) {
	w.Header().Set("Content-Type", "text/html")

	buf := make([]byte, pageChunk)
	for {
		n, rerr := f.Read(buf)
		final := rerr == io.EOF
		if n > 0 || final {
			framed, err := ip.Expand(buf[:n], final, pageBudget)
			if err != nil {
				return
			}
			if _, err := w.Write(interp.Unframe(framed)); err != nil {
				return
			}
		}
		if rerr != nil {
			return
		}
	}
}
