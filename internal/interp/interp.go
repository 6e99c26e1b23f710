// Package interp rewrites served HTML on the fly, replacing session
// placeholders and framing the result as HTTP/1.1 chunked transfer coding.
package interp

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/sessiongate/sessiongate/internal/domain"
)

// Placeholders recognized inside page bodies.
var vars = [...]string{
	"$lwsgs_user",
	"$lwsgs_auth",
	"$lwsgs_email",
}

// maxSwallow bounds how many bytes a candidate placeholder can hold before
// it is given up on and emitted literally.
const maxSwallow = 16

// trailerReserve is the room a chunk must leave for its framing tail:
// CRLF plus the worst case final "0\r\n\r\n".
const trailerReserve = 7

// Interpolator streams one document for one session. Placeholder matching
// carries across chunk boundaries, so one instance must see every chunk of
// the document in order.
type Interpolator struct {
	user  string
	auth  domain.AuthLevel
	email string

	// partial placeholder held back from a previous chunk
	swallow []byte
}

func New(user string, auth domain.AuthLevel, email string) *Interpolator {
	return &Interpolator{
		user:    user,
		auth:    auth,
		email:   email,
		swallow: make([]byte, 0, maxSwallow),
	}
}

func (ip *Interpolator) value(hit int) string {
	switch hit {
	case 0:
		return ip.user
	case 1:
		return fmt.Sprintf("%d", ip.auth)
	case 2:
		return ip.email
	}
	return ""
}

// Expand substitutes placeholders in chunk and returns the result framed as
// one HTTP/1.1 chunk (hex length, CRLF, payload, CRLF; final additionally
// carries the terminating zero chunk). maxLen bounds the expanded payload;
// when substitution grows the text past maxLen less the framing reserve,
// Expand fails rather than truncating.
func (ip *Interpolator) Expand(chunk []byte, final bool, maxLen int) ([]byte, error) {
	out := make([]byte, 0, len(chunk)+64)

	for _, c := range chunk {
		if len(ip.swallow) == 0 && c != '$' {
			out = append(out, c)
			continue
		}

		ip.swallow = append(ip.swallow, c)
		if len(ip.swallow) == maxSwallow {
			out = ip.giveUp(out)
			continue
		}

		hits, hit := ip.matches()
		if hits == 0 {
			out = ip.giveUp(out)
			continue
		}
		if hits == 1 && len(ip.swallow) == len(vars[hit]) {
			out = append(out, ip.value(hit)...)
			ip.swallow = ip.swallow[:0]
		}
	}

	if final && len(ip.swallow) > 0 {
		// Document ended mid-candidate; emit it literally.
		out = append(out, ip.swallow...)
		ip.swallow = ip.swallow[:0]
	}

	if len(out)+trailerReserve >= maxLen {
		return nil, domain.ErrInternal(fmt.Errorf("interpolated chunk exceeds %d bytes", maxLen))
	}

	// An empty payload must not be framed: "0\r\n\r\n" is the chunked-coding
	// terminator, so a fully swallowed chunk would end the body early.
	if len(out) == 0 {
		if !final {
			return nil, nil
		}
		return []byte("0\r\n\r\n"), nil
	}

	framed := make([]byte, 0, len(out)+16)
	framed = append(framed, fmt.Sprintf("%X\r\n", len(out))...)
	framed = append(framed, out...)
	framed = append(framed, '\r', '\n')
	if final {
		framed = append(framed, '0', '\r', '\n', '\r', '\n')
	}
	return framed, nil
}

// Unframe strips the framing Expand added, recovering the bare payload.
// Used by callers whose transport does its own chunking.
func Unframe(framed []byte) []byte {
	i := bytes.Index(framed, []byte("\r\n"))
	if i < 0 {
		return nil
	}
	n, err := strconv.ParseInt(string(framed[:i]), 16, 32)
	if err != nil || int(n) > len(framed)-i-2 {
		return nil
	}
	return framed[i+2 : i+2+int(n)]
}

// giveUp abandons the current candidate: its first byte goes out literally
// and the remainder is rescanned, since "$$lwsgs_user" must still hit.
func (ip *Interpolator) giveUp(out []byte) []byte {
	out = append(out, ip.swallow[0])
	rest := append([]byte(nil), ip.swallow[1:]...)
	ip.swallow = ip.swallow[:0]
	for _, c := range rest {
		if len(ip.swallow) == 0 && c != '$' {
			out = append(out, c)
			continue
		}
		ip.swallow = append(ip.swallow, c)
		if hits, hit := ip.matches(); hits == 0 {
			out = ip.giveUp(out)
		} else if hits == 1 && len(ip.swallow) == len(vars[hit]) {
			out = append(out, ip.value(hit)...)
			ip.swallow = ip.swallow[:0]
		}
	}
	return out
}

// matches counts placeholders the swallowed prefix could still become.
func (ip *Interpolator) matches() (hits, hit int) {
	for n, v := range vars {
		if len(ip.swallow) <= len(v) && string(ip.swallow) == v[:len(ip.swallow)] {
			hits++
			hit = n
		}
	}
	return hits, hit
}
