package email

import (
	"context"

	"github.com/rs/zerolog/log"
)

// FakeSender logs instead of transmitting. Used in development when no SMTP
// relay is reachable, and by tests that only care about delivery bookkeeping.
type FakeSender struct {
	// Fail makes every send report a transport error.
	Fail error

	Sent []SentMail
}

type SentMail struct {
	To   string
	Body []byte
}

func (f *FakeSender) Send(_ context.Context, to string, body []byte) error {
	if f.Fail != nil {
		return f.Fail
	}
	f.Sent = append(f.Sent, SentMail{To: to, Body: body})
	log.Info().Str("to", to).Int("bytes", len(body)).Msg("fake email sender: delivery suppressed")
	return nil
}
