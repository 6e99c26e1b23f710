package email

import (
	"bytes"
	"context"
	"io"
	"net/mail"
	"strings"

	gomail "github.com/wneessen/go-mail"

	"github.com/sessiongate/sessiongate/internal/domain"
)

// SMTPSender delivers queued messages over SMTP. Queued bodies are complete
// RFC 822 messages composed at enqueue time; we parse the headers back out
// and hand the pieces to the client rather than trusting raw DATA injection.
type SMTPSender struct {
	host string
	port int
	helo string
	from string

	user     string
	password string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Helo     string
	From     string
	User     string
	Password string
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		helo:     cfg.Helo,
		from:     cfg.From,
		user:     cfg.User,
		password: cfg.Password,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to string, body []byte) error {
	subject, text, err := splitMessage(body)
	if err != nil {
		return domain.ErrEmailTransport(err)
	}

	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return domain.ErrEmailTransport(err)
	}
	if err := m.To(to); err != nil {
		return domain.ErrEmailTransport(err)
	}
	m.Subject(subject)
	m.SetBodyString(gomail.TypeTextPlain, text)

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithHELO(s.helo),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if s.user != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.user),
			gomail.WithPassword(s.password),
		)
	}

	c, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return domain.ErrEmailTransport(err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return domain.ErrEmailTransport(err)
	}
	return nil
}

// splitMessage parses a queued RFC 822 body into subject and text.
func splitMessage(raw []byte) (subject, text string, err error) {
	msg, err := mail.ReadMessage(bytes.NewReader(normalizeCRLF(raw)))
	if err != nil {
		return "", "", err
	}
	b, err := io.ReadAll(msg.Body)
	if err != nil {
		return "", "", err
	}
	return msg.Header.Get("Subject"), string(b), nil
}

// normalizeCRLF makes LF-composed messages parseable by net/mail, which
// tolerates bare LF in practice but not in every position.
func normalizeCRLF(raw []byte) []byte {
	s := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}
