package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessiongate_logins_total",
		Help: "Login attempts by result.",
	}, []string{"result"})

	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessiongate_registrations_total",
		Help: "Registration attempts by result.",
	}, []string{"result"})

	EmailsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiongate_emails_sent_total",
		Help: "Messages successfully handed to the email transport.",
	})

	EmailSendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiongate_email_send_failures_total",
		Help: "Email transport failures; the message stays queued.",
	})

	SessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiongate_sessions_swept_total",
		Help: "Expired or idle sessions removed by the sweep.",
	})

	AccessDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiongate_access_denied_total",
		Help: "Requests rejected by the capability gate.",
	})
)
