package notification

import "github.com/rs/zerolog/log"

// Mail is one outgoing message.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a single mail. Real deployments plug an SMTP or provider
// implementation in here; delivery itself is an external concern.
type Mailer interface {
	Send(mail Mail) error
}

// LogMailer writes mails to the log instead of delivering them. Used in
// development and as the default when no provider is configured.
type LogMailer struct{}

func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (m *LogMailer) Send(mail Mail) error {
	log.Info().
		Str("component", "mailer").
		Str("to", mail.To).
		Str("subject", mail.Subject).
		Msg("mail delivered to log")
	return nil
}
