package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type SMTP struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	log  *zerolog.Logger
}

func New(cfg Config, log *zerolog.Logger) *SMTP {
	return &SMTP{cfg: cfg, send: smtp.SendMail, log: log}
}

// Enabled is false when no SMTP host is configured; sends are then skipped.
func (m *SMTP) Enabled() bool {
	return m.cfg.Host != ""
}

// SendConfirmation tells a volunteer their slot is confirmed.
func (m *SMTP) SendConfirmation(name, recipient, when, where string) error {
	if !m.Enabled() {
		m.log.Debug().Str("email", recipient).Msg("smtp disabled, confirmation not sent")
		return nil
	}
	if recipient == "" {
		return fmt.Errorf("send confirmation: volunteer %q has no email", name)
	}

	subject := "You're confirmed for " + when
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\r\n\r\n", name)
	fmt.Fprintf(&body, "Thanks for volunteering! Your slot on %s is confirmed.\r\n", when)
	if where != "" {
		fmt.Fprintf(&body, "Pickup location: %s\r\n", where)
	}
	body.WriteString("\r\nIf your plans change, please let us know.\r\n")

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.cfg.From, recipient, subject, body.String(),
	)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := m.cfg.Host + ":" + m.cfg.Port
	if err := m.send(addr, auth, m.cfg.From, []string{recipient}, []byte(msg)); err != nil {
		m.log.Warn().Err(err).Str("email", recipient).Msg("failed to send confirmation email")
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Str("email", recipient).Msg("confirmation email sent")
	return nil
}
