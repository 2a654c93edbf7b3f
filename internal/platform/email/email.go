package email

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"reviewflow/internal/domain/notifications"
	"reviewflow/internal/platform/config"
)

type noopMailer struct{}

func (noopMailer) Send(ctx context.Context, from, to, subject, body string) error {
	return nil
}

// SMTPMailer delivers review notifications through a single SMTP relay.
type SMTPMailer struct {
	Dialer *gomail.Dialer
}

func New(cfg config.Config) notifications.Mailer {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return noopMailer{}
	}
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	// Port 465 expects implicit TLS; other ports upgrade with STARTTLS when offered.
	dialer.SSL = cfg.SMTPPort == 465
	if cfg.SMTPUseTLS {
		dialer.TLSConfig = &tls.Config{ServerName: cfg.SMTPHost, MinVersion: tls.VersionTLS12}
	}
	return &SMTPMailer{Dialer: dialer}
}

func (m *SMTPMailer) Send(ctx context.Context, from, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.Dialer.DialAndSend(newMessage(from, to, subject, body))
}

func newMessage(from, to, subject, body string) *gomail.Message {
	domain := "localhost"
	if i := strings.LastIndex(from, "@"); i >= 0 && i+1 < len(from) {
		domain = from[i+1:]
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", "<"+uuid.NewString()+"@"+domain+">")
	msg.SetBody("text/plain", body)
	return msg
}
