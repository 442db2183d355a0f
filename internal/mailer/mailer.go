package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"sync"

	"bugtracker-service/internal/config"
)

// Mailer sends outbound notification email. Delivery happens inline with the
// triggering request; a transport failure propagates to the caller.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type smtpMailer struct {
	cfg config.SMTPConfig
}

func NewSMTP(cfg config.SMTPConfig) Mailer {
	return &smtpMailer{cfg: cfg}
}

func (m *smtpMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n",
		m.cfg.From, to, subject, body,
	)

	addr := m.cfg.Host + ":" + m.cfg.Port
	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

type noopMailer struct {
	logger *slog.Logger
}

// NewNoop returns a mailer that only logs. Used when SMTP is not configured.
func NewNoop(logger *slog.Logger) Mailer {
	return &noopMailer{logger: logger}
}

func (m *noopMailer) Send(ctx context.Context, to, subject, body string) error {
	m.logger.Info("email suppressed (smtp disabled)", "to", to, "subject", subject)
	return nil
}

// Sent is one recorded message.
type Sent struct {
	To      string
	Subject string
	Body    string
}

// Recorder is an in-memory Mailer for tests.
type Recorder struct {
	mu       sync.Mutex
	Messages []Sent
	Err      error // returned from Send when set
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(ctx context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Messages = append(r.Messages, Sent{To: to, Subject: subject, Body: body})
	return nil
}

func (r *Recorder) SentTo(to string) []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sent
	for _, m := range r.Messages {
		if m.To == to {
			out = append(out, m)
		}
	}
	return out
}
