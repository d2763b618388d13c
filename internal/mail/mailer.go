// Package mail defines the outbound email collaborator used by the OTP
// flows. SMTPMailer talks to any SMTP provider; NopMailer discards mail when
// SMTP is not configured.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// sendTimeout bounds a single SMTP exchange so a slow provider never hangs
// the OTP issuance path.
const sendTimeout = 20 * time.Second

// Mailer delivers transactional email.
type Mailer interface {
	// SendSignupOTP mails the 6-digit signup verification code.
	SendSignupOTP(ctx context.Context, to, name, code string) error

	// SendPasswordResetOTP mails the 6-digit password-reset code.
	SendPasswordResetOTP(ctx context.Context, to, code string) error
}

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail via SMTP with PLAIN auth.
type SMTPMailer struct {
	cfg Config
}

// NewSMTPMailer returns an SMTPMailer for cfg.
func NewSMTPMailer(cfg Config) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) SendSignupOTP(ctx context.Context, to, name string, code string) error {
	greeting := "Hello"
	if name != "" {
		greeting = "Hello " + name
	}
	body := fmt.Sprintf(
		"%s,\r\n\r\nYour verification code is: %s\r\n\r\nThe code expires in 10 minutes. If you did not request it, ignore this email.\r\n",
		greeting, code)
	return m.send(ctx, to, "Your verification code", body)
}

func (m *SMTPMailer) SendPasswordResetOTP(ctx context.Context, to, code string) error {
	body := fmt.Sprintf(
		"Hello,\r\n\r\nYour password reset code is: %s\r\n\r\nThe code expires in 10 minutes. If you did not request a reset, ignore this email.\r\n",
		code)
	return m.send(ctx, to, "Reset your password", body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	addr := m.cfg.Host + ":" + m.cfg.Port
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	// smtp.SendMail has no context support; run it under a deadline and
	// abandon the attempt if it overruns.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg))
	}()

	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("sending mail to %s: %w", to, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("sending mail to %s: timed out after %v", to, sendTimeout)
	case <-ctx.Done():
		return fmt.Errorf("sending mail to %s: %w", to, ctx.Err())
	}
}

// NopMailer discards all outbound email. Used when SMTP is not configured.
type NopMailer struct{}

func (NopMailer) SendSignupOTP(context.Context, string, string, string) error { return nil }

func (NopMailer) SendPasswordResetOTP(context.Context, string, string) error { return nil }
