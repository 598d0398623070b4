// Package mail sends transactional email for the application.
package mail

import (
	"context"
	"fmt"

	"haven/internal/config"
	"haven/internal/middleware"

	gomail "github.com/wneessen/go-mail"
)

// Mailer delivers outbound mail. Implementations must be safe for
// concurrent use.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, username, resetURL string) error
}

// NewMailer returns an SMTP mailer when mail credentials are configured,
// otherwise a logging no-op so development works without an SMTP server.
func NewMailer(cfg *config.Config) (Mailer, error) {
	if cfg.MailHost == "" {
		return &logMailer{}, nil
	}
	return newSMTPMailer(cfg)
}

// SMTPMailer delivers mail through a configured SMTP relay.
type SMTPMailer struct {
	client *gomail.Client
	from   string
}

func newSMTPMailer(cfg *config.Config) (*SMTPMailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.MailPort),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.MailUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.MailUsername),
			gomail.WithPassword(cfg.MailPassword),
		)
	}

	client, err := gomail.NewClient(cfg.MailHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	return &SMTPMailer{client: client, from: cfg.MailFrom}, nil
}

// SendPasswordReset emails a reset link. The link embeds a signed,
// time-limited token; no other action is required to use it.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, username, resetURL string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject("Password Reset Request")
	msg.SetBodyString(gomail.TypeTextPlain, resetBody(username, resetURL))

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

func resetBody(username, resetURL string) string {
	return fmt.Sprintf(`Hello %s,

To reset your password, visit the following link:

%s

The link expires shortly. If you did not request a password reset, you can
safely ignore this email and no changes will be made.
`, username, resetURL)
}

// logMailer logs reset links instead of sending them. Used in development
// when no SMTP host is configured.
type logMailer struct{}

func (m *logMailer) SendPasswordReset(ctx context.Context, to, username, resetURL string) error {
	middleware.Logger.InfoContext(ctx, "password reset email (mail disabled, logging only)",
		"to", to,
		"username", username,
		"reset_url", resetURL,
	)
	return nil
}
