package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gomail "gopkg.in/mail.v2"
)

// EmailConfig holds SMTP configuration for sending emails.
type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
	ToEmail    string
}

func (c EmailConfig) validate() error {
	if c.SMTPServer == "" || c.SMTPPort == 0 {
		return errors.New("smtp server and port are required")
	}
	if c.FromEmail == "" || c.ToEmail == "" {
		return errors.New("smtp from and to addresses are required")
	}
	return nil
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers messages via SMTP.
type EmailSender struct {
	cfg      EmailConfig
	renderer *HTMLEmailRenderer
	dialer   dialer
	log      zerolog.Logger
}

// NewEmailSender creates a sender with the given SMTP configuration.
func NewEmailSender(cfg EmailConfig, log zerolog.Logger) (*EmailSender, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	d := gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	d.Timeout = 10 * time.Second
	return &EmailSender{
		cfg:      cfg,
		renderer: NewHTMLEmailRenderer(),
		dialer:   d,
		log:      log,
	}, nil
}

// Send delivers an email with HTML body and plain text fallback.
func (s *EmailSender) Send(ctx context.Context, b Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.renderer.Render(b)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", s.cfg.ToEmail)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s (subject: %s): %w", s.cfg.ToEmail, msg.Subject, err)
	}
	s.log.Debug().Str("subject", msg.Subject).Msg("email sent")
	return nil
}
