// Package mailer sends transactional email over SMTP.
package mailer

import (
	"context"
	"fmt"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Message is a plain text email
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP sender when a host is configured, a log-only sender otherwise
func New(cfg config.MailConfig) Sender {
	if cfg.Host == "" {
		return LogSender{}
	}
	return &SMTPSender{cfg: cfg}
}

// SMTPSender dials the relay for every message
type SMTPSender struct {
	cfg config.MailConfig
}

func (s *SMTPSender) options() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// Send builds and delivers one message
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.options()...)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	return nil
}

func (s *SMTPSender) build(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

// LogSender logs messages instead of sending them, for local development
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	logger.Ctx(ctx).Info("Email (not sent, SMTP not configured)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

// SendAsync delivers in the background and logs failures
func SendAsync(ctx context.Context, s Sender, msg Message) {
	if s == nil {
		return
	}
	log := logger.Ctx(ctx)
	go func() {
		if err := s.Send(context.WithoutCancel(ctx), msg); err != nil {
			log.Warn("Failed to send email", zap.String("to", msg.To), zap.Error(err))
		}
	}()
}
