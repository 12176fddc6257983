package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/nkiryanov/contacts/internal/logger"
)

type Sender interface {
	Send(ctx context.Context, email Email) error
}

// Sender for development: nothing leaves the process, the action link is logged
type LogSender struct {
	Logger logger.Logger
}

func (s LogSender) Send(ctx context.Context, email Email) error {
	s.Logger.Info("Email is not sent, logged instead", "to", email.To, "subject", email.Subject, "link", email.Link)
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPSender struct {
	from   string
	client *mail.Client
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("smtp host and from address must be set")
	}

	if cfg.Port == 0 {
		cfg.Port = mail.DefaultPortTLS
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}

	// SSL port is implicit TLS, everything else upgrades with STARTTLS when server supports it
	if cfg.Port == mail.DefaultPortSSL {
		opts = append(opts, mail.WithSSLPort(false))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("error while creating smtp client. Err: %w", err)
	}

	return &SMTPSender{from: cfg.From, client: client}, nil
}

func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	msg, err := s.buildMsg(email)
	if err != nil {
		return err
	}

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("error while sending email. Err: %w", err)
	}
	return nil
}

func (s *SMTPSender) buildMsg(email Email) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid from address %q. Err: %w", s.from, err)
	}
	if err := msg.To(email.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address %q. Err: %w", email.To, err)
	}

	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextHTML, email.HTML)
	msg.AddAlternativeString(mail.TypeTextPlain, email.Subject+": "+email.Link)

	return msg, nil
}
