package delivery

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/tunaaoguzhann/schoolgate/logging"
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	OrgName  string
	CodeTTL  time.Duration
}

// SMTP sends codes through a plain SMTP relay.
type SMTP struct {
	dialer mailSender
	cfg    SMTPConfig
	now    func() time.Time
}

func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp host and from address are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.OrgName == "" {
		cfg.OrgName = "School Directory"
	}
	return &SMTP{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

func (s *SMTP) Send(ctx context.Context, recipient, code string) error {
	msg := verificationMessage(s.cfg.OrgName, code, s.cfg.CodeTTL, s.now())

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Plain)
	m.AddAlternative("text/html", msg.HTML)

	err := abandonable(ctx, func() error { return s.dialer.DialAndSend(m) })
	if err != nil {
		logging.Logger.WithError(err).Errorf("Failed to send verification email to %s via SMTP", recipient)
		return failure("smtp", err)
	}
	return nil
}
