package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/tunaaoguzhann/schoolgate/logging"
)

type SendGridConfig struct {
	APIKey      string
	FromName    string
	FromAddress string
	// Host overrides the API host, mainly for tests.
	Host    string
	Sandbox bool
	CodeTTL time.Duration
}

type SendGrid struct {
	client *sendgrid.Client
	cfg    SendGridConfig
	now    func() time.Time
}

func NewSendGrid(cfg SendGridConfig) (*SendGrid, error) {
	if cfg.APIKey == "" || cfg.FromAddress == "" {
		return nil, fmt.Errorf("sendgrid api key and from address are required")
	}
	if cfg.FromName == "" {
		cfg.FromName = "School Directory"
	}
	client := sendgrid.NewSendClient(cfg.APIKey)
	if cfg.Host != "" {
		req := sendgrid.GetRequest(cfg.APIKey, "/v3/mail/send", cfg.Host)
		req.Method = "POST"
		client = &sendgrid.Client{Request: req}
	}
	return &SendGrid{client: client, cfg: cfg, now: time.Now}, nil
}

func (s *SendGrid) Send(ctx context.Context, recipient, code string) error {
	msg := verificationMessage(s.cfg.FromName, code, s.cfg.CodeTTL, s.now())
	from := mail.NewEmail(s.cfg.FromName, s.cfg.FromAddress)
	to := mail.NewEmail("", recipient)
	email := mail.NewSingleEmail(from, msg.Subject, to, msg.Plain, msg.HTML)

	if s.cfg.Sandbox {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		email.MailSettings = ms
	}

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		logging.Logger.WithError(err).Errorf("Failed to send verification email to %s via SendGrid", recipient)
		return failure("sendgrid", err)
	}
	if resp.StatusCode >= 300 {
		logging.Logger.WithField("status", resp.StatusCode).Errorf("SendGrid refused verification email to %s", recipient)
		return failure("sendgrid", fmt.Errorf("status %d: %s", resp.StatusCode, resp.Body))
	}
	return nil
}
