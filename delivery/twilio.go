package delivery

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/tunaaoguzhann/schoolgate/logging"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromPhone  string
	OrgName    string
}

// Twilio sends codes as SMS.
type Twilio struct {
	api messageCreator
	cfg TwilioConfig
}

func NewTwilio(cfg TwilioConfig) (*Twilio, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromPhone == "" {
		return nil, fmt.Errorf("twilio account sid, auth token and from phone are required")
	}
	if cfg.OrgName == "" {
		cfg.OrgName = "School Directory"
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Twilio{api: client.Api, cfg: cfg}, nil
}

func (t *Twilio) Send(ctx context.Context, recipient, code string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(t.cfg.FromPhone)
	params.SetBody(smsBody(t.cfg.OrgName, code))

	err := abandonable(ctx, func() error {
		_, err := t.api.CreateMessage(params)
		return err
	})
	if err != nil {
		logging.Logger.WithError(err).Errorf("Failed to send verification SMS to %s via Twilio", recipient)
		return failure("twilio", err)
	}
	return nil
}
