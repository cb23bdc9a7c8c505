package delivery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"gopkg.in/gomail.v2"

	"github.com/tunaaoguzhann/schoolgate/core"
)

func TestAbandonableGivesUp(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := abandonable(ctx, func() error {
		<-release
		return nil
	})
	require.ErrorIs(t, err, core.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAbandonablePassesResult(t *testing.T) {
	boom := errors.New("boom")
	require.ErrorIs(t, abandonable(context.Background(), func() error { return boom }), boom)
	require.NoError(t, abandonable(context.Background(), func() error { return nil }))
}

func TestFailureClassification(t *testing.T) {
	require.NoError(t, failure("x", nil))
	require.ErrorIs(t, failure("x", errors.New("refused")), core.ErrDeliveryFailed)
	require.ErrorIs(t, failure("x", context.DeadlineExceeded), core.ErrTimeout)

	timeout := abandonable(canceledContext(), func() error { return nil })
	err := failure("x", timeout)
	require.ErrorIs(t, err, core.ErrTimeout)
	assert.NotErrorIs(t, err, core.ErrDeliveryFailed)
}

func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

type recordingChannel struct {
	got []string
}

func (r *recordingChannel) Send(_ context.Context, recipient, _ string) error {
	r.got = append(r.got, recipient)
	return nil
}

func TestByAddressRoutes(t *testing.T) {
	email, sms := &recordingChannel{}, &recordingChannel{}
	router := ByAddress{Email: email, SMS: sms}
	ctx := context.Background()

	require.NoError(t, router.Send(ctx, "a@example.org", "123456"))
	require.NoError(t, router.Send(ctx, "+15550001111", "123456"))
	assert.Equal(t, []string{"a@example.org"}, email.got)
	assert.Equal(t, []string{"+15550001111"}, sms.got)

	err := ByAddress{Email: email}.Send(ctx, "+15550001111", "123456")
	require.ErrorIs(t, err, core.ErrDeliveryFailed)
}

func TestVerificationMessage(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	msg := verificationMessage("Schools <Dir>", "042917", 5*time.Minute, now)

	assert.Equal(t, "Schools <Dir> - Verification Code", msg.Subject)
	assert.Contains(t, msg.Plain, "042917")
	assert.Contains(t, msg.Plain, "in 5 minutes")
	assert.Contains(t, msg.HTML, `<div class="code">042917</div>`)
	assert.Contains(t, msg.HTML, "Schools &lt;Dir&gt;")
	assert.Contains(t, msg.HTML, "2024")
	assert.NotContains(t, msg.HTML, "%!")
}

type fakeDialer struct {
	mu   sync.Mutex
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m...)
	return f.err
}

func TestSMTPSend(t *testing.T) {
	s, err := NewSMTP(SMTPConfig{Host: "smtp.example.org", From: "noreply@example.org"})
	require.NoError(t, err)
	dialer := &fakeDialer{}
	s.dialer = dialer

	require.NoError(t, s.Send(context.Background(), "a@example.org", "123456"))
	require.Len(t, dialer.sent, 1)
	assert.Equal(t, []string{"a@example.org"}, dialer.sent[0].GetHeader("To"))

	var body strings.Builder
	_, err = dialer.sent[0].WriteTo(&body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), "123456")

	dialer.err = errors.New("535 auth failed")
	require.ErrorIs(t, s.Send(context.Background(), "a@example.org", "123456"), core.ErrDeliveryFailed)
}

func TestNewSMTPRequiresHost(t *testing.T) {
	_, err := NewSMTP(SMTPConfig{From: "noreply@example.org"})
	require.Error(t, err)
}

type fakeTwilio struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (f *fakeTwilio) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, p)
	return &twilioApi.ApiV2010Message{}, f.err
}

func TestTwilioSend(t *testing.T) {
	tw, err := NewTwilio(TwilioConfig{AccountSID: "AC1", AuthToken: "tok", FromPhone: "+15550000000"})
	require.NoError(t, err)
	api := &fakeTwilio{}
	tw.api = api

	require.NoError(t, tw.Send(context.Background(), "+15551112222", "654321"))
	require.Len(t, api.params, 1)
	assert.Equal(t, "+15551112222", *api.params[0].To)
	assert.Contains(t, *api.params[0].Body, "654321")

	api.err = errors.New("21211 invalid number")
	require.ErrorIs(t, tw.Send(context.Background(), "+1", "654321"), core.ErrDeliveryFailed)
}

func TestSendGridSend(t *testing.T) {
	var gotBody string
	status := http.StatusAccepted
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		w.WriteHeader(status)
	}))
	defer srv.Close()

	sg, err := NewSendGrid(SendGridConfig{
		APIKey:      "key",
		FromAddress: "noreply@example.org",
		Host:        srv.URL,
		Sandbox:     true,
	})
	require.NoError(t, err)

	require.NoError(t, sg.Send(context.Background(), "a@example.org", "123456"))
	assert.Contains(t, gotBody, "a@example.org")
	assert.Contains(t, gotBody, "123456")
	assert.Contains(t, gotBody, `"sandbox_mode":{"enable":true}`)

	status = http.StatusUnauthorized
	require.ErrorIs(t, sg.Send(context.Background(), "a@example.org", "123456"), core.ErrDeliveryFailed)
}
