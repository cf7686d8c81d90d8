package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMTPSender sends plain-text mail through an SMTP relay.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
	send func(e *email.Email, addr string, a smtp.Auth) error
}

func NewSMTPSender(host string, port int, user, pass, from string) *SMTPSender {
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, pass, host)
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: auth,
		from: from,
		send: func(e *email.Email, addr string, a smtp.Auth) error { return e.Send(addr, a) },
	}
}

func (s *SMTPSender) SendEmail(_ context.Context, to, subject, body string) error {
	e := email.NewEmail()
	e.From = s.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)
	return s.send(e, s.addr, s.auth)
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends SMS via the Twilio REST API.
type TwilioSender struct {
	api  messageCreator
	from string
}

func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: client.Api, from: from}
}

func (t *TwilioSender) SendSMS(_ context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)
	_, err := t.api.CreateMessage(params)
	return err
}

// LogSender stands in for an unconfigured channel.
type LogSender struct{ Log zerolog.Logger }

func (l LogSender) SendEmail(_ context.Context, to, subject, _ string) error {
	l.Log.Info().Str("to", to).Str("subject", subject).Msg("email (not configured, logged only)")
	return nil
}

func (l LogSender) SendSMS(_ context.Context, to, body string) error {
	l.Log.Info().Str("to", to).Int("len", len(body)).Msg("sms (not configured, logged only)")
	return nil
}
