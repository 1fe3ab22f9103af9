package channel

import (
	"context"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioProvider sends SMS from a single Twilio number. Sender IDs are not
// used.
type TwilioProvider struct {
	api  messageCreator
	from string
}

func NewTwilioProvider(accountSID, authToken, from string) *TwilioProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioProvider{api: client.Api, from: from}
}

func (p *TwilioProvider) Name() string { return "twilio" }

func (p *TwilioProvider) Send(ctx context.Context, m Message) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(p.from)
	params.SetTo("+" + m.To)
	params.SetBody(m.Body)

	type result struct {
		resp *twilioApi.ApiV2010Message
		err  error
	}
	// the twilio client takes no context
	done := make(chan result, 1)
	go func() {
		resp, err := p.api.CreateMessage(params)
		done <- result{resp, err}
	}()

	select {
	case <-ctx.Done():
		return "", providerError(p.Name(), "SMS failed: %v", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", providerError(p.Name(), "SMS failed: %v", r.err)
		}
		if r.resp == nil || r.resp.Sid == nil {
			return "", nil
		}
		return *r.resp.Sid, nil
	}
}
