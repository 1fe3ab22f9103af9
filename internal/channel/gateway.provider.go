package channel

import (
	"context"
	"errors"
	"strings"

	gateway "github.com/nimasrn/message-automation/internal/gateways"
)

type smsGateway interface {
	Send(ctx context.Context, req *gateway.SendRequest) (*gateway.SendResponse, error)
}

// GatewayProvider sends SMS through the multi-provider HTTP gateway client.
type GatewayProvider struct {
	client smsGateway
}

func NewGatewayProvider(client smsGateway) *GatewayProvider {
	return &GatewayProvider{client: client}
}

func (p *GatewayProvider) Name() string { return "sms-gateway" }

func (p *GatewayProvider) Send(ctx context.Context, m Message) (string, error) {
	resp, err := p.client.Send(ctx, &gateway.SendRequest{
		MessageID:   m.ID,
		PhoneNumber: m.To,
		Content:     m.Body,
		SenderID:    m.SenderID,
	})
	if err != nil {
		var rejected *gateway.RejectedError
		if errors.As(err, &rejected) {
			return "", &ProviderError{Provider: p.Name(), Message: normalizeSMSError(rejected.Message)}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", providerError(p.Name(), "SMS failed: %v", ctxErr)
		}
		return "", providerError(p.Name(), "SMS failed: %v", err)
	}
	if resp.ProviderMessageID != "" {
		return resp.ProviderMessageID, nil
	}
	return resp.MessageID, nil
}

var smsErrorPhrases = []struct {
	needle string
	phrase string
}{
	{"invalid user name or password", "Invalid SMS gateway credentials"},
	{"invalid api key", "Invalid API key"},
	{"invalid sender", "Invalid sender ID"},
	{"not activated towards", "Sender not activated"},
	{"permission to use api", "No API permission"},
	{"invalid ip address", "IP not whitelisted"},
}

// normalizeSMSError maps well known gateway rejections to short phrases.
func normalizeSMSError(msg string) string {
	lower := strings.ToLower(msg)
	for _, e := range smsErrorPhrases {
		if strings.Contains(lower, e.needle) {
			return e.phrase
		}
	}
	return "SMS failed: " + msg
}
