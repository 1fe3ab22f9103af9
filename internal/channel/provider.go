package channel

import "context"

// Message is one outbound send as a provider sees it. The phone is already
// normalized and tenant credentials are resolved.
type Message struct {
	ID       string
	To       string
	Body     string
	SenderID string

	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
}

// Provider talks to one upstream messaging API. Failures come back as
// *ProviderError.
type Provider interface {
	Name() string
	Send(ctx context.Context, m Message) (providerMessageID string, err error)
}
