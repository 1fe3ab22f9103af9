package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nimasrn/message-automation/pkg/logger"
	"github.com/valyala/fasthttp"
)

// WhatsAppProvider sends text messages through the WhatsApp Cloud API.
type WhatsAppProvider struct {
	baseURL string
	client  *fasthttp.Client
	timeout time.Duration
}

func NewWhatsAppProvider(baseURL string, timeout time.Duration) *WhatsAppProvider {
	return &WhatsAppProvider{
		baseURL: baseURL,
		timeout: timeout,
		client: &fasthttp.Client{
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}
}

func (p *WhatsAppProvider) Name() string { return "whatsapp-cloud" }

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (p *WhatsAppProvider) Send(ctx context.Context, m Message) (string, error) {
	body, err := json.Marshal(whatsAppRequest{
		MessagingProduct: "whatsapp",
		To:               m.To,
		Type:             "text",
		Text:             whatsAppText{Body: m.Body},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal whatsapp request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/%s/messages", p.baseURL, m.WhatsAppPhoneNumberID))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+m.WhatsAppAccessToken)
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(p.timeout)
	}
	if err := p.client.DoDeadline(req, resp, deadline); err != nil {
		return "", providerError(p.Name(), "WhatsApp API error: %v", err)
	}

	var out whatsAppResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		logger.Warn("failed to decode whatsapp response", "status", resp.StatusCode(), "error", err)
	}

	if resp.StatusCode() >= fasthttp.StatusBadRequest || out.Error != nil {
		if out.Error != nil && out.Error.Message != "" {
			return "", &ProviderError{Provider: p.Name(), Message: out.Error.Message}
		}
		return "", providerError(p.Name(), "WhatsApp API error: status %d", resp.StatusCode())
	}
	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return "", providerError(p.Name(), "WhatsApp API returned no message id")
	}
	return out.Messages[0].ID, nil
}
