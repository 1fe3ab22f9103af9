package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/pkg/logger"
	"github.com/nimasrn/message-automation/pkg/prom"
	"golang.org/x/time/rate"
)

type SendResult struct {
	ProviderMessageID string
}

// Sender is the contract the job processor sends through.
type Sender interface {
	Send(ctx context.Context, tenantID, to, message string) (*SendResult, error)
}

type Options struct {
	CountryCode    string
	Timeout        time.Duration
	RatePerSecond  float64
	RateBurst      int
	DefaultSender  string
	WhatsAppToken  string
	WhatsAppNumber string
}

// Adapter sends one channel's messages for any tenant. It gates on the
// tenant's subscription and quota, and gives the quota back when the
// provider fails.
type Adapter struct {
	channel  model.Channel
	tenants  TenantStore
	gate     *QuotaGate
	provider Provider
	opts     Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewAdapter(ch model.Channel, tenants TenantStore, gate *QuotaGate, provider Provider, opts Options) *Adapter {
	return &Adapter{
		channel:  ch,
		tenants:  tenants,
		gate:     gate,
		provider: provider,
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (a *Adapter) Channel() model.Channel { return a.channel }

func (a *Adapter) Send(ctx context.Context, tenantID, to, message string) (*SendResult, error) {
	tenant, err := a.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant.Status != model.TenantActive {
		return nil, ErrTenantInactive
	}

	msg, err := a.resolve(tenant)
	if err != nil {
		return nil, err
	}
	msg.ID = uuid.NewString()
	msg.Body = message
	msg.To = NormalizePhone(to, a.opts.CountryCode)
	if msg.To == "" {
		return nil, fmt.Errorf("%w: recipient phone is empty", ErrChannelNotConfigured)
	}

	if err := a.gate.CheckAndReserve(ctx, tenantID, a.channel); err != nil {
		return nil, err
	}

	id, err := a.deliver(ctx, tenantID, msg)
	if err != nil {
		a.gate.Release(context.WithoutCancel(ctx), tenantID, a.channel)
		return nil, err
	}

	logger.Info("message sent", "tenant_id", tenantID, "channel", a.channel, "to", msg.To, "provider", a.provider.Name(), "provider_message_id", id)
	return &SendResult{ProviderMessageID: id}, nil
}

// resolve fills in tenant credentials, falling back to process defaults.
func (a *Adapter) resolve(t *model.Tenant) (Message, error) {
	var m Message
	switch a.channel {
	case model.ChannelSMS:
		m.SenderID = t.SMSSenderID
		if m.SenderID == "" {
			m.SenderID = a.opts.DefaultSender
		}
	case model.ChannelWhatsApp:
		if !t.WhatsAppEnabled {
			return m, fmt.Errorf("%w: WhatsApp not enabled for this tenant", ErrChannelNotConfigured)
		}
		m.WhatsAppAccessToken = t.WhatsAppAccessToken
		m.WhatsAppPhoneNumberID = t.WhatsAppPhoneNumberID
		if m.WhatsAppAccessToken == "" {
			m.WhatsAppAccessToken = a.opts.WhatsAppToken
		}
		if m.WhatsAppPhoneNumberID == "" {
			m.WhatsAppPhoneNumberID = a.opts.WhatsAppNumber
		}
		if m.WhatsAppAccessToken == "" || m.WhatsAppPhoneNumberID == "" {
			return m, fmt.Errorf("%w: WhatsApp credentials missing", ErrChannelNotConfigured)
		}
	default:
		return m, fmt.Errorf("%w: unknown channel %q", ErrChannelNotConfigured, a.channel)
	}
	return m, nil
}

func (a *Adapter) deliver(ctx context.Context, tenantID string, m Message) (string, error) {
	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	if err := a.limiter(tenantID).Wait(ctx); err != nil {
		return "", providerError(a.provider.Name(), "rate limit wait aborted: %v", err)
	}

	start := time.Now()
	id, err := a.provider.Send(ctx, m)
	prom.ProviderLatency(string(a.channel), time.Since(start).Seconds())
	if err == nil {
		return id, nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return "", pe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "", providerError(a.provider.Name(), "%s provider timed out", channelLabel(a.channel))
	}
	return "", providerError(a.provider.Name(), "%s failed: %v", channelLabel(a.channel), err)
}

func (a *Adapter) limiter(tenantID string) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.limiters[tenantID]
	if !ok {
		limit := rate.Inf
		if a.opts.RatePerSecond > 0 {
			limit = rate.Limit(a.opts.RatePerSecond)
		}
		burst := a.opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		l = rate.NewLimiter(limit, burst)
		a.limiters[tenantID] = l
	}
	return l
}
