package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/message-automation/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrNoAvailableProviders = errors.New("no available sms providers")
)

type SendStatus string

const (
	StatusSent   SendStatus = "SENT"
	StatusFailed SendStatus = "FAILED"
)

const sendPath = "/api/v1/sms/send"

type SendRequest struct {
	MessageID   string `json:"message_id"`
	PhoneNumber string `json:"phone_number"`
	Content     string `json:"content"`
	SenderID    string `json:"sender_id,omitempty"`
}

type SendResponse struct {
	MessageID         string     `json:"message_id"`
	Status            SendStatus `json:"status"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	ErrorCode         string     `json:"error_code,omitempty"`
	ErrorMsg          string     `json:"error_message,omitempty"`
}

// RejectedError means a provider answered and refused the message. Other
// providers are not tried since they share the tenant's credentials.
type RejectedError struct {
	Provider string
	Code     string
	Message  string
}

func (e *RejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s rejected message: %s (%s)", e.Provider, e.Message, e.Code)
	}
	return fmt.Sprintf("%s rejected message: %s", e.Provider, e.Message)
}

type ProviderMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	ConsecutiveFails atomic.Int32
	LastErrorTime    atomic.Int64
	LastSuccessTime  atomic.Int64

	mu             sync.RWMutex
	latencyHistory []int64
	maxHistorySize int
}

func NewProviderMetrics() *ProviderMetrics {
	return &ProviderMetrics{
		latencyHistory: make([]int64, 0, 100),
		maxHistorySize: 100,
	}
}

func (m *ProviderMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())

	m.mu.Lock()
	if len(m.latencyHistory) >= m.maxHistorySize {
		m.latencyHistory = m.latencyHistory[1:]
	}
	m.latencyHistory = append(m.latencyHistory, latencyMs)
	m.mu.Unlock()
}

func (m *ProviderMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
	m.LastErrorTime.Store(time.Now().Unix())
}

func (m *ProviderMetrics) AvgLatencyMs() int64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

func (m *ProviderMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

func (m *ProviderMetrics) P95LatencyMs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencyHistory) == 0 {
		return 0
	}

	sorted := make([]int64, len(m.latencyHistory))
	copy(sorted, m.latencyHistory)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)) * 0.95)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type ProviderState int

const (
	StateHealthy ProviderState = iota
	StateDegraded
	StateUnhealthy
	StateCircuitOpen
)

func (s ProviderState) String() string {
	switch s {
	case StateHealthy:
		return "HEALTHY"
	case StateDegraded:
		return "DEGRADED"
	case StateUnhealthy:
		return "UNHEALTHY"
	case StateCircuitOpen:
		return "CIRCUIT_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Provider is one SMS gateway endpoint.
type Provider struct {
	name             string
	url              string
	client           *fasthttp.Client
	metrics          *ProviderMetrics
	state            atomic.Int32
	weight           atomic.Int32
	circuitOpenUntil atomic.Int64
}

func NewProvider(name, url string, weight int, client *fasthttp.Client) *Provider {
	p := &Provider{
		name:    name,
		url:     url,
		client:  client,
		metrics: NewProviderMetrics(),
	}
	p.state.Store(int32(StateHealthy))
	p.weight.Store(int32(weight))
	return p
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) GetState() ProviderState {
	return ProviderState(p.state.Load())
}

func (p *Provider) SetState(state ProviderState) {
	p.state.Store(int32(state))
}

// IsAvailable reports whether the provider may take traffic. An open
// circuit half-opens into Degraded once its timeout has passed.
func (p *Provider) IsAvailable() bool {
	state := p.GetState()
	if state == StateCircuitOpen {
		if time.Now().Unix() > p.circuitOpenUntil.Load() {
			p.SetState(StateDegraded)
			return true
		}
		return false
	}
	return state != StateUnhealthy
}

// Score ranks providers; higher is better and zero means unavailable.
func (p *Provider) Score() float64 {
	if !p.IsAvailable() {
		return 0
	}

	successScore := p.metrics.SuccessRate() * 100

	latencyScore := 100.0
	if avg := p.metrics.AvgLatencyMs(); avg > 0 {
		// 0ms scores 100, 5s or more scores 0
		latencyScore = 100.0 * (1.0 - float64(avg)/5000.0)
		if latencyScore < 0 {
			latencyScore = 0
		}
	}

	recent := 1.0 - float64(p.metrics.ConsecutiveFails.Load())*0.1
	if recent < 0.1 {
		recent = 0.1
	}

	statePenalty := 1.0
	if p.GetState() == StateDegraded {
		statePenalty = 0.5
	}

	return (successScore*0.4 + latencyScore*0.4 + float64(p.weight.Load())*0.2) * recent * statePenalty
}

type Config struct {
	Providers               []ProviderConfig
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	HealthCheckInterval     time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

type ProviderConfig struct {
	Name   string
	URL    string
	Weight int // 1-100
}

// ProviderConfigs builds the ordered primary/secondary/backup list, skipping
// empty URLs.
func ProviderConfigs(primary, secondary, backup string) []ProviderConfig {
	candidates := []ProviderConfig{
		{Name: "primary", URL: primary, Weight: 100},
		{Name: "secondary", URL: secondary, Weight: 80},
		{Name: "backup", URL: backup, Weight: 60},
	}
	out := make([]ProviderConfig, 0, len(candidates))
	for _, c := range candidates {
		if c.URL != "" {
			out = append(out, c)
		}
	}
	return out
}

// Client sends SMS through the best scoring gateway and fails over to the
// next one on transport errors.
type Client struct {
	config    *Config
	providers []*Provider
	mu        sync.RWMutex
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if len(config.Providers) == 0 {
		return nil, errors.New("at least one provider is required")
	}

	c := &Client{
		config:    config,
		providers: make([]*Provider, 0, len(config.Providers)),
		stopCh:    make(chan struct{}),
	}

	for _, pc := range config.Providers {
		httpClient := &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		}
		c.providers = append(c.providers, NewProvider(pc.Name, pc.URL, pc.Weight, httpClient))
		logger.Info("sms provider initialized", "name", pc.Name, "url", pc.URL, "weight", pc.Weight)
	}

	if config.HealthCheckInterval > 0 {
		c.wg.Add(1)
		go c.healthChecker()
	}

	return c, nil
}

func (c *Client) SelectBestProvider() (*Provider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		best      *Provider
		bestScore float64
	)
	for _, p := range c.providers {
		if !p.IsAvailable() {
			continue
		}
		if score := p.Score(); score > bestScore {
			bestScore = score
			best = p
		}
	}
	if best == nil {
		return nil, ErrNoAvailableProviders
	}
	return best, nil
}

// Send delivers one message. A *RejectedError is returned as soon as a
// provider refuses the message; transport failures move on to the next
// provider until MaxRetries is spent.
func (c *Client) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		provider, err := c.SelectBestProvider()
		if err != nil {
			lastErr = err
			continue
		}

		start := time.Now()
		status, respBody, err := c.doRequest(ctx, provider, fasthttp.MethodPost, sendPath, body)
		latency := time.Since(start).Milliseconds()
		if err != nil || status >= fasthttp.StatusInternalServerError {
			if err == nil {
				err = fmt.Errorf("unexpected status code: %d", status)
			}
			provider.metrics.RecordFailure()
			c.checkCircuitBreaker(provider)
			logger.Warn("sms provider request failed", "provider", provider.name, "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}
		provider.metrics.RecordSuccess(latency)

		var resp SendResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if status >= fasthttp.StatusBadRequest || resp.Status == StatusFailed {
			msg := resp.ErrorMsg
			if msg == "" {
				msg = fmt.Sprintf("status code %d", status)
			}
			return nil, &RejectedError{Provider: provider.name, Code: resp.ErrorCode, Message: msg}
		}

		logger.Debug("sms accepted", "message_id", req.MessageID, "provider", provider.name, "latency_ms", latency)
		return &resp, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) doRequest(ctx context.Context, provider *Provider, method, path string, body []byte) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(provider.url + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}
	if err := provider.client.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return resp.StatusCode(), out, nil
}

func (c *Client) checkCircuitBreaker(provider *Provider) {
	fails := provider.metrics.ConsecutiveFails.Load()
	if c.config.CircuitBreakerThreshold <= 0 || fails < int32(c.config.CircuitBreakerThreshold) {
		return
	}
	provider.SetState(StateCircuitOpen)
	provider.circuitOpenUntil.Store(time.Now().Add(c.config.CircuitBreakerTimeout).Unix())
	logger.Warn("circuit breaker opened", "provider", provider.name, "consecutive_fails", fails, "timeout", c.config.CircuitBreakerTimeout)
}

func (c *Client) healthChecker() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.performHealthChecks()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Client) performHealthChecks() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	c.mu.RLock()
	providers := make([]*Provider, len(c.providers))
	copy(providers, c.providers)
	c.mu.RUnlock()

	for _, p := range providers {
		if p.GetState() == StateCircuitOpen {
			continue
		}
		old := p.GetState()
		next := old
		switch {
		case !c.checkProviderHealth(ctx, p):
			next = StateUnhealthy
		case p.metrics.SuccessRate() < 0.8 || p.metrics.AvgLatencyMs() > 5000:
			next = StateDegraded
		default:
			next = StateHealthy
		}
		if next != old {
			p.SetState(next)
			logger.Info("sms provider state changed", "provider", p.name, "old_state", old.String(), "new_state", next.String())
		}
	}
}

func (c *Client) checkProviderHealth(ctx context.Context, provider *Provider) bool {
	status, body, err := c.doRequest(ctx, provider, fasthttp.MethodGet, "/health", nil)
	if err != nil || status != fasthttp.StatusOK {
		return false
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return false
	}
	return health.Status == "healthy"
}

type ProviderStats struct {
	Name             string  `json:"name"`
	State            string  `json:"state"`
	Score            float64 `json:"score"`
	TotalRequests    int64   `json:"totalRequests"`
	SuccessRate      float64 `json:"successRate"`
	AvgLatencyMs     int64   `json:"avgLatencyMs"`
	P95LatencyMs     int64   `json:"p95LatencyMs"`
	ConsecutiveFails int32   `json:"consecutiveFails"`
}

// Stats returns per-provider statistics, best score first.
func (c *Client) Stats() []ProviderStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]ProviderStats, 0, len(c.providers))
	for _, p := range c.providers {
		stats = append(stats, ProviderStats{
			Name:             p.name,
			State:            p.GetState().String(),
			Score:            p.Score(),
			TotalRequests:    p.metrics.TotalRequests.Load(),
			SuccessRate:      p.metrics.SuccessRate(),
			AvgLatencyMs:     p.metrics.AvgLatencyMs(),
			P95LatencyMs:     p.metrics.P95LatencyMs(),
			ConsecutiveFails: p.metrics.ConsecutiveFails.Load(),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Score > stats[j].Score })
	return stats
}

func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	return nil
}
