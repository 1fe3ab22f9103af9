package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type SendStatus string

const (
	StatusSent   SendStatus = "SENT"
	StatusFailed SendStatus = "FAILED"
)

// SendSMSRequest is the gateway wire request.
type SendSMSRequest struct {
	MessageID   string `json:"message_id" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	Content     string `json:"content" binding:"required"`
	SenderID    string `json:"sender_id"`
}

type SendSMSResponse struct {
	MessageID         string     `json:"message_id"`
	Status            SendStatus `json:"status"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	ErrorCode         string     `json:"error_code,omitempty"`
	ErrorMsg          string     `json:"error_message,omitempty"`
}

type HealthResponse struct {
	Status      string    `json:"status"`
	ProviderID  string    `json:"provider_id"`
	Timestamp   time.Time `json:"timestamp"`
	SuccessRate float64   `json:"success_rate"`
	Sent        int64     `json:"sent"`
}

// MockProvider simulates an SMS gateway provider for local runs.
type MockProvider struct {
	mu          sync.Mutex
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	providerID  string
	rng         *rand.Rand
	sent        int64
}

func NewMockProvider(successRate float64, minDelay, maxDelay time.Duration) *MockProvider {
	return &MockProvider{
		successRate: successRate,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		providerID:  "MOCK_" + uuid.New().String()[:8],
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockProvider) send(req *SendSMSRequest) *SendSMSResponse {
	time.Sleep(m.randomDelay())

	resp := &SendSMSResponse{MessageID: req.MessageID}
	if !m.shouldSucceed() {
		resp.Status = StatusFailed
		resp.ErrorCode, resp.ErrorMsg = m.randomError()
		log.Warn().
			Str("message_id", req.MessageID).
			Str("phone", req.PhoneNumber).
			Str("error_code", resp.ErrorCode).
			Msg("sms rejected")
		return resp
	}

	m.mu.Lock()
	m.sent++
	m.mu.Unlock()
	resp.Status = StatusSent
	resp.ProviderMessageID = uuid.NewString()
	log.Info().
		Str("message_id", req.MessageID).
		Str("provider_message_id", resp.ProviderMessageID).
		Str("phone", req.PhoneNumber).
		Str("sender_id", req.SenderID).
		Msg("sms sent")
	return resp
}

func (m *MockProvider) randomDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockProvider) shouldSucceed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64() < m.successRate
}

var providerErrors = []struct{ code, msg string }{
	{"INVALID_NUMBER", "Invalid mobile number"},
	{"INSUFFICIENT_BALANCE", "Insufficient balance"},
	{"INVALID_SENDER", "Invalid sender ID"},
	{"BLOCKED", "Recipient blocked messages"},
}

func (m *MockProvider) randomError() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := providerErrors[m.rng.Intn(len(providerErrors))]
	return e.code, e.msg
}

type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

func (h *Handler) SendSMS(c *gin.Context) {
	var req SendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, h.provider.send(&req))
}

func (h *Handler) HealthCheck(c *gin.Context) {
	h.provider.mu.Lock()
	sent, rate := h.provider.sent, h.provider.successRate
	h.provider.mu.Unlock()

	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		ProviderID:  h.provider.providerID,
		Timestamp:   time.Now(),
		SuccessRate: rate,
		Sent:        sent,
	})
}

// UpdateConfig changes the success rate at runtime.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var body struct {
		SuccessRate *float64 `json:"success_rate"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if body.SuccessRate == nil || *body.SuccessRate < 0 || *body.SuccessRate > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "success_rate must be between 0 and 1"})
		return
	}

	h.provider.mu.Lock()
	h.provider.successRate = *body.SuccessRate
	h.provider.mu.Unlock()
	log.Info().Float64("rate", *body.SuccessRate).Msg("updated success rate")
	c.JSON(http.StatusOK, gin.H{"success_rate": *body.SuccessRate})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sms/send", handler.SendSMS)
		v1.PUT("/config", handler.UpdateConfig)
	}
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	successRate := getEnvFloat("SUCCESS_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 50*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 300*time.Millisecond)

	log.Info().
		Str("port", port).
		Float64("success_rate", successRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("starting mock sms provider")

	router := SetupRouter(NewHandler(NewMockProvider(successRate, minDelay, maxDelay)))
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
