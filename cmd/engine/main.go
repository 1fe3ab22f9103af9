package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/message-automation/internal/cart"
	"github.com/nimasrn/message-automation/internal/channel"
	"github.com/nimasrn/message-automation/internal/condition"
	"github.com/nimasrn/message-automation/internal/config"
	"github.com/nimasrn/message-automation/internal/engine"
	gateway "github.com/nimasrn/message-automation/internal/gateways"
	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/processor"
	"github.com/nimasrn/message-automation/internal/queue"
	"github.com/nimasrn/message-automation/internal/repository"
	"github.com/nimasrn/message-automation/internal/scheduler"
	"github.com/nimasrn/message-automation/pkg/logger"
	"github.com/nimasrn/message-automation/pkg/pg"
	"github.com/nimasrn/message-automation/pkg/prom"
	"github.com/nimasrn/message-automation/pkg/redis"
)

const gatewayStatsInterval = 5 * time.Minute

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	if err = logger.Configure(config.Get().LogEnv, config.Get().LogLevel); err != nil {
		logger.Error("failed to configure logger", "error", err)
	}
	logger.Info("starting engine", "version", version, "commit", commit, "date", date)

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "engine",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go func() {
		prom.ListenAndServer(config.Get().MetricsListenAddr, config.Get().MetricsURI)
	}()

	evaluator, err := condition.NewEvaluator()
	if err != nil {
		logger.Error("failed creating condition evaluator", "error", err)
		return
	}

	tenantRepo := repository.NewTenantRepository(db)
	flowRepo := repository.NewFlowRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	jobRepo := repository.NewMessageJobRepository(db)
	cartRepo := repository.NewCartRepository(db)

	dispatcher := engine.NewDispatcher(flowRepo, engine.NewStepExecutor(templateRepo, jobRepo, evaluator))

	smsProvider, gatewayClient, err := newSMSProvider()
	if err != nil {
		logger.Error("failed to create sms provider", "error", err)
		return
	}

	opts := channel.Options{
		CountryCode:    config.Get().PhoneCountryCode,
		Timeout:        config.Get().ProviderTimeout,
		RatePerSecond:  config.Get().ProviderRatePerSecond,
		RateBurst:      config.Get().ProviderRateBurst,
		DefaultSender:  config.Get().SMSDefaultSenderID,
		WhatsAppToken:  config.Get().WhatsAppAccessToken,
		WhatsAppNumber: config.Get().WhatsAppPhoneNumberID,
	}
	gate := channel.NewQuotaGate(tenantRepo)
	senders := map[model.Channel]channel.Sender{
		model.ChannelSMS: channel.NewAdapter(model.ChannelSMS, tenantRepo, gate, smsProvider, opts),
		model.ChannelWhatsApp: channel.NewAdapter(model.ChannelWhatsApp, tenantRepo, gate,
			channel.NewWhatsAppProvider(config.Get().WhatsAppAPIBase, config.Get().ProviderTimeout), opts),
	}

	jobProcessor := processor.NewJobProcessor(jobRepo, customerRepo, senders,
		processor.NewSendGuard(redisAdap, processor.DefaultGuardConfig()),
		processor.JobProcessorConfig{
			BatchSize:    config.Get().JobBatchSize,
			Workers:      config.Get().JobSendWorkers,
			MaxAttempts:  config.Get().JobMaxAttempts,
			RetryBackoff: config.Get().JobRetryBackoff,
		})

	detector := cart.NewDetector(cartRepo, customerRepo, dispatcher, cart.Config{
		Cutoff:    config.Get().CartAbandonCutoff,
		BatchSize: config.Get().CartBatchSize,
	})

	tasks := []*scheduler.Recurring{
		{Name: "job_processor", Interval: config.Get().JobTickInterval, Task: jobProcessor.Tick, RunAtStart: true},
		{Name: "cart_sweep", Interval: config.Get().CartSweepInterval, Task: detector.Sweep},
	}
	if gatewayClient != nil {
		defer func() {
			if err := gatewayClient.Close(); err != nil {
				logger.Warn("closing sms gateway", "error", err)
			}
		}()
		tasks = append(tasks, &scheduler.Recurring{Name: "sms_gateway_stats", Interval: gatewayStatsInterval, Task: func(context.Context) error {
			for _, s := range gatewayClient.Stats() {
				logger.Info("sms provider stats", "provider", s.Name, "state", s.State, "score", s.Score,
					"requests", s.TotalRequests, "success_rate", s.SuccessRate, "p95_ms", s.P95LatencyMs)
			}
			return nil
		}})
	}
	timers := scheduler.NewGroup(tasks...)

	consumerName := config.Get().QueueConsumerName
	if consumerName == "" {
		consumerName = hostname
	}
	consumer := processor.NewEventConsumer(redisAdap, dispatcher, processor.ConsumerConfig{
		Queue: queue.QueueConfig{
			Name:              config.Get().QueueName,
			ConsumerGroup:     config.Get().QueueConsumerGroup,
			ConsumerName:      consumerName,
			MaxRetries:        config.Get().QueueMaxRetries,
			VisibilityTimeout: config.Get().QueueVisibilityTimeout,
			PollInterval:      config.Get().QueuePollInterval,
			BatchSize:         config.Get().QueueBatchSize,
			MaxLen:            config.Get().QueueMaxLen,
			EnableDLQ:         config.Get().QueueEnableDLQ,
		},
		Consumers: 1,
		Workers:   4,
	})

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err = consumer.Start(); err != nil {
		logger.Error("failed to start event consumer", "error", err)
		return
	}
	timers.Start(ctx)

	<-c
	logger.Info("engine shutting down")
	timers.Stop()
	consumer.Stop()
}

// newSMSProvider picks the SMS transport from SMS_PROVIDER. The gateway
// client is nil for twilio.
func newSMSProvider() (channel.Provider, *gateway.Client, error) {
	if config.Get().SMSProvider == "twilio" {
		p := channel.NewTwilioProvider(config.Get().TwilioAccountSID, config.Get().TwilioAuthToken, config.Get().TwilioPhoneNumber)
		return p, nil, nil
	}

	var providers []gateway.ProviderConfig
	for _, p := range []gateway.ProviderConfig{
		{Name: "primary", URL: config.Get().ProviderPrimaryUrl, Weight: 100},
		{Name: "secondary", URL: config.Get().ProviderSecondaryUrl, Weight: 80},
		{Name: "backup", URL: config.Get().ProviderBackupUrl, Weight: 60},
	} {
		if p.URL != "" {
			providers = append(providers, p)
		}
	}
	client, err := gateway.NewClient(&gateway.Config{
		Providers:               providers,
		Timeout:                 config.Get().ProviderTimeout,
		MaxRetries:              3,
		RetryDelay:              time.Millisecond * 100,
		MaxConns:                1000,
		HealthCheckInterval:     30 * time.Second,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   60 * time.Second,
	})
	if err != nil {
		return nil, nil, err
	}
	return channel.NewGatewayProvider(client), client, nil
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
