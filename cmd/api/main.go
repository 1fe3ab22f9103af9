package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nimasrn/message-automation/internal/condition"
	"github.com/nimasrn/message-automation/internal/config"
	"github.com/nimasrn/message-automation/internal/engine"
	"github.com/nimasrn/message-automation/internal/handlers"
	"github.com/nimasrn/message-automation/internal/queue"
	"github.com/nimasrn/message-automation/internal/repository"
	"github.com/nimasrn/message-automation/internal/services"
	xhttp "github.com/nimasrn/message-automation/pkg/http"
	"github.com/nimasrn/message-automation/pkg/logger"
	"github.com/nimasrn/message-automation/pkg/pg"
	"github.com/nimasrn/message-automation/pkg/redis"
)

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
	logger.Info("starting api", "version", version, "commit", commit, "date", date)

	opt := xhttp.DefaultServerOption
	opt.RequestTimeout = config.Get().HttpRequestTimeout
	s := xhttp.NewServer(opt)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(config.Get().HttpRequestTimeout))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)

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
		ClientName: "api",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	// without a stream the api dispatches events inline
	var publisher services.EventPublisher
	if config.Get().QueueName != "" {
		q, err := queue.NewQueue(redisAdap, queue.QueueConfig{
			Name:              config.Get().QueueName,
			ConsumerGroup:     config.Get().QueueConsumerGroup,
			ConsumerName:      "api",
			MaxRetries:        config.Get().QueueMaxRetries,
			VisibilityTimeout: config.Get().QueueVisibilityTimeout,
			PollInterval:      config.Get().QueuePollInterval,
			BatchSize:         config.Get().QueueBatchSize,
			MaxLen:            config.Get().QueueMaxLen,
			EnableDLQ:         config.Get().QueueEnableDLQ,
		})
		if err != nil {
			logger.Error("failed creating queue", "error", err)
			return
		}
		publisher = queue.NewEventPublisher(q)
	}

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

	// services
	templateService := services.NewTemplateService(templateRepo)
	flowService := services.NewFlowService(flowRepo, templateRepo, evaluator, templateService)
	eventService := services.NewEventService(cartRepo, customerRepo, dispatcher, publisher)
	jobService := services.NewJobService(jobRepo)
	quotaService := services.NewQuotaService(tenantRepo)

	healthHandler := handlers.NewHealthHandler(map[string]handlers.HealthCheck{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.Write(ctx).DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return redisAdap.Client().Ping(ctx).Err()
		},
	})

	g := s.Router.Group("/api/v1")
	handlers.RegisterEventRoutes(g, handlers.NewEventHandler(eventService))
	handlers.RegisterFlowRoutes(g, handlers.NewFlowHandler(flowService))
	handlers.RegisterTemplateRoutes(g, handlers.NewTemplateHandler(templateService))
	handlers.RegisterJobRoutes(g, handlers.NewJobHandler(jobService))
	handlers.RegisterQuotaRoutes(g, handlers.NewQuotaHandler(quotaService))
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
	if err := redisAdap.Client().Close(); err != nil {
		logger.Warn("closing redis", "error", err)
	}
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
