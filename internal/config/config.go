package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/message-automation/pkg/logger"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every setting the api and engine processes read. Nothing
// else in the module reads the environment directly.
type Config struct {
	AppEnv  string `env:"APP_ENV,default=dev"`
	AppName string `env:"APP_NAME,default=message_automation"`

	LogEnv   string `env:"LOG_ENV"`
	LogLevel string `env:"LOG_LEVEL"`

	HttpListenAddr     string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpRequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=5s"`
	MetricsListenAddr  string        `env:"METRICS_LISTEN_ADDR,default=:9100"`
	MetricsURI         string        `env:"METRICS_URI,default=/metrics"`
	PromNamespace      string        `env:"PROM_NAMESPACE,default=message_automation"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	QueueName              string        `env:"QUEUE_NAME,default=automation:events"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP,default=automation-engine"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES,default=3"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT,default=30s"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL,default=1s"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE,default=10"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN,default=100000"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ,default=true"`

	JobTickInterval time.Duration `env:"JOB_TICK_INTERVAL,default=1m"`
	JobBatchSize    int           `env:"JOB_BATCH_SIZE,default=50"`
	JobSendWorkers  int           `env:"JOB_SEND_WORKERS,default=1"`
	JobMaxAttempts  int           `env:"JOB_MAX_ATTEMPTS,default=1"`
	JobRetryBackoff time.Duration `env:"JOB_RETRY_BACKOFF,default=5m"`

	CartSweepInterval time.Duration `env:"CART_SWEEP_INTERVAL,default=5m"`
	CartAbandonCutoff time.Duration `env:"CART_ABANDON_CUTOFF,default=60m"`
	CartBatchSize     int           `env:"CART_BATCH_SIZE,default=50"`

	PhoneCountryCode      string        `env:"PHONE_COUNTRY_CODE,default=20"`
	ProviderTimeout       time.Duration `env:"PROVIDER_TIMEOUT,default=10s"`
	ProviderRatePerSecond float64       `env:"PROVIDER_RATE_PER_SECOND,default=20"`
	ProviderRateBurst     int           `env:"PROVIDER_RATE_BURST,default=20"`

	SMSProvider        string `env:"SMS_PROVIDER,default=gateway"`
	SMSDefaultSenderID string `env:"SMS_DEFAULT_SENDER_ID"`

	ProviderPrimaryUrl   string `env:"PROVIDER_PRIMARY_URL"`
	ProviderSecondaryUrl string `env:"PROVIDER_SECONDARY_URL"`
	ProviderBackupUrl    string `env:"PROVIDER_BACKUP_URL"`

	TwilioAccountSID  string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `env:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `env:"TWILIO_PHONE_NUMBER"`

	WhatsAppAPIBase       string `env:"WHATSAPP_API_BASE,default=https://graph.facebook.com/v18.0"`
	WhatsAppAccessToken   string `env:"WHATSAPP_ACCESS_TOKEN"`
	WhatsAppPhoneNumberID string `env:"WHATSAPP_PHONE_NUMBER_ID"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	if err = c.validate(); err != nil {
		return err
	}

	config = c
	return nil
}

func (c *Config) validate() error {
	switch c.SMSProvider {
	case "gateway", "twilio":
	default:
		return errors.Errorf("unknown SMS_PROVIDER %q", c.SMSProvider)
	}
	if c.JobBatchSize <= 0 || c.CartBatchSize <= 0 {
		return errors.New("JOB_BATCH_SIZE and CART_BATCH_SIZE must be positive")
	}
	if c.JobMaxAttempts < 1 {
		return errors.New("JOB_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
