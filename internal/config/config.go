package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	AMQP      AMQPConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Relay     RelayConfig
	Scheduler SchedulerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	TenantCacheTTL time.Duration
}

// AMQPConfig configures the chat-gateway event consumer.
type AMQPConfig struct {
	URL          string
	Exchange     string
	Queue        string
	Workers      int
	DialAttempts int
	DialDelaySec int
}

// Enabled reports whether broker ingestion should start.
func (a AMQPConfig) Enabled() bool {
	return a.URL != ""
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	GatewayWebhookToken   string
}

// RelayConfig selects the notification relay backend.
type RelayConfig struct {
	TelegramBotToken string
}

// SchedulerConfig controls the recurring report jobs.
type SchedulerConfig struct {
	Enabled         bool
	DailyReportHour int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	dailyHour := getEnvAsInt("REPORT_DAILY_HOUR", 9)
	if dailyHour < 0 || dailyHour > 23 {
		return nil, fmt.Errorf("invalid REPORT_DAILY_HOUR: %d", dailyHour)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "chat-escalation-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             redisDB,
			TenantCacheTTL: time.Duration(getEnvAsInt("REDIS_TENANT_CACHE_TTL_SECONDS", 60)) * time.Second,
		},
		AMQP: AMQPConfig{
			URL:          os.Getenv("AMQP_URL"),
			Exchange:     getEnv("AMQP_EXCHANGE", "chat.events"),
			Queue:        getEnv("AMQP_QUEUE", "chat-escalation"),
			Workers:      getEnvAsInt("AMQP_WORKERS", 4),
			DialAttempts: getEnvAsInt("AMQP_DIAL_ATTEMPTS", 5),
			DialDelaySec: getEnvAsInt("AMQP_DIAL_DELAY_SECONDS", 2),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			GatewayWebhookToken:   os.Getenv("AUTH_GATEWAY_WEBHOOK_TOKEN"),
		},
		Relay: RelayConfig{
			TelegramBotToken: os.Getenv("RELAY_TELEGRAM_BOT_TOKEN"),
		},
		Scheduler: SchedulerConfig{
			Enabled:         getEnvAsBool("REPORT_SCHEDULER_ENABLED", true),
			DailyReportHour: dailyHour,
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
