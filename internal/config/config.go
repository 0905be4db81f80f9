package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/brokerconnect/service-booking/pkg/database"
)

// JWTConfig holds token settings.
type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// KafkaConfig holds broker settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// RedisConfig holds cache settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RabbitConfig holds notification settings. An empty URL disables notifications.
type RabbitConfig struct {
	URL      string
	Exchange string
}

// ObservabilityConfig holds tracing and metrics settings.
type ObservabilityConfig struct {
	OTelEndpoint   string
	MetricsEnabled bool
	MetricsPath    string
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port                 string
	AppEnv               string
	RequestTimeout       time.Duration
	NegotiationMaxRounds int
	MigrationsDir        string

	DBConfig      database.PostgresConfig
	JWTConfig     JWTConfig
	KafkaConfig   KafkaConfig
	RedisConfig   RedisConfig
	RabbitConfig  RabbitConfig
	Observability ObservabilityConfig
}

// Load reads configuration from a .env file (if present) and BOOKING_* environment variables.
func Load() (*ServiceConfig, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*ServiceConfig, error) {
	v.SetEnvPrefix("BOOKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &ServiceConfig{
		Port:                 v.GetString("SERVICE_PORT"),
		AppEnv:               v.GetString("APP_ENV"),
		RequestTimeout:       v.GetDuration("REQUEST_TIMEOUT"),
		NegotiationMaxRounds: v.GetInt("NEGOTIATION_MAX_ROUNDS"),
		MigrationsDir:        v.GetString("MIGRATIONS_DIR"),
		DBConfig: database.PostgresConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		JWTConfig: JWTConfig{
			Secret:          v.GetString("JWT_SECRET"),
			AccessTokenTTL:  v.GetDuration("JWT_ACCESS_TTL"),
			RefreshTokenTTL: v.GetDuration("JWT_REFRESH_TTL"),
		},
		KafkaConfig: KafkaConfig{
			Brokers:     splitList(v.GetString("KAFKA_BROKERS")),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		RedisConfig: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("CACHE_TTL"),
		},
		RabbitConfig: RabbitConfig{
			URL:      v.GetString("RABBITMQ_URL"),
			Exchange: v.GetString("NOTIFY_EXCHANGE"),
		},
		Observability: ObservabilityConfig{
			OTelEndpoint:   v.GetString("OTEL_ENDPOINT"),
			MetricsEnabled: v.GetBool("METRICS_ENABLED"),
			MetricsPath:    v.GetString("METRICS_PATH"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_PORT", "8082")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("REQUEST_TIMEOUT", 15*time.Second)
	v.SetDefault("NEGOTIATION_MAX_ROUNDS", 0)
	v.SetDefault("MIGRATIONS_DIR", "migrations")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "brokerconnect_booking")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("JWT_ACCESS_TTL", 15*time.Minute)
	v.SetDefault("JWT_REFRESH_TTL", 7*24*time.Hour)

	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "service-booking")

	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", 5*time.Minute)

	v.SetDefault("NOTIFY_EXCHANGE", "booking.notifications")

	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_PATH", "/metrics")
}

func (c *ServiceConfig) validate() error {
	if c.JWTConfig.Secret == "" {
		return fmt.Errorf("BOOKING_JWT_SECRET is required")
	}
	if c.NegotiationMaxRounds < 0 {
		return fmt.Errorf("BOOKING_NEGOTIATION_MAX_ROUNDS must not be negative, got %d", c.NegotiationMaxRounds)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("BOOKING_REQUEST_TIMEOUT must be positive")
	}
	if len(c.KafkaConfig.Brokers) == 0 {
		return fmt.Errorf("BOOKING_KAFKA_BROKERS is required")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *ServiceConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
