package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "TRAVEL"

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Events   EventsConfig   `yaml:"events"`
	Booking  BookingConfig  `yaml:"booking"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode" split_words:"true"`

	MaxConns           int32 `yaml:"max_conns" split_words:"true"`
	MinConns           int32 `yaml:"min_conns" split_words:"true"`
	LockTimeoutMillis  int   `yaml:"lock_timeout_ms" split_words:"true"`
	MigrateOnStart     bool  `yaml:"migrate_on_start" split_words:"true"`
	EnableQueryTracing bool  `yaml:"enable_query_tracing" split_words:"true"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func (d DatabaseConfig) LockTimeout() time.Duration {
	return time.Duration(d.LockTimeoutMillis) * time.Millisecond
}

type RedisConfig struct {
	Addr               string `yaml:"addr"`
	Password           string `yaml:"password"`
	DB                 int    `yaml:"db"`
	ListingsTTLSeconds int    `yaml:"listings_ttl_seconds" split_words:"true"`
	BookingsTTLSeconds int    `yaml:"bookings_ttl_seconds" split_words:"true"`
}

func (r RedisConfig) ListingsTTL() time.Duration {
	return time.Duration(r.ListingsTTLSeconds) * time.Second
}

func (r RedisConfig) BookingsTTL() time.Duration {
	return time.Duration(r.BookingsTTLSeconds) * time.Second
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic" split_words:"true"`
	ListingEventsTopic string   `yaml:"listing_events_topic" split_words:"true"`
	NotificationsTopic string   `yaml:"notifications_topic" split_words:"true"`
	GroupID            string   `yaml:"group_id" split_words:"true"`
}

type RabbitMQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// EventsConfig selects the transport behind the event notifier: kafka, rabbitmq or none.
type EventsConfig struct {
	Transport            string `yaml:"transport"`
	PublishTimeoutMillis int    `yaml:"publish_timeout_ms" split_words:"true"`
}

func (e EventsConfig) PublishTimeout() time.Duration {
	return time.Duration(e.PublishTimeoutMillis) * time.Millisecond
}

type BookingConfig struct {
	RetryAttempts         int `yaml:"retry_attempts" split_words:"true"`
	RetryBackoffMillis    int `yaml:"retry_backoff_ms" split_words:"true"`
	RetryMaxBackoffMillis int `yaml:"retry_max_backoff_ms" split_words:"true"`
}

type WorkerConfig struct {
	CompletionSweepMinutes int `yaml:"completion_sweep_minutes" split_words:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ServiceName   string `yaml:"service_name" split_words:"true"`
	CollectorAddr string `yaml:"collector_addr" split_words:"true"`
	Environment   string `yaml:"environment"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML, applies TRAVEL_* environment overrides and fills defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9090"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 25
	}
	if c.Database.LockTimeoutMillis == 0 {
		c.Database.LockTimeoutMillis = 3000
	}
	if c.Redis.ListingsTTLSeconds == 0 {
		c.Redis.ListingsTTLSeconds = 300
	}
	if c.Redis.BookingsTTLSeconds == 0 {
		c.Redis.BookingsTTLSeconds = 300
	}
	if c.Kafka.BookingEventsTopic == "" {
		c.Kafka.BookingEventsTopic = "booking-events"
	}
	if c.Kafka.ListingEventsTopic == "" {
		c.Kafka.ListingEventsTopic = "listing-events"
	}
	if c.Kafka.NotificationsTopic == "" {
		c.Kafka.NotificationsTopic = "booking-notifications"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "travelbooking-worker"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "travelbooking"
	}
	if c.Events.Transport == "" {
		c.Events.Transport = "kafka"
	}
	if c.Events.PublishTimeoutMillis == 0 {
		c.Events.PublishTimeoutMillis = 2000
	}
	if c.Booking.RetryAttempts == 0 {
		c.Booking.RetryAttempts = 3
	}
	if c.Booking.RetryBackoffMillis == 0 {
		c.Booking.RetryBackoffMillis = 50
	}
	if c.Booking.RetryMaxBackoffMillis == 0 {
		c.Booking.RetryMaxBackoffMillis = 1000
	}
	if c.Worker.CompletionSweepMinutes == 0 {
		c.Worker.CompletionSweepMinutes = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "travelbooking"
	}
}

func (c *Config) validate() error {
	if c.Worker.CompletionSweepMinutes <= 0 {
		return fmt.Errorf("worker completion_sweep_minutes must be positive, got %d", c.Worker.CompletionSweepMinutes)
	}
	switch c.Events.Transport {
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka transport requires at least one broker")
		}
	case "rabbitmq":
		if c.RabbitMQ.URL == "" {
			return fmt.Errorf("rabbitmq transport requires a url")
		}
	case "none":
	default:
		return fmt.Errorf("unknown events transport %q", c.Events.Transport)
	}
	return nil
}
