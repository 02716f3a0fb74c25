package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/kursadbilgin/activity-batch-engine/internal/domain"
)

type Config struct {
	DatabaseDSN            string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL            string `env:"RABBITMQ_URL,required=true"`
	RedisURL               string `env:"REDIS_URL,required=true"`
	ContentServiceURL      string `env:"CONTENT_SERVICE_URL,required=true"`
	OrgServiceURL          string `env:"ORG_SERVICE_URL,required=true"`
	APIPort                int    `env:"API_PORT,default=8080"`
	LogLevel               string `env:"LOG_LEVEL,default=info"`
	LogFormat              string `env:"LOG_FORMAT,default=json"`
	Timezone               string `env:"APP_TIMEZONE,default=Asia/Kolkata"`
	AuthEnabled            bool   `env:"BATCH_AUTH_ENABLED,default=false"`
	PrimaryActivityTypes   string `env:"PRIMARY_ACTIVITY_TYPES,default=Competency Framework"`
	ActivityBatchTopic     string `env:"ACTIVITY_BATCH_TOPIC,default=activity.batch"`
	BatchInstructionTopic  string `env:"BATCH_INSTRUCTION_TOPIC,default=batch.instruction"`
	EventExchange          string `env:"EVENT_EXCHANGE,default=activity.events"`
	CollaboratorTimeoutMS  int    `env:"COLLABORATOR_TIMEOUT_MS,default=5000"`
	CollaboratorRateLimit  int    `env:"COLLABORATOR_RATE_LIMIT,default=50"`
	CollaboratorRateLimits string `env:"COLLABORATOR_RATE_LIMITS"`
	EventWorkerCount       int    `env:"EVENT_WORKER_COUNT,default=2"`
	EventBufferSize        int    `env:"EVENT_BUFFER_SIZE,default=1024"`
	DBMaxOpenConns         int    `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBMaxIdleConns         int    `env:"DB_MAX_IDLE_CONNS,default=5"`
	ShutdownTimeoutSec     int    `env:"SHUTDOWN_TIMEOUT_SECONDS,default=15"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.CollaboratorTimeoutMS <= 0 {
		return fmt.Errorf("COLLABORATOR_TIMEOUT_MS must be positive")
	}
	if c.CollaboratorRateLimit <= 0 {
		return fmt.Errorf("COLLABORATOR_RATE_LIMIT must be positive")
	}
	if c.EventWorkerCount <= 0 {
		return fmt.Errorf("EVENT_WORKER_COUNT must be positive")
	}
	if c.EventBufferSize < 0 {
		return fmt.Errorf("EVENT_BUFFER_SIZE must not be negative")
	}
	if c.DBMaxOpenConns <= 0 || c.DBMaxIdleConns < 0 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive and DB_MAX_IDLE_CONNS not negative")
	}
	if strings.TrimSpace(c.ActivityBatchTopic) == "" || strings.TrimSpace(c.BatchInstructionTopic) == "" {
		return fmt.Errorf("event topics must not be empty")
	}
	return nil
}

func (c *Config) CollaboratorTimeout() time.Duration {
	return time.Duration(c.CollaboratorTimeoutMS) * time.Millisecond
}

func (c *Config) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// Settings is the immutable policy the services are built with.
type Settings struct {
	Location              *time.Location
	AuthEnabled           bool
	PrimaryActivityTypes  domain.ActivityTypeSet
	ActivityBatchTopic    string
	BatchInstructionTopic string
}

func (c *Config) Settings() (Settings, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return Settings{}, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return Settings{
		Location:              loc,
		AuthEnabled:           c.AuthEnabled,
		PrimaryActivityTypes:  domain.ParseActivityTypeSet(c.PrimaryActivityTypes),
		ActivityBatchTopic:    strings.TrimSpace(c.ActivityBatchTopic),
		BatchInstructionTopic: strings.TrimSpace(c.BatchInstructionTopic),
	}, nil
}

// IsPrimary reports whether catalog sync and events apply to activityType.
func (s Settings) IsPrimary(activityType string) bool {
	return s.PrimaryActivityTypes.Contains(activityType)
}
