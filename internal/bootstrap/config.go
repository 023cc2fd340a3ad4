package bootstrap

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	wsHandler "live-poll/internal/handler/websocket"
)

// Config is decoded from the environment, after an optional .env file.
type Config struct {
	DBUser     string `envconfig:"DB_USER" default:"root"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBHost     string `envconfig:"DB_HOST"`
	DBPort     string `envconfig:"DB_PORT"`
	DBName     string `envconfig:"DB_NAME"`

	RedisAddr     string `envconfig:"REDIS_ADDR" required:"true"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix     string `envconfig:"REDIS_KEY_PREFIX" default:"lp:"`

	JWTSecret  string `envconfig:"JWT_SECRET" required:"true"`
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	AppEnv     string `envconfig:"APP_ENV" default:"development"`
	CORSOrigin string `envconfig:"CORS_ALLOWED_ORIGIN" default:"http://localhost:3000"`

	RateLimitMax        int           `envconfig:"RATE_LIMIT_MAX" default:"100"`
	RateLimitWindow     time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1s"`
	VoteRateLimitMax    int           `envconfig:"VOTE_RATE_LIMIT_MAX" default:"10"`
	VoteRateLimitWindow time.Duration `envconfig:"VOTE_RATE_LIMIT_WINDOW" default:"1s"`

	SweepInterval       time.Duration        `envconfig:"SWEEP_INTERVAL" default:"1s"`
	SubscriberQueueSize int                  `envconfig:"SUBSCRIBER_QUEUE_SIZE" default:"256"`
	RoomIdleTTL         time.Duration        `envconfig:"ROOM_IDLE_TTL" default:"30m"`
	ReapSchedule        string               `envconfig:"REAP_SCHEDULE" default:"@every 1m"`
	ResultCacheTTL      time.Duration        `envconfig:"RESULT_CACHE_TTL" default:"24h"`
	HostPolicy          wsHandler.HostPolicy `envconfig:"HOST_DISCONNECT_POLICY" default:"keep"`
	WorkerConcurrency   int                  `envconfig:"WORKER_CONCURRENCY" default:"10"`
}

// LoadConfig reads .env when present, then decodes and checks the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.HostPolicy {
	case wsHandler.HostPolicyKeep, wsHandler.HostPolicyDeactivate:
	default:
		return fmt.Errorf("HOST_DISCONNECT_POLICY must be %q or %q, got %q",
			wsHandler.HostPolicyKeep, wsHandler.HostPolicyDeactivate, c.HostPolicy)
	}
	if c.RateLimitMax <= 0 || c.VoteRateLimitMax <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.RateLimitWindow <= 0 || c.VoteRateLimitWindow <= 0 {
		return fmt.Errorf("rate limit windows must be positive")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", c.LogLevel)
		c.LogLevel = "info"
	}
	return nil
}
