// Package config loads service settings from an optional YAML file, a .env
// file and the process environment, in that order of precedence (env wins).
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	DB        DBConfig        `yaml:"db"`
	Auth      AuthConfig      `yaml:"auth"`
	Limits    LimitsConfig    `yaml:"limits"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Notifier  NotifierConfig  `yaml:"notifier"`
}

type HTTPConfig struct {
	Host            string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

type DBConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL" env-required:"true"`
}

// AuthConfig holds the shared secret used to verify access tokens issued by
// the external auth provider.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET" env-required:"true"`
}

type LimitsConfig struct {
	CommentMaxLength int           `yaml:"comment_max_length" env:"COMMENT_MAX_LENGTH" env-default:"2000"`
	PostMaxLength    int           `yaml:"post_max_length" env:"POST_MAX_LENGTH" env-default:"5000"`
	FeedDefault      int           `yaml:"feed_default" env:"FEED_DEFAULT_LIMIT" env-default:"20"`
	FeedMax          int           `yaml:"feed_max" env:"FEED_MAX_LIMIT" env-default:"100"`
	HotWindow        time.Duration `yaml:"hot_window" env:"FEED_HOT_WINDOW" env-default:"168h"`
	NotificationsMax int           `yaml:"notifications_max" env:"NOTIFICATIONS_MAX" env-default:"50"`
	MessageMaxLength int           `yaml:"message_max_length" env:"MESSAGE_MAX_LENGTH" env-default:"2000"`
	MessagesPageMax  int           `yaml:"messages_page_max" env:"MESSAGES_PAGE_MAX" env-default:"100"`
	StoryTTL         time.Duration `yaml:"story_ttl" env:"STORY_TTL" env-default:"24h"`
	// StoryCleanup is how often expired stories are purged.
	StoryCleanup time.Duration `yaml:"story_cleanup" env:"STORY_CLEANUP_INTERVAL" env-default:"1h"`
}

type CacheConfig struct {
	Size int           `yaml:"size" env:"CACHE_SIZE" env-default:"500"`
	TTL  time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"5m"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" env:"RATE_LIMIT_RPS" env-default:"5"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"10"`
}

type NotifierConfig struct {
	QueueSize int `yaml:"queue_size" env:"NOTIFIER_QUEUE_SIZE" env-default:"1000"`
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration. path, then CONFIG_PATH, name an optional YAML
// file; environment variables (including those from ./.env) are overlaid on
// top of it.
func Load(path string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("env must be one of local, dev, prod, got %q", c.Env)
	}
	if c.DB.URL == "" {
		return fmt.Errorf("db.url is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 bytes")
	}
	if c.Limits.CommentMaxLength <= 0 {
		return fmt.Errorf("limits.comment_max_length must be > 0")
	}
	if c.Limits.PostMaxLength <= 0 {
		return fmt.Errorf("limits.post_max_length must be > 0")
	}
	if c.Limits.FeedDefault <= 0 || c.Limits.FeedMax <= 0 {
		return fmt.Errorf("limits.feed_default and limits.feed_max must be > 0")
	}
	if c.Limits.FeedDefault > c.Limits.FeedMax {
		return fmt.Errorf("limits.feed_default must be <= limits.feed_max")
	}
	if c.Limits.NotificationsMax <= 0 {
		return fmt.Errorf("limits.notifications_max must be > 0")
	}
	if c.Limits.MessageMaxLength <= 0 || c.Limits.MessagesPageMax <= 0 {
		return fmt.Errorf("limits.message_max_length and limits.messages_page_max must be > 0")
	}
	if c.Limits.StoryTTL <= 0 || c.Limits.StoryCleanup <= 0 {
		return fmt.Errorf("limits.story_ttl and limits.story_cleanup must be > 0")
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("cache.size must be > 0")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.rps and rate_limit.burst must be > 0")
	}
	if c.Notifier.QueueSize <= 0 {
		return fmt.Errorf("notifier.queue_size must be > 0")
	}
	return nil
}
