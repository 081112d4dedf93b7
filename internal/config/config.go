package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tableside/internal/domain"
)

const envPrefix = "TABLESIDE_"

type Config struct {
	Service     ServiceConfig    `yaml:"service"`
	Log         LogConfig        `yaml:"log"`
	Store       StoreConfig      `yaml:"store"`
	Database    DatabaseConfig   `yaml:"database"`
	RabbitMQ    RabbitMQConfig   `yaml:"rabbitmq"`
	Redis       RedisConfig      `yaml:"redis"`
	Feed        FeedConfig       `yaml:"feed"`
	WaiterCalls WaiterCallConfig `yaml:"waiter_calls"`
	Tables      []domain.Table   `yaml:"tables"`
}

type ServiceConfig struct {
	HTTPPort int `yaml:"http_port"`
	// Patron endpoints are throttled per client address.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // postgres | memory
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
}

// Enabled reports whether a broker is configured at all.
func (r RabbitMQConfig) Enabled() bool { return r.Host != "" }

type RedisConfig struct {
	URL string `yaml:"url"`
}

type FeedConfig struct {
	ResyncInterval   time.Duration `yaml:"resync_interval"`
	ResubscribeDelay time.Duration `yaml:"resubscribe_delay"`
	HistoryPeriod    string        `yaml:"history_period"`
}

type WaiterCallConfig struct {
	Cooldown time.Duration `yaml:"cooldown"`
}

func Default() Config {
	return Config{
		Service:  ServiceConfig{HTTPPort: 3000, RateLimit: 5, Burst: 10},
		Log:      LogConfig{Level: "info"},
		Store:    StoreConfig{Driver: "postgres"},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "tableside", Database: "tableside", SSLMode: "disable"},
		RabbitMQ: RabbitMQConfig{Port: 5672, User: "guest", Password: "guest", VHost: "/"},
		Feed: FeedConfig{
			ResyncInterval:   15 * time.Second,
			ResubscribeDelay: 2 * time.Second,
			HistoryPeriod:    "today",
		},
		WaiterCalls: WaiterCallConfig{Cooldown: 30 * time.Second},
	}
}

// Load resolves configuration in the order defaults, file, environment. An
// empty path falls back to FindConfig; a missing default file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		found, err := FindConfig()
		if err == nil {
			path = found
		}
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Database.Host == "" {
			return errors.New("invalid config: database host is required for the postgres store")
		}
	default:
		return fmt.Errorf("invalid config: unknown store driver %q", c.Store.Driver)
	}
	if c.Service.HTTPPort <= 0 {
		return errors.New("invalid config: service.http_port must be positive")
	}
	if c.WaiterCalls.Cooldown < 0 {
		return errors.New("invalid config: waiter_calls.cooldown must not be negative")
	}
	seen := make(map[string]struct{}, len(c.Tables))
	for _, t := range c.Tables {
		if strings.TrimSpace(t.ID) == "" {
			return errors.New("invalid config: table with empty id")
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("invalid config: duplicate table %q", t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}

func applyEnv(c *Config) {
	c.Service.HTTPPort = envInt("HTTP_PORT", c.Service.HTTPPort)
	c.Service.RateLimit = envFloat("RATE_LIMIT", c.Service.RateLimit)
	c.Service.Burst = envInt("RATE_BURST", c.Service.Burst)
	c.Log.Level = envOrDefault("LOG_LEVEL", c.Log.Level)
	c.Store.Driver = strings.ToLower(strings.TrimSpace(envOrDefault("STORE_DRIVER", c.Store.Driver)))

	c.Database.Host = envOrDefault("DB_HOST", c.Database.Host)
	c.Database.Port = envInt("DB_PORT", c.Database.Port)
	c.Database.User = envOrDefault("DB_USER", c.Database.User)
	c.Database.Password = envOrDefault("DB_PASSWORD", c.Database.Password)
	c.Database.Database = envOrDefault("DB_NAME", c.Database.Database)
	c.Database.SSLMode = envOrDefault("DB_SSLMODE", c.Database.SSLMode)

	c.RabbitMQ.Host = envOrDefault("RABBITMQ_HOST", c.RabbitMQ.Host)
	c.RabbitMQ.Port = envInt("RABBITMQ_PORT", c.RabbitMQ.Port)
	c.RabbitMQ.User = envOrDefault("RABBITMQ_USER", c.RabbitMQ.User)
	c.RabbitMQ.Password = envOrDefault("RABBITMQ_PASSWORD", c.RabbitMQ.Password)
	c.RabbitMQ.VHost = envOrDefault("RABBITMQ_VHOST", c.RabbitMQ.VHost)

	c.Redis.URL = envOrDefault("REDIS_URL", c.Redis.URL)

	c.Feed.ResyncInterval = envDuration("FEED_RESYNC_INTERVAL", c.Feed.ResyncInterval)
	c.Feed.ResubscribeDelay = envDuration("FEED_RESUBSCRIBE_DELAY", c.Feed.ResubscribeDelay)
	c.Feed.HistoryPeriod = envOrDefault("FEED_HISTORY_PERIOD", c.Feed.HistoryPeriod)
	c.WaiterCalls.Cooldown = envDuration("WAITER_COOLDOWN", c.WaiterCalls.Cooldown)
}

func envOrDefault(name, fallback string) string {
	if v := os.Getenv(envPrefix + name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(envPrefix + name))
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(name string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(envPrefix+name), 64)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(envPrefix + name))
	if err != nil {
		return fallback
	}
	return v
}

func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
