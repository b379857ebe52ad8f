package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
	Auth      AuthConfig      `yaml:"auth"`
	Week      WeekConfig      `yaml:"week"`
	History   HistoryConfig   `yaml:"history"`
	Events    EventsConfig    `yaml:"events"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DBConfig struct {
	Driver      string `yaml:"driver"` // sqlite or postgres
	Path        string `yaml:"path"`
	PostgresURL string `yaml:"postgres_url"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"` // http or stdio
}

type AuthConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Mode        string `yaml:"mode"` // api_key or jwt
	JWTSecret   string `yaml:"jwt_secret"`
	JWTIssuer   string `yaml:"jwt_issuer"`
	DefaultUser string `yaml:"default_user"`

	// BootstrapKey is registered for DefaultUser at startup in api_key mode.
	BootstrapKey string `yaml:"bootstrap_key"`
}

type WeekConfig struct {
	Timezone       string `yaml:"timezone"`
	RolloverOnRead bool   `yaml:"rollover_on_read"`
	Concurrency    string `yaml:"concurrency"` // last_write_wins or compare_and_swap
	MaxRetries     int    `yaml:"max_retries"`
}

// Location loads the configured timezone. Empty means the host's local zone.
func (w WeekConfig) Location() (*time.Location, error) {
	if w.Timezone == "" || w.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid week.timezone %q: %w", w.Timezone, err)
	}
	return loc, nil
}

type HistoryConfig struct {
	Order           string `yaml:"order"` // newest_first or oldest_first
	DefaultPageSize int    `yaml:"default_page_size"`
	MaxPageSize     int    `yaml:"max_page_size"`
}

type EventsConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Enabled reports whether any broker is configured.
func (e EventsConfig) Enabled() bool {
	return len(e.Brokers) > 0
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		DB: DBConfig{
			Driver: "sqlite",
			Path:   "weekly.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		Auth: AuthConfig{
			Mode:        "api_key",
			DefaultUser: "default",
		},
		Week: WeekConfig{
			Timezone:       "Local",
			RolloverOnRead: true,
			Concurrency:    "last_write_wins",
			MaxRetries:     3,
		},
		History: HistoryConfig{
			Order:           "newest_first",
			DefaultPageSize: 10,
			MaxPageSize:     100,
		},
		Events: EventsConfig{
			Topic: "weekly.timetable-events",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("WEEKLY_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated settings and ranges.
func (c Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite":
		if c.DB.Path == "" {
			return fmt.Errorf("db.path required for sqlite")
		}
	case "postgres":
		if c.DB.PostgresURL == "" {
			return fmt.Errorf("db.postgres_url required for postgres")
		}
	default:
		return fmt.Errorf("unknown db.driver %q", c.DB.Driver)
	}
	if c.Transport.Mode != "http" && c.Transport.Mode != "stdio" {
		return fmt.Errorf("unknown transport.mode %q", c.Transport.Mode)
	}
	if c.Auth.Enabled {
		switch c.Auth.Mode {
		case "api_key":
		case "jwt":
			if c.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret required for jwt auth")
			}
		default:
			return fmt.Errorf("unknown auth.mode %q", c.Auth.Mode)
		}
	}
	if c.Week.Concurrency != "last_write_wins" && c.Week.Concurrency != "compare_and_swap" {
		return fmt.Errorf("unknown week.concurrency %q", c.Week.Concurrency)
	}
	if c.Week.MaxRetries < 0 {
		return fmt.Errorf("week.max_retries must not be negative")
	}
	if _, err := c.Week.Location(); err != nil {
		return err
	}
	if c.History.Order != "newest_first" && c.History.Order != "oldest_first" {
		return fmt.Errorf("unknown history.order %q", c.History.Order)
	}
	if c.History.DefaultPageSize <= 0 || c.History.MaxPageSize < c.History.DefaultPageSize {
		return fmt.Errorf("history page sizes must satisfy 0 < default_page_size <= max_page_size")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var err error
	setString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" && err == nil {
			n, convErr := strconv.Atoi(v)
			if convErr != nil {
				err = fmt.Errorf("invalid %s: %w", name, convErr)
				return
			}
			*dst = n
		}
	}
	setBool := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" && err == nil {
			b, convErr := strconv.ParseBool(v)
			if convErr != nil {
				err = fmt.Errorf("invalid %s: %w", name, convErr)
				return
			}
			*dst = b
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" && err == nil {
			d, convErr := time.ParseDuration(v)
			if convErr != nil {
				err = fmt.Errorf("invalid %s: %w", name, convErr)
				return
			}
			*dst = d
		}
	}

	setString("WEEKLY_SERVER_HOST", &cfg.Server.Host)
	setInt("WEEKLY_SERVER_PORT", &cfg.Server.Port)
	setDuration("WEEKLY_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("WEEKLY_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setString("WEEKLY_DB_DRIVER", &cfg.DB.Driver)
	setString("WEEKLY_DB_PATH", &cfg.DB.Path)
	setString("WEEKLY_POSTGRES_URL", &cfg.DB.PostgresURL)
	setString("WEEKLY_LOG_LEVEL", &cfg.Log.Level)
	setString("WEEKLY_TRANSPORT", &cfg.Transport.Mode)
	setBool("WEEKLY_AUTH_ENABLED", &cfg.Auth.Enabled)
	setString("WEEKLY_AUTH_MODE", &cfg.Auth.Mode)
	setString("WEEKLY_JWT_SECRET", &cfg.Auth.JWTSecret)
	setString("WEEKLY_JWT_ISSUER", &cfg.Auth.JWTIssuer)
	setString("WEEKLY_DEFAULT_USER", &cfg.Auth.DefaultUser)
	setString("WEEKLY_API_KEY", &cfg.Auth.BootstrapKey)
	setString("WEEKLY_TIMEZONE", &cfg.Week.Timezone)
	setBool("WEEKLY_ROLLOVER_ON_READ", &cfg.Week.RolloverOnRead)
	setString("WEEKLY_CONCURRENCY", &cfg.Week.Concurrency)
	setInt("WEEKLY_MAX_RETRIES", &cfg.Week.MaxRetries)
	setString("WEEKLY_HISTORY_ORDER", &cfg.History.Order)
	setInt("WEEKLY_HISTORY_PAGE_SIZE", &cfg.History.DefaultPageSize)
	setInt("WEEKLY_HISTORY_MAX_PAGE_SIZE", &cfg.History.MaxPageSize)
	if v := os.Getenv("WEEKLY_KAFKA_BROKERS"); v != "" {
		cfg.Events.Brokers = splitList(v)
	}
	setString("WEEKLY_KAFKA_TOPIC", &cfg.Events.Topic)
	setBool("WEEKLY_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setString("WEEKLY_METRICS_PATH", &cfg.Metrics.Path)

	return err
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
